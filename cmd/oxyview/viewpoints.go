package main

import (
	"math"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/setup"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewpoint"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
)

const (
	viewpointHeading float32 = -45
	viewpointPitch   float32 = -20

	// viewpointRangeScale multiplies a target's bound radius to get the viewing distance.
	viewpointRangeScale float32 = 10
)

func newViewpointsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "viewpoints [model.gltf]",
		Short: "Jump between viewpoints with the 1-9 keys; any other key releases the camera",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			}
			s, _, err := o.viewpointsSession(path)
			if err != nil {
				return err
			}
			return s.run(cmd.Context())
		},
	}
}

// placer holds a fixed world placement and copies it into a node every frame.
type placer struct {
	world mgl32.Mat4
	node  scene.Node
}

func (p *placer) update(pipeline.FrameInfo) {
	p.node.SetMatrix(p.world)
}

// viewpointsSession builds the viewpoints demo: the placed model, an orbit controller on the main
// camera and one viewpoint for the whole model followed by one per top-level child.
func (o *options) viewpointsSession(path string) (*session, viewpoint.Controller, error) {
	model, err := o.loadModel(path)
	if err != nil {
		return nil, nil, err
	}
	s, err := o.newSession("Viewpoints", model)
	if err != nil {
		return nil, nil, err
	}

	// ── Placement ───────────────────────────────────────────────────────
	pl := &placer{world: mgl32.HomogRotate3DX(math.Pi / 2), node: model}
	pl.update(pipeline.FrameInfo{})
	s.viewer.AddUpdateCallback(pl.update)

	// ── Light ───────────────────────────────────────────────────────────
	if err := s.std.Light.SetMainLight(o.cfg.MainLight(), setup.ShadowModuleName); err != nil {
		s.viewer.Close()
		return nil, nil, err
	}
	bound := model.Bound()
	s.std.Shadow.AddReferenceBound(bound, o.cfg.Shadow.Tight)

	// ── Camera controller ───────────────────────────────────────────────
	center := bound.Center()
	radius := max(bound.Radius(), 1)
	manip := camera.NewCameraController(
		camera.WithTarget(center.X(), center.Y(), center.Z()),
		camera.WithRadius(radius*3),
		camera.WithRadiusBounds(radius*0.1, radius*100),
		camera.WithElevation(0.4),
	)
	s.viewer.Camera().SetController(manip)

	// ── Viewpoints ──────────────────────────────────────────────────────
	ctrl := viewpoint.NewController(manip)
	targets := append([]scene.Node{model}, model.Children()...)
	for _, n := range targets {
		b := n.Bound()
		if !b.Valid() {
			continue
		}
		vp := viewpoint.New(n.Name(),
			viewpoint.WithTarget(n),
			viewpoint.WithHeading(viewpointHeading),
			viewpoint.WithPitch(viewpointPitch),
			viewpoint.WithRange(max(b.Radius(), 0.1)*viewpointRangeScale),
		)
		if err := ctrl.AddViewpoint(vp); err != nil {
			s.viewer.Close()
			return nil, nil, err
		}
	}
	s.viewer.AddEventHandler(ctrl)

	common.Logger().Info("viewpoints demo ready", "model", path, "viewpoints", len(ctrl.Viewpoints()))
	return s, ctrl, nil
}
