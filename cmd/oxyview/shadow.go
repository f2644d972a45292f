package main

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/setup"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
)

const (
	// sweepStep is how far the light's x direction moves per frame.
	sweepStep float32 = 0.001

	// sweepLimit bounds the light's x direction.
	sweepLimit float32 = 0.8

	hudQuadSize    float32 = 0.2
	hudQuadSpacing float32 = 0.21
	hudOrder               = 10000
)

func newShadowCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shadow [model.gltf]",
		Short: "Cascaded shadow maps with a HUD showing every cascade",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			}
			s, err := o.shadowSession(path)
			if err != nil {
				return err
			}
			return s.run(cmd.Context())
		},
	}
}

// shadowSession builds the shadow demo: the main light bound to the shadow module, the model's
// bound as the shadow reference, the cascade outlines, a HUD and the light sweep.
func (o *options) shadowSession(path string) (*session, error) {
	model, err := o.loadModel(path)
	if err != nil {
		return nil, err
	}
	s, err := o.newSession("Shadow", model)
	if err != nil {
		return nil, err
	}
	masks := o.cfg.Masks

	// ── Main light ──────────────────────────────────────────────────────
	mainLight := o.cfg.MainLight()
	if err := s.std.Light.SetMainLight(mainLight, setup.ShadowModuleName); err != nil {
		s.viewer.Close()
		return nil, err
	}

	// ── Shadow reference bound and debug geometry ───────────────────────
	bounds := scene.NewComputeBoundsVisitor(masks.ShadowCaster)
	model.Accept(bounds)
	s.std.Shadow.AddReferenceBound(bounds.Bound(), o.cfg.Shadow.Tight)
	if geode := s.std.Shadow.FrustumGeode(); geode != nil {
		s.root.AddChild(geode)
	}

	// ── HUD ─────────────────────────────────────────────────────────────
	s.pipeline.AddPass(newShadowHUD(s.std.Shadow.Textures(), masks.ForwardScene))

	// ── Light sweep ─────────────────────────────────────────────────────
	s.viewer.AddUpdateCallback(newLightSweep(mainLight, mgl32.Vec3(o.cfg.Light.Direction)))

	common.Logger().Info("shadow demo ready",
		"model", path, "bound", fmt.Sprint(bounds.Bound()), "cascades", s.std.Shadow.ShadowNumber())
	return s, nil
}

// newShadowHUD creates the post-render camera that shows each shadow map as a quad along the left
// edge of the screen.
func newShadowHUD(maps []texture.Texture, forward common.NodeMask) camera.Camera {
	quads := make([]*scene.Geometry, len(maps))
	for i, t := range maps {
		quads[i] = scene.NewQuad(fmt.Sprintf("Cascade %d", i), 0, hudQuadSpacing*float32(i), hudQuadSize, hudQuadSize, t)
	}
	hud := scene.NewNode("HUD", scene.WithMask(forward), scene.WithGeometry(quads...))

	return camera.NewCamera("HUD",
		camera.WithKind(camera.PassScene),
		camera.WithClear(camera.ClearDepth, mgl32.Vec4{}),
		camera.WithCullMask(forward),
		camera.WithReferenceFrame(camera.ReferenceAbsolute),
		camera.WithOrtho2D(0, 1, 0, 1),
		camera.WithRenderOrder(camera.PostRender, hudOrder),
		camera.WithSubgraph(hud),
	)
}

// newLightSweep returns an update that swings the x component of base back and forth and applies
// it to the light.
func newLightSweep(l light.Light, base mgl32.Vec3) func(pipeline.FrameInfo) {
	x, step := base.X(), sweepStep
	return func(pipeline.FrameInfo) {
		x += step
		if x > sweepLimit || x < -sweepLimit {
			step = -step
			x = mgl32.Clamp(x, -sweepLimit, sweepLimit)
		}
		l.SetDirection(mgl32.Vec3{x, base.Y(), base.Z()})
	}
}
