package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/loader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/setup"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
)

// defaultHeadlessFrames is how long a headless run lasts when --frames is not given.
const defaultHeadlessFrames = 120

// session is one configured viewer with the standard pipeline attached.
type session struct {
	viewer   viewer.Viewer
	pipeline pipeline.Pipeline
	std      *setup.Standard

	// root holds the model and the debug geometry; its mask selects every category.
	root scene.Node
}

// newSession opens the window (or the recording device) and sets up the standard pipeline around
// the model.
func (o *options) newSession(title string, model scene.Node) (*session, error) {
	cfg := o.cfg
	w, h := cfg.Window.Width, cfg.Window.Height

	frames := o.frames
	if o.headless && frames == 0 {
		frames = defaultHeadlessFrames
	}
	vopts := []viewer.ViewerBuilderOption{viewer.WithMaxFrames(frames)}
	if o.headless {
		vopts = append(vopts, viewer.WithDevice(renderer.NewRecordingDevice(w, h)))
	} else {
		win, err := window.NewWindow(append(cfg.WindowOptions(), window.WithTitle(cfg.Window.Title+" - "+title))...)
		if err != nil {
			return nil, err
		}
		w, h = win.Width(), win.Height()
		vopts = append(vopts,
			viewer.WithWindow(win),
			viewer.WithFrameLimit(float64(cfg.FrameLimit)),
			viewer.WithProfiling(true),
		)
	}

	v, err := viewer.NewViewer(vopts...)
	if err != nil {
		return nil, err
	}

	root := scene.NewNode(title, scene.WithChildren(model))
	p := pipeline.NewPipeline(v.Device(), cfg.PipelineOptions()...)

	sopts := []setup.SetupBuilderOption{
		setup.WithShadowOptions(cfg.ShadowOptions()...),
		setup.WithLightOptions(cfg.LightOptions()...),
	}
	if cfg.Skybox != "" {
		sopts = append(sopts, setup.WithSkybox(cfg.Skybox))
	}
	std, err := setup.SetupStandardPipeline(p, v, root, cfg.ShaderDir, w, h, sopts...)
	if err != nil {
		v.Close()
		return nil, err
	}

	common.Logger().Info("session ready", "demo", title, "headless", o.headless, "threading", p.ThreadingModel().String())
	return &session{viewer: v, pipeline: p, std: std, root: root}, nil
}

// run drives the frame loop until the viewer is done or the process is interrupted.
func (s *session) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	defer s.viewer.Close()

	if err := s.viewer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// loadModel imports a model file, or builds the test scene when path is empty. The model is
// tagged as deferred-shaded shadow-casting geometry.
func (o *options) loadModel(path string) (scene.Node, error) {
	masks := o.cfg.Masks
	mask := masks.DeferredScene | masks.ShadowCaster
	if path == "" {
		model := testScene()
		model.SetMask(mask)
		return model, nil
	}
	model, err := loader.NewLoader(loader.WithMask(mask)).Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return model, nil
}
