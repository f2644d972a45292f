package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/spf13/cobra"
)

// options holds the persistent flags and the configuration they resolve to.
type options struct {
	configPath string
	headless   bool
	frames     uint64
	threading  string
	logLevel   string
	shaderDir  string
	skybox     string

	cfg config.Config
}

func newRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "oxyview",
		Short:         "Render pipeline demos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := installLogger(cmd.ErrOrStderr(), o.logLevel); err != nil {
				return err
			}
			return o.resolve(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "TOML configuration file")
	flags.BoolVar(&o.headless, "headless", false, "render on the recording device without a window")
	flags.Uint64Var(&o.frames, "frames", 0, "stop after this many frames (0 runs until the window closes)")
	flags.StringVar(&o.threading, "threading", "", "threading model: single-threaded or cull-parallel")
	flags.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&o.shaderDir, "shaders", "", "shader directory (overrides the config)")
	flags.StringVar(&o.skybox, "skybox", "", "skybox image: PNG, JPEG, BMP or WebP (overrides the config)")

	root.AddCommand(newShadowCommand(o), newViewpointsCommand(o), newConfigCommand(o))
	return root
}

// resolve loads the configuration and applies the flags that override it.
func (o *options) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("threading") {
		cfg.Pipeline.Threading = o.threading
	}
	if flags.Changed("shaders") {
		cfg.ShaderDir = o.shaderDir
	}
	if flags.Changed("skybox") {
		cfg.Skybox = o.skybox
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	o.cfg = cfg
	return nil
}

// installLogger routes the engine logger to a text handler at the given level.
func installLogger(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	common.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func newConfigCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.cfg.Encode(cmd.OutOrStdout())
		},
	}
}
