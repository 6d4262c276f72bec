package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
)

// app carries what every subcommand shares.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	verbose      bool
	configPath   string
	registryPath string
	platformKey  string

	detector platform.Detector
	log      *logging.SlogLogger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		detector: platform.NewDetector(),
	}

	cmd := &cobra.Command{
		Use:           "depfetch",
		Short:         "depfetch - verified download and extraction of prebuilt tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = logging.NewText(a.stderr, level)
			return nil
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Read settings from a TOML file")
	cmd.PersistentFlags().StringVarP(&a.registryPath, "registry", "r", "", "Source registry file (or set "+config.EnvRegistry+")")
	cmd.PersistentFlags().StringVarP(&a.platformKey, "platform", "p", "", "Platform to fetch for, e.g. Linux or Darwin/arm64 (default: detected)")

	cmd.AddCommand(
		newFetchCmd(a),
		newSourcesCmd(a),
		newPlatformCmd(a),
	)
	return cmd
}

// settings resolves defaults, the config file, the environment and the
// persistent flags, in that order.
func (a *app) settings() (*config.Config, error) {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if a.registryPath != "" {
		cfg.RegistryPath = a.registryPath
	}
	if a.platformKey != "" {
		cfg.Platform = a.platformKey
	}
	return cfg, nil
}

// resolvePlatform returns the platform to fetch for: the override when set,
// otherwise the detected host.
func (a *app) resolvePlatform(ctx context.Context, override string) (*platform.Info, error) {
	detector := a.detector
	if override != "" {
		info, err := platform.ParseKey(override)
		if err != nil {
			return nil, fmt.Errorf("invalid --platform: %w", err)
		}
		detector = platform.Static{Info: info}
	}

	info, err := detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}
	return info, nil
}

func (a *app) loadRegistry(path string, info *platform.Info) (*registry.Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("registry not found: %w", err)
	}
	return registry.Load(path, registry.WithPlatform(info), registry.WithLogger(a.log))
}
