package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/cmd/config"
	"github.com/wildlens/wildlens-go/cmd/minority"
	"github.com/wildlens/wildlens-go/cmd/rank"
	"github.com/wildlens/wildlens-go/cmd/rankings"
	"github.com/wildlens/wildlens-go/cmd/serve"
	"github.com/wildlens/wildlens-go/cmd/version"
	"github.com/wildlens/wildlens-go/internal/buildinfo"
	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/logger"
	"github.com/wildlens/wildlens-go/internal/telemetry"
)

// sentryFlushTimeout bounds the wait for queued telemetry events on exit.
const sentryFlushTimeout = 2 * time.Second

// noConfigAnnotation marks commands that run without loading config.yaml.
const noConfigAnnotation = "wildlens/no-config"

// RootCommand creates and returns the root command. Subcommands share
// settings, which is filled from the config file before any of them runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "wildlens",
		Short:         "WildLens active-learning ranking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/wildlens, /etc/wildlens)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := version.Command(info)
	configCmd := config.Command()
	for _, c := range []*cobra.Command{versionCmd, configCmd} {
		c.Annotations = map[string]string{noConfigAnnotation: "true"}
	}
	rootCmd.AddCommand(
		rank.Command(settings),
		serve.Command(settings),
		minority.Command(settings),
		rankings.Command(settings),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if skipsConfig(cmd) {
			return nil
		}

		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		if cmd.Flags().Changed("debug") {
			settings.Debug = debug
		}
		return initialize(settings, info)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Flush(sentryFlushTimeout)
		_ = logger.Global().Flush()
	}

	return rootCmd
}

// skipsConfig reports whether cmd or one of its parents is marked with
// noConfigAnnotation.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[noConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

// initialize sets up the root logger and telemetry from the loaded settings.
func initialize(settings *conf.Settings, info *buildinfo.Context) error {
	logCfg := logger.Config{
		Level:  settings.Main.Log.Level,
		Format: settings.Main.Log.Format,
		Output: settings.Main.Log.Output,
	}
	if settings.Debug {
		logCfg.Level = string(logger.LogLevelDebug)
	}

	root, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(root)

	if settings.ConfigFile != "" {
		root.Module("main").Debug("configuration loaded", logger.String("file", settings.ConfigFile))
	}

	if err := telemetry.InitSentry(settings, telemetry.WithRelease(settings.Main.Name, info.GetVersion())); err != nil {
		// telemetry is optional, keep running without it
		root.Module("main").Warn("failed to initialize telemetry", logger.Error(err))
	}
	return nil
}
