package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/logger"
	"github.com/oshokin/formula-resolver/internal/version"
)

// app carries the persistent flags and the loaded settings to every subcommand.
type app struct {
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string
	// sources override the configured formula sources when set.
	sources []string
	// settings are loaded before any subcommand runs.
	settings *config.Config
}

// newRootCommand builds the formulactl command tree.
func newRootCommand() *cobra.Command {
	a := new(app)

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Resolve, validate and install release artifacts described by formula files",
		Long: "formulactl reads GoReleaser style Homebrew formulas and YAML descriptors, " +
			"picks the download matching the current platform and installs its binaries.",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultPath(), "path to configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the config file)")
	flags.StringArrayVarP(&a.sources, "source", "s", nil, "formula source directory, file or URL (repeatable, overrides the config file)")

	rootCmd.AddCommand(
		newValidateCommand(a),
		newResolveCommand(a),
		newInstallCommand(a),
		newUninstallCommand(a),
		newListCommand(a),
		newVersionsCommand(a),
		newInfoCommand(a),
		newRenderCommand(a),
		newPackageCommand(a),
		newConfigCommand(a),
	)

	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Execute runs the formulactl CLI and exits with non-zero status on error.
func Execute() {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

// load reads the settings file and applies the log level.
func (a *app) load() error {
	settings, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	level := settings.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	logger.SetLevel(parsed)

	a.settings = settings

	return nil
}

// formulaSources returns the --source values, or the configured sources.
func (a *app) formulaSources() []string {
	if len(a.sources) > 0 {
		return a.sources
	}

	return a.settings.Sources
}
