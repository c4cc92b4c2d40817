// Package cli provides the command-line interface for tagview.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/version"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	debug   bool
	logFile string

	// Global logger
	logger *logging.Logger

	// Engine configuration loaded in PersistentPreRunE
	engineConfig *config.EngineConfig

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tagview",
		Short: "tagview - virtualized masonry layout and pagination engine",
		Long: `tagview ` + version.Version + ` - Built: ` + version.BuildTime + `
Indexes directories of images and videos and drives the masonry layout
engine headlessly.

Commands:
  index     - Scan a directory into its SQLite index
  stats     - Summarize an index
  simulate  - Run the layout engine against a dataset and report each pass
  config    - Manage engine.conf`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEngineConfig(cfgFile)
			if err != nil {
				return err
			}
			engineConfig = cfg

			file := logFile
			if file == "" {
				file = cfg.Logging.File
			}
			logger = logging.NewLogger(logging.Options{Console: cmd.ErrOrStderr(), LogFile: file})

			level, err := zerolog.ParseLevel(cfg.Logging.Level)
			if err != nil {
				level = zerolog.InfoLevel
			}
			if verbose || debug {
				level = zerolog.DebugLevel
			}
			logging.SetGlobalLevel(level)
			logger.Debug().Str("version", version.String()).Str("config", cfgFile).Msg("tagview starting")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Engine configuration file (default: "+defaultConfigHint()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")

	rootCmd.Version = version.String()
	return rootCmd
}

func defaultConfigHint() string {
	path, err := config.DefaultEngineConfigPath()
	if err != nil {
		return "engine.conf"
	}
	return path
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// GetEngineConfig returns the loaded engine configuration.
func GetEngineConfig() *config.EngineConfig {
	if engineConfig == nil {
		engineConfig = config.NewEngineConfig()
	}
	return engineConfig
}
