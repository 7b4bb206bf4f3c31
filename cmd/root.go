// Package cmd implements the vibebridge command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/vibebridge/internal/config"
	"github.com/chrisuehlinger/vibebridge/internal/observability"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "0.1.0"

// options holds the state shared by every subcommand.
type options struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
}

// newRootCmd builds the command tree. Each call returns fresh commands so
// tests can execute them in isolation.
func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "vibebridge",
		Short:         "Run pages against a headless native host.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return err
			}
			if opts.logLevel != "" {
				cfg.Logger.Level = opts.logLevel
			}
			opts.cfg = cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting vibebridge",
				zap.String("version", Version),
				zap.String("command", cmd.Name()))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logger.level")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newDumpCmd(opts),
		newViewCmd(opts),
	)
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	defer observability.Sync()
	if err := newRootCmd().Execute(); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		observability.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openSession loads page into a new session with the shared config.
func (o *options) openSession(ctx context.Context, page string, tap tapFunc) (*session, error) {
	s, err := newSession(o.cfg, observability.GetLogger(), tap)
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx, page); err != nil {
		return nil, err
	}
	return s, nil
}
