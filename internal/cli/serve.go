package cli

import (
	"context"
	"os/signal"
	"syscall"

	"workbench-backend/internal/config"
	"workbench-backend/internal/interfaces/http/admin"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP server",
		Long: `Run the admin HTTP server with /healthz, /readyz and /metrics.

When --config names a file, changes to it are applied without a restart
(log level and client list cache TTL).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	c, cleanup, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	logger := c.Logger()

	if opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(opts.ConfigPath, c.Config, logger.Named("config"))
		if err != nil {
			logger.Warn("configuration file will not be watched", zap.Error(err))
		} else {
			watcher.OnChange(c.ApplyConfig)
			defer watcher.Stop()
		}
	}

	if c.Table != nil {
		if err := c.Table.VerifyTable(ctx, c.TableLayout.Indexes()); err != nil {
			logger.Warn("table verification failed", zap.String("table", c.TableLayout.TableName), zap.Error(err))
		}
	}

	srv := admin.NewServer(c.Config.Admin.Address, c.Router, c.Config.Admin.ShutdownTimeout, logger)
	return srv.Run(ctx)
}
