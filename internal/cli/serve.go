package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/config"
	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/server"
)

const drainTimeout = 30 * time.Second

func newServeCommand(cli *CLI) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cli.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			logger, err := cli.newLogger(cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return cli.serve(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}

func (c *CLI) serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	a.service.SetUpdateCallback(func(run model.UploadRun) {
		if run.State.IsFinished() {
			logger.Info("Run finished",
				zap.String("runID", run.ID),
				zap.String("modelID", run.ModelID),
				zap.String("state", run.State.String()),
				zap.String("failureKind", run.FailureKind),
			)
		}
	})

	logger.Info("Starting model-mirror",
		zap.String("version", c.version),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Provider),
	)

	srv := server.New(server.Deps{
		Uploader:   a.service,
		Store:      a.store,
		Searcher:   a.searcher,
		Logger:     logger,
		ObjectsDir: a.objectsDir,
	})
	serveErr := srv.ListenAndServe(ctx, cfg.HTTP.Addr)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.service.Shutdown(drainCtx); err != nil {
		logger.Warn("Runs did not drain", zap.Error(err))
	}

	logger.Info("Stopped")
	return serveErr
}
