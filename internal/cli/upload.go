package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/config"
	"github.com/ytget/model-mirror/internal/download"
	"github.com/ytget/model-mirror/internal/model"
)

// ErrRunFailed is returned when a one-shot upload ends in failure
var ErrRunFailed = errors.New("upload failed")

func newUploadCommand(cli *CLI) *cobra.Command {
	var req model.UploadRequest

	cmd := &cobra.Command{
		Use:   "upload <model-id>",
		Short: "Mirror one model and wait for the result",
		Example: `  model-mirror upload 7w7pAfrCfjovwykkEeRFLGw5SXS \
    --url https://sketchfab.com/3d-models/chair-7w7pAfrCfjovwykkEeRFLGw5SXS`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = args[0]

			cfg, err := config.Load(cli.configPath)
			if err != nil {
				return err
			}

			logger, err := cli.newLogger(cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
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

			run, err := uploadOnce(ctx, a.service, req, cmd.ErrOrStderr())
			if shutdownErr := a.service.Shutdown(context.Background()); shutdownErr != nil {
				logger.Warn("Shutdown failed", zap.Error(shutdownErr))
			}
			if err != nil {
				return err
			}

			if err := printJSON(cmd.OutOrStdout(), run); err != nil {
				return err
			}
			if run.State != model.RunStateSucceeded {
				return fmt.Errorf("%w: %s: %s", ErrRunFailed, run.FailureKind, run.LastError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.SourceURL, "url", "", "model page URL, required for a model never submitted")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.ImgSmall, "img-small", "", "small thumbnail URL")
	cmd.Flags().StringVar(&req.ImgLarge, "img-large", "", "large thumbnail URL")
	return cmd
}

// uploadOnce submits req, reports each state change to progress and waits
// for the run to finish
func uploadOnce(ctx context.Context, up download.Uploader, req model.UploadRequest, progress io.Writer) (model.UploadRun, error) {
	up.SetUpdateCallback(func(run model.UploadRun) {
		if run.ModelID == req.ID && run.ID != "" {
			fmt.Fprintf(progress, "%s %s\n", run.ModelID, run.State)
		}
	})

	run, err := up.Submit(ctx, req)
	if err != nil {
		return model.UploadRun{}, err
	}
	return up.WaitRun(ctx, run.ID)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
