package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/config"
	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/platform"
	"github.com/ytget/model-mirror/internal/store"
)

func newStatusCommand(cli *CLI) *cobra.Command {
	var (
		offset int
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status [model-id...]",
		Short: "Show stored model records",
		Long: `Show stored model records. With no ids, list records in id order.

The record store allows one process at a time; stop the server first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadUnchecked(cli.configPath)
			if err != nil {
				return err
			}

			layout, err := platform.PrepareDataDir(cfg.DataDir)
			if err != nil {
				return err
			}

			st, err := store.Open(layout.Records, zap.NewNop())
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			records, err := lookupRecords(ctx, st, args, offset, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip when listing")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func lookupRecords(ctx context.Context, st store.Store, ids []string, offset, limit int) ([]*model.Record, error) {
	if len(ids) == 0 {
		return st.List(ctx, offset, limit)
	}

	records := make([]*model.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := st.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func printRecords(w io.Writer, records []*model.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tMESSAGE\tRESULT")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, rec.Status, rec.StatusMessage, rec.ResultURL)
	}
	return tw.Flush()
}
