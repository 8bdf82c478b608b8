package commands

import (
	"context"
	"net/http"
	"strings"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/status"
	"github.com/spf13/cobra"
)

type statusOptions struct {
	output    string
	serverURL string
	load      bool
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	opts := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index, source and cache status",
		Long: `Show the state of the configured sources, the embedding cache and, with
--load or --server, the loaded index.

Examples:
  shiori status
  shiori status --load
  shiori status --server http://localhost:8080 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseFormat(opts.output)
			if err != nil {
				return err
			}
			var report *status.Report
			if opts.serverURL != "" {
				report, err = statusViaHTTP(cmd.Context(), opts.serverURL)
			} else {
				report, err = statusLocal(cmd.Context(), root, opts.load)
			}
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), report, format)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "read status from a running server")
	cmd.Flags().BoolVar(&opts.load, "load", false, "load the index to report its size and load statistics")
	return cmd
}

func statusLocal(ctx context.Context, root *rootOptions, load bool) (*status.Report, error) {
	cfg, logger, err := setup(root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()

	components, err := initializeSources(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	if load {
		// A failed load is part of the report, not a command error.
		_ = components.Loader.Refresh(ctx, components.Handle)
	}
	report := components.Status.Collect(ctx)
	if !load {
		report.Index = nil
	}
	return report, nil
}

func statusViaHTTP(ctx context.Context, serverURL string) (*status.Report, error) {
	url := strings.TrimRight(serverURL, "/") + "/api/v1/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	var report status.Report
	if err := doJSON(req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
