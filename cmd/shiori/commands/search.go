package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type searchOptions struct {
	k         int
	minScore  float64
	context   bool
	output    string
	serverURL string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search the collection",
		Long: `Search the collection for the records nearest to the query.

The query is all remaining arguments joined by spaces. Without --server the index is
loaded from the configured sources first, which can take a while on large collections.

Examples:
  shiori search reverse charge
  shiori search --k 3 --min-score 0.4 "vat on imported services"
  shiori search --context --output json "invoice numbering"
  shiori search --server http://localhost:8080 "vat rate"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := buildSearchQuery(args)
			if query == "" {
				return models.ErrEmptyQuery
			}
			format, err := cli.ParseFormat(opts.output)
			if err != nil {
				return err
			}
			var minScore *float64
			if cmd.Flags().Changed("min-score") {
				minScore = &opts.minScore
			}
			req := &models.SearchQuery{Query: query, K: opts.k, MinScore: minScore}
			if opts.serverURL != "" {
				return searchViaHTTP(cmd.Context(), cmd.OutOrStdout(), opts, req, format)
			}
			return searchLocal(cmd.Context(), cmd.OutOrStdout(), root, opts, req, format)
		},
	}
	cmd.Flags().IntVar(&opts.k, "k", 0, "number of results (0 = search.default_k)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "drop results scoring below this (default: search.default_min_score)")
	cmd.Flags().BoolVar(&opts.context, "context", false, "print the assembled context block instead of the hit list")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text, compact, or json")
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "query a running server instead of loading the index locally")
	return cmd
}

// buildSearchQuery joins positional args so multi-word queries work with or without quotes.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchLocal(ctx context.Context, out io.Writer, root *rootOptions, opts *searchOptions, req *models.SearchQuery, format cli.OutputFormat) error {
	cfg, logger, err := setup(root)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	if err := components.Loader.Refresh(ctx, components.Handle); err != nil {
		// Refresh has published an empty index; answer from it.
		logger.Warn("index unavailable, searching an empty index", zap.Error(err))
	}
	if opts.context {
		rc := components.Orchestrator.Retrieve(ctx, req.Query, req.K, req.MinScore)
		return cli.WriteContext(out, rc, format)
	}
	resp := components.Orchestrator.Query(ctx, req.Query, req.K, req.MinScore)
	return cli.WriteSearchResults(out, resp, format)
}

func searchViaHTTP(ctx context.Context, out io.Writer, opts *searchOptions, req *models.SearchQuery, format cli.OutputFormat) error {
	base := strings.TrimRight(opts.serverURL, "/")
	if opts.context {
		var rc models.RetrievalContext
		if err := postJSON(ctx, base+"/api/v1/context", req, &rc); err != nil {
			return err
		}
		return cli.WriteContext(out, &rc, format)
	}
	var resp models.SearchResponse
	if err := postJSON(ctx, base+"/api/v1/search", req, &resp); err != nil {
		return err
	}
	return cli.WriteSearchResults(out, &resp, format)
}

func postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, out)
}

func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
