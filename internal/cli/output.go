// Package cli provides output formatting for the shiori command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/status"
	"github.com/hyperjump/shiori/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one hit per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const previewLen = 200

// ParseFormat validates a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		return writeCompact(w, response.Hits)
	default:
		fmt.Fprintf(w, "\nFound %d results in %dms\n\n", len(response.Hits), response.QueryTime)
		for _, hit := range response.Hits {
			writeHit(w, hit)
		}
		return nil
	}
}

// WriteContext writes an assembled retrieval context to w. The text format prints
// only the context block so it can be piped into another tool.
func WriteContext(w io.Writer, rc *models.RetrievalContext, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, rc)
	case OutputCompact:
		return writeCompact(w, rc.Hits)
	default:
		if rc.Context == "" {
			fmt.Fprintln(w, models.NoContextText)
			return nil
		}
		fmt.Fprintln(w, rc.Context)
		return nil
	}
}

func writeHit(w io.Writer, hit models.SearchHit) {
	rec := hit.Record
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Position: %d", hit.Rank, hit.Score, rec.Position)
	if rec.Repaired {
		if rec.HasContext() {
			fmt.Fprintf(w, " (text from line %d)", rec.MetadataPosition)
		} else {
			fmt.Fprint(w, " (no context)")
		}
	}
	fmt.Fprintln(w)
	if title, ok := rec.Fields["title"].(string); ok && title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(rec.Text, previewLen))
}

func writeCompact(w io.Writer, hits []models.SearchHit) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, hit := range hits {
		text := strings.Join(strings.Fields(hit.Record.Text), " ")
		fmt.Fprintf(tw, "%d\t%.4f\t%d\t%s\n", hit.Rank, hit.Score, hit.Record.Position, utils.Truncate(text, 80))
	}
	return tw.Flush()
}

// WriteStatus writes a status report as aligned "key: value   # comment" lines or JSON.
func WriteStatus(w io.Writer, r *status.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	if r.Index != nil {
		fmt.Fprintf(w, "index_ready:        %t\n", r.Index.Ready)
		fmt.Fprintf(w, "index_size:         %d   # records in the published index\n", r.Index.Size)
		fmt.Fprintf(w, "index_dimension:    %d\n", r.Index.Dimension)
		if r.Index.Generation != "" {
			fmt.Fprintf(w, "index_generation:   %s\n", r.Index.Generation)
		}
	}
	if s := r.LastLoad; s != nil {
		fmt.Fprintf(w, "fragments:          %d   # objects seen in the vector source\n", s.Fragments)
		fmt.Fprintf(w, "malformed:          %d   # fragments discarded\n", s.Malformed)
		fmt.Fprintf(w, "oversized:          %d\n", s.Oversized)
		fmt.Fprintf(w, "repaired:           %d   # texts taken from a neighbouring line\n", s.Repaired)
		fmt.Fprintf(w, "no_context:         %d\n", s.NoContext)
		fmt.Fprintf(w, "metadata_records:   %d\n", s.MetadataRecords)
		fmt.Fprintf(w, "capped:             %t\n", s.Capped)
		fmt.Fprintf(w, "load_duration:      %s\n", s.Duration)
	}
	if r.LoadError != "" {
		fmt.Fprintf(w, "load_error:         %s\n", r.LoadError)
	}
	for _, src := range r.Sources {
		state := "missing"
		if src.Exists {
			state = fmt.Sprintf("%d bytes", src.Size)
		}
		if src.Error != "" {
			state = "error: " + src.Error
		}
		fmt.Fprintf(w, "source:             %s   # %s\n", src.Location, state)
	}
	if c := r.Cache; c != nil {
		fmt.Fprintf(w, "cache_path:         %s\n", c.Path)
		fmt.Fprintf(w, "cache_entries:      %d   # persisted query embeddings\n", c.Entries)
		fmt.Fprintf(w, "cache_disk_bytes:   %d\n", c.DiskUsageBytes)
		if c.Error != "" {
			fmt.Fprintf(w, "cache_error:        %s\n", c.Error)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "config:")
	fmt.Fprintf(w, "  score_mode:         %s\n", r.Config.ScoreMode)
	fmt.Fprintf(w, "  default_k:          %d\n", r.Config.DefaultK)
	fmt.Fprintf(w, "  max_k:              %d\n", r.Config.MaxK)
	if r.Config.DefaultMinScore != nil {
		fmt.Fprintf(w, "  default_min_score:  %g\n", *r.Config.DefaultMinScore)
	}
	fmt.Fprintf(w, "  max_records:        %d\n", r.Config.MaxRecords)
	fmt.Fprintf(w, "  embedding:          %s/%s\n", r.Config.EmbeddingProvider, r.Config.EmbeddingModel)
	fmt.Fprintf(w, "  watch_enabled:      %t\n", r.Config.WatchEnabled)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
