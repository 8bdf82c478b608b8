package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/status"
)

const testDims = 8

// writeFixture writes a config, a vector source and a metadata source into a temp dir.
// Record 0 embeds "reverse charge" exactly, so that query ranks it first.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mock := embedding.NewMockEmbedder(testDims)
	var records []map[string]any
	for _, text := range []string{"reverse charge", "invoice numbering rules"} {
		v, err := mock.Embed(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, map[string]any{"embedding": v})
	}
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "vectors.json"), string(data))
	writeFile(t, filepath.Join(dir, "meta.jsonl"),
		`{"text":"Reverse charge applies to B2B services","title":"VAT"}`+"\n"+
			`{"text":"Invoices must be numbered sequentially"}`+"\n")
	writeFile(t, filepath.Join(dir, "config.yaml"), `
sources:
  vector_path: ./vectors.json
  metadata_path: ./meta.jsonl
  max_records: 100
embedding:
  provider: mock
  dimensions: 8
  cache_path: ./cache.db
search:
  score_mode: cosine
  context_separator: " | "
`)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "shiori" {
		t.Errorf("Use = %q, want shiori", cmd.Use)
	}
	want := map[string]bool{"serve": false, "search": false, "status": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	flags := []struct{ name, def string }{
		{"config", defaultConfigPath},
		{"debug", "false"},
	}
	for _, f := range flags {
		fl := cmd.PersistentFlags().Lookup(f.name)
		if fl == nil {
			t.Errorf("--%s flag not found", f.name)
			continue
		}
		if fl.DefValue != f.def {
			t.Errorf("--%s default = %q, want %q", f.name, fl.DefValue, f.def)
		}
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"vat"}, "vat"},
		{"multiple words", []string{"reverse", "charge"}, "reverse charge"},
		{"quoted phrase", []string{"reverse charge"}, "reverse charge"},
		{"blank", []string{"  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_PrefersWorkingDirectory(t *testing.T) {
	dir := writeFixture(t)
	t.Chdir(dir)
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != filepath.Join(dir, "config.yaml") {
		t.Errorf("resolved = %q", resolved)
	}
	if cfg.Sources.VectorPath != filepath.Join(dir, "vectors.json") {
		t.Errorf("vector path = %q", cfg.Sources.VectorPath)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config")
	}
}

func TestSearch_Local(t *testing.T) {
	dir := writeFixture(t)
	out, err := run(t, "--config", filepath.Join(dir, "config.yaml"), "search", "--k", "1", "--output", "json", "reverse", "charge")
	if err != nil {
		t.Fatal(err)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(resp.Hits) != 1 {
		t.Fatalf("hits: got %d, want 1", len(resp.Hits))
	}
	hit := resp.Hits[0]
	if hit.Record.Position != 0 || hit.Record.Text != "Reverse charge applies to B2B services" {
		t.Errorf("top hit: %+v", hit.Record)
	}
	if hit.Score < 0.999 {
		t.Errorf("score: got %f, want ~1", hit.Score)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache.db")); err != nil {
		t.Errorf("persistent cache should be created: %v", err)
	}
}

func TestSearch_LocalContext(t *testing.T) {
	dir := writeFixture(t)
	out, err := run(t, "--config", filepath.Join(dir, "config.yaml"), "search", "--context", "--k", "2", "reverse charge")
	if err != nil {
		t.Fatal(err)
	}
	want := "Reverse charge applies to B2B services | Invoices must be numbered sequentially\n"
	if out != want {
		t.Errorf("context output: got %q, want %q", out, want)
	}
}

func TestSearch_LocalMissingSource(t *testing.T) {
	dir := writeFixture(t)
	if err := os.Remove(filepath.Join(dir, "vectors.json")); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "--config", filepath.Join(dir, "config.yaml"), "search", "--output", "json", "reverse charge")
	if err != nil {
		t.Fatalf("an unavailable source should not fail the search: %v", err)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(resp.Hits) != 0 {
		t.Errorf("hits: got %d, want 0", len(resp.Hits))
	}
}

func TestSearch_InvalidFormat(t *testing.T) {
	if _, err := run(t, "search", "--output", "xml", "vat"); err == nil {
		t.Error("expected an error for an unknown output format")
	}
}

func TestSearch_ViaHTTP(t *testing.T) {
	var got models.SearchQuery
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(models.SearchResponse{
			Hits:  []models.SearchHit{{Rank: 1, Score: 0.8, Record: &models.VectorRecord{Text: "from server"}}},
			Total: 1,
		})
	}))
	defer ts.Close()

	out, err := run(t, "search", "--server", ts.URL, "--min-score", "0.4", "--output", "compact", "vat", "rate")
	if err != nil {
		t.Fatal(err)
	}
	if got.Query != "vat rate" || got.MinScore == nil || *got.MinScore != 0.4 {
		t.Errorf("request: %+v", got)
	}
	if !strings.Contains(out, "from server") {
		t.Errorf("output: %q", out)
	}
}

func TestSearch_ViaHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()
	_, err := run(t, "search", "--server", ts.URL, "vat rate")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected a server error, got %v", err)
	}
}

func TestStatus_Local(t *testing.T) {
	dir := writeFixture(t)
	cfgPath := filepath.Join(dir, "config.yaml")

	out, err := run(t, "--config", cfgPath, "status", "--output", "json")
	if err != nil {
		t.Fatal(err)
	}
	var report status.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if report.Index != nil {
		t.Error("index should not be reported without --load")
	}
	if len(report.Sources) != 2 || !report.Sources[0].Exists || !report.Sources[1].Exists {
		t.Errorf("sources: %+v", report.Sources)
	}
	if report.Cache == nil {
		t.Error("cache status expected when cache_path is set")
	}

	out, err = run(t, "--config", cfgPath, "status", "--load", "--output", "json")
	if err != nil {
		t.Fatal(err)
	}
	report = status.Report{}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Index == nil || report.Index.Size != 2 || report.Index.Dimension != testDims {
		t.Errorf("index: %+v", report.Index)
	}
	if report.LastLoad == nil || report.LastLoad.Accepted != 2 || report.LastLoad.MetadataRecords != 2 {
		t.Errorf("last load: %+v", report.LastLoad)
	}
}

func TestStatus_ViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(status.Report{
			Index:  &models.IndexStatus{Size: 5, Dimension: 3, Ready: true},
			Config: status.Settings{ScoreMode: "dot"},
		})
	}))
	defer ts.Close()

	out, err := run(t, "status", "--server", ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "index_size:         5") || !strings.Contains(out, "score_mode:         dot") {
		t.Errorf("output:\n%s", out)
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "shiori version 1.2.3") || !strings.Contains(out, "abc123") {
		t.Errorf("output: %q", out)
	}
}
