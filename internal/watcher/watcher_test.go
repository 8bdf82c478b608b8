package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	vectors := filepath.Join(dir, "vectors.json")
	if err := writeFile(vectors, "[]"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{vectors}, rec.onChange, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := writeFile(vectors, `[{"embedding":[1]}]`); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one change callback for the burst, got %d: %v", len(got), got)
	}
	if got[0] != vectors {
		t.Errorf("path: got %q, want %q", got[0], vectors)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")

	rec := &recorder{}
	w := NewWatcher([]string{meta}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "notes.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("unrelated file should not trigger a change: %v", got)
	}
}

func TestWatcher_SeesReplaceByRename(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")
	if err := writeFile(meta, `{"text":"a"}`); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{meta}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	tmp := filepath.Join(dir, "meta.jsonl.tmp")
	if err := writeFile(tmp, `{"text":"b"}`); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, meta); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := rec.snapshot(); len(got) == 0 {
		t.Error("expected a change after the file was replaced")
	}
}

func TestWatcher_StopDropsPending(t *testing.T) {
	dir := t.TempDir()
	vectors := filepath.Join(dir, "vectors.json")

	rec := &recorder{}
	w := NewWatcher([]string{vectors}, rec.onChange, WithDebounce(200*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(vectors, "[]"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()
	time.Sleep(350 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("no callback expected after Stop, got %v", got)
	}
}

func TestWatcher_Start_createsMissingDirectory(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "data", "later", "vectors.json")

	w := NewWatcher([]string{file}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(filepath.Dir(file)); err != nil {
		t.Errorf("parent directory should exist after Start: %v", err)
	}
}

func TestNewWatcher_Files(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "b.jsonl")
	b := filepath.Join(dir, "a.json")
	w := NewWatcher([]string{a, "", b, a}, nil)
	got := w.Files()
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Errorf("Files() = %v", got)
	}
	if dirs := w.dirs(); len(dirs) != 1 || dirs[0] != dir {
		t.Errorf("dirs() = %v, want [%s]", dirs, dir)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
