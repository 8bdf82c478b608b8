package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	vectors := filepath.Join(dir, "vectors.json")
	if err := os.WriteFile(vectors, []byte("[{}]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	shards := filepath.Join(dir, "shards")
	if err := os.MkdirAll(filepath.Join(shards, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shards, "a.jsonl"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shards, "nested", "b.jsonl"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{vectors}, 5},
		{"directory", []string{shards}, 3},
		{"file and directory", []string{vectors, shards}, 8},
		{"missing path skipped", []string{vectors, filepath.Join(dir, "nonexistent"), shards}, 8},
		{"empty path skipped", []string{"", vectors}, 5},
		{"object storage skipped", []string{"s3://bucket/vectors.json", vectors}, 5},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
