package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Sources.VectorPath == "" {
		cfg.Sources.VectorPath = "/usr/local/var/shiori/data/vectors.json"
	}
	if cfg.Sources.MetadataPath == "" {
		cfg.Sources.MetadataPath = "/usr/local/var/shiori/data/chunks_metadata.jsonl"
	}
	if cfg.Sources.MaxRecords == 0 {
		cfg.Sources.MaxRecords = 50000
	}
	if cfg.Sources.ChunkSize == 0 {
		cfg.Sources.ChunkSize = 64 * 1024
	}
	if cfg.Sources.MaxFragmentBytes == 0 {
		cfg.Sources.MaxFragmentBytes = 16 * 1024 * 1024
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 10 * time.Second
	}
	if cfg.Embedding.RetryDelay == 0 {
		cfg.Embedding.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 6
	}
	if cfg.Search.ScoreMode == "" {
		cfg.Search.ScoreMode = "cosine"
	}
	if cfg.Search.MinQueryChars == 0 {
		cfg.Search.MinQueryChars = 3
	}
	if cfg.Search.MaxQueryChars == 0 {
		cfg.Search.MaxQueryChars = 20000
	}
	if cfg.Search.ContextSeparator == "" {
		cfg.Search.ContextSeparator = "\n\n---\n\n"
	}
	if cfg.Search.ParallelThreshold == 0 {
		cfg.Search.ParallelThreshold = 8192
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
