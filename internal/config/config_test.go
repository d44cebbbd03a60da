package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 30s
ingest:
  chunk_size: 300
  chunk_overlap: 30
embedding:
  provider: hashing
generation:
  provider: extractive
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("request_timeout: got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Ingest.ChunkSize != 300 || cfg.Ingest.ChunkOverlap != 30 {
		t.Errorf("chunking: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("hashing dimensions default: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  collection_dir: "./data/vector_store"
  upload_dir: "./data/uploads"
ingest:
  watch_directories: ["./inbox"]
embedding:
  provider: hashing
generation:
  provider: extractive
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "vector_store"); cfg.Storage.CollectionDir != want {
		t.Errorf("collection_dir = %s, want %s", cfg.Storage.CollectionDir, want)
	}
	if want := filepath.Join(dir, "data", "uploads"); cfg.Storage.UploadDir != want {
		t.Errorf("upload_dir = %s, want %s", cfg.Storage.UploadDir, want)
	}
	if len(cfg.Ingest.WatchDirectories) != 1 || cfg.Ingest.WatchDirectories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch directories: got %v", cfg.Ingest.WatchDirectories)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"overlap not below size", "ingest:\n  chunk_size: 100\n  chunk_overlap: 100\n", "chunk_overlap"},
		{"unknown embedder", "embedding:\n  provider: word2vec\n", "embedding provider"},
		{"unknown generator", "embedding:\n  provider: hashing\ngeneration:\n  provider: eliza\n", "generation provider"},
		{"nested collection name", "storage:\n  collection_name: a/b\nembedding:\n  provider: hashing\n", "collection_name"},
		{"bad yaml", "server: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_envFileNextToConfig(t *testing.T) {
	path := writeConfig(t, "embedding:\n  provider: openai\n  api_key_env: KOTAE_TEST_OPENAI_KEY\ngeneration:\n  provider: extractive\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("KOTAE_TEST_OPENAI_KEY=sk-from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("KOTAE_TEST_OPENAI_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Embedding.APIKey(); got != "sk-from-dotenv" {
		t.Errorf("APIKey: got %q", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("default chunking: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieval.DefaultK != 5 {
		t.Errorf("default k: got %d", cfg.Retrieval.DefaultK)
	}
	if cfg.Storage.CollectionName != "documents" {
		t.Errorf("default collection: got %s", cfg.Storage.CollectionName)
	}
	if cfg.Embedding.Provider != "gemini" || cfg.Embedding.Model != "embedding-001" || cfg.Embedding.APIKeyEnv != "GOOGLE_API_KEY" {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Generation.Provider != "gemini" || cfg.Generation.Model != "gemini-1.5-flash" {
		t.Errorf("default generation: %+v", cfg.Generation)
	}
	if len(cfg.Ingest.Extensions) != len(DefaultExtensions) {
		t.Errorf("default extensions: got %v", cfg.Ingest.Extensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSave_roundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Storage.CollectionDir = filepath.Join(dir, "store")
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")
	cfg.Ingest.ChunkSize = 256
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Ingest.ChunkSize != 256 {
		t.Errorf("chunk_size after round trip: got %d", loaded.Ingest.ChunkSize)
	}
	if loaded.Storage.CollectionDir != cfg.Storage.CollectionDir {
		t.Errorf("collection_dir after round trip: got %s", loaded.Storage.CollectionDir)
	}
}
