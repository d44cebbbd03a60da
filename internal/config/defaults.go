package config

import "time"

// Provider names accepted by EmbeddingConfig.Provider and GenerationConfig.Provider.
var (
	EmbeddingProviders  = []string{"gemini", "openai", "onnx", "hashing"}
	GenerationProviders = []string{"gemini", "openai", "anthropic", "extractive"}
)

// DefaultExtensions are the file types ingested when ingest.extensions is unset.
var DefaultExtensions = []string{".pdf", ".docx", ".pptx", ".csv", ".xlsx", ".txt", ".md"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Storage.CollectionDir == "" {
		cfg.Storage.CollectionDir = "./vector_store"
	}
	if cfg.Storage.CollectionName == "" {
		cfg.Storage.CollectionName = "documents"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploaded_docs"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 5
	}
	applyEmbeddingDefaults(&cfg.Embedding)
	applyGenerationDefaults(&cfg.Generation)
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "kotae"
	}
}

func applyEmbeddingDefaults(e *EmbeddingConfig) {
	if e.Provider == "" {
		e.Provider = "gemini"
	}
	switch e.Provider {
	case "gemini":
		setDefault(&e.Model, "embedding-001")
		setDefault(&e.APIKeyEnv, "GOOGLE_API_KEY")
		setDefaultInt(&e.Dimensions, 768)
	case "openai":
		setDefault(&e.Model, "text-embedding-3-small")
		setDefault(&e.APIKeyEnv, "OPENAI_API_KEY")
		setDefaultInt(&e.Dimensions, 1536)
	case "onnx":
		setDefault(&e.ModelPath, "./models/all-MiniLM-L6-v2.onnx")
		setDefaultInt(&e.Dimensions, 384)
		setDefaultInt(&e.MaxTokens, 256)
	case "hashing":
		setDefaultInt(&e.Dimensions, 256)
	}
	if e.CacheSize == 0 {
		e.CacheSize = 10000
	}
	if e.RequestsPerSecond == 0 {
		e.RequestsPerSecond = 10
	}
	if e.Timeout == 0 {
		e.Timeout = 60 * time.Second
	}
}

func applyGenerationDefaults(g *GenerationConfig) {
	if g.Provider == "" {
		g.Provider = "gemini"
	}
	switch g.Provider {
	case "gemini":
		setDefault(&g.Model, "gemini-1.5-flash")
		setDefault(&g.APIKeyEnv, "GOOGLE_API_KEY")
	case "openai":
		setDefault(&g.Model, "gpt-4o-mini")
		setDefault(&g.APIKeyEnv, "OPENAI_API_KEY")
	case "anthropic":
		setDefault(&g.Model, "claude-3-5-haiku-latest")
		setDefault(&g.APIKeyEnv, "ANTHROPIC_API_KEY")
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = 1024
	}
	if g.Timeout == 0 {
		g.Timeout = 90 * time.Second
	}
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}

func setDefaultInt(field *int, v int) {
	if *field == 0 {
		*field = v
	}
}
