// Package config loads hybridsearch's TOML configuration via viper, with
// defaults matching the on-disk layout and retrieval tuning described in
// config/default.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Paths controls where hybridsearch keeps its on-disk state.
type Paths struct {
	DataDir    string   `mapstructure:"dataDir"`
	ModelDir   string   `mapstructure:"modelDir"`
	WatchPaths []string `mapstructure:"watchPaths"`
}

// Privacy tunes at-rest protections for the data directory.
type Privacy struct {
	EnableSqlcipher bool `mapstructure:"enableSqlcipher"`
}

// Retrieval tunes the hybrid BM25+ANN+rerank pipeline.
type Retrieval struct {
	BM25K1     float64 `mapstructure:"bm25K1"`
	BM25B      float64 `mapstructure:"bm25B"`
	AnnEf      int     `mapstructure:"annEf"`
	AnnM       int     `mapstructure:"annM"`
	Alpha      float64 `mapstructure:"alpha"`
	Beta       float64 `mapstructure:"beta"`
	RerankTop  int     `mapstructure:"rerankTop"`
	FinalTop   int     `mapstructure:"finalTop"`
}

// Ingest tunes document ingestion.
type Ingest struct {
	MaxFileMB         int      `mapstructure:"maxFileMB"`
	AllowedMimeGroups []string `mapstructure:"allowedMimeGroups"`
	ChunkSize         int      `mapstructure:"chunkSize"`
	Overlap           int      `mapstructure:"overlap"`
}

// Embeddings selects the embedding/reranking backend.
type Embeddings struct {
	Provider string `mapstructure:"provider"` // "ollama" or "static"
	BaseURL  string `mapstructure:"baseURL"`
	Model    string `mapstructure:"model"`
}

// API configures the HTTP surface.
type API struct {
	Bind        string   `mapstructure:"bind"`
	CorsOrigins []string `mapstructure:"corsOrigins"`
}

// Config is the root configuration object, loaded from config/default.toml
// (or the path given by --config), overridable by HYBRIDSEARCH_* env vars.
type Config struct {
	Paths      Paths      `mapstructure:"paths"`
	Retrieval  Retrieval  `mapstructure:"retrieval"`
	Ingest     Ingest     `mapstructure:"ingest"`
	Embeddings Embeddings `mapstructure:"embeddings"`
	API        API        `mapstructure:"api"`
	Privacy    Privacy    `mapstructure:"privacy"`
}

// Default returns the configuration baked into config/default.toml, matching
// spec.md §6's exact defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    "./data",
			ModelDir:   "./models",
			WatchPaths: nil,
		},
		Retrieval: Retrieval{
			BM25K1:    1.2,
			BM25B:     0.75,
			AnnEf:     100,
			AnnM:      16,
			Alpha:     0.35,
			Beta:      0.65,
			RerankTop: 50,
			FinalTop:  10,
		},
		Ingest: Ingest{
			MaxFileMB:         500,
			AllowedMimeGroups: []string{"pdf", "text"},
			ChunkSize:         800,
			Overlap:           120,
		},
		Embeddings: Embeddings{
			Provider: "static",
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		API: API{
			Bind:        ":8080",
			CorsOrigins: []string{"*"},
		},
		Privacy: Privacy{
			EnableSqlcipher: false,
		},
	}
}

// Load reads TOML configuration from path, falling back to Default() values
// for anything unset, and applying HYBRIDSEARCH_-prefixed environment
// variable overrides (e.g. HYBRIDSEARCH_API_BIND).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("hybridsearch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	setDefaults(v, def)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("paths.dataDir", d.Paths.DataDir)
	v.SetDefault("paths.modelDir", d.Paths.ModelDir)
	v.SetDefault("paths.watchPaths", d.Paths.WatchPaths)
	v.SetDefault("retrieval.bm25K1", d.Retrieval.BM25K1)
	v.SetDefault("retrieval.bm25B", d.Retrieval.BM25B)
	v.SetDefault("retrieval.annEf", d.Retrieval.AnnEf)
	v.SetDefault("retrieval.annM", d.Retrieval.AnnM)
	v.SetDefault("retrieval.alpha", d.Retrieval.Alpha)
	v.SetDefault("retrieval.beta", d.Retrieval.Beta)
	v.SetDefault("retrieval.rerankTop", d.Retrieval.RerankTop)
	v.SetDefault("retrieval.finalTop", d.Retrieval.FinalTop)
	v.SetDefault("ingest.maxFileMB", d.Ingest.MaxFileMB)
	v.SetDefault("ingest.allowedMimeGroups", d.Ingest.AllowedMimeGroups)
	v.SetDefault("ingest.chunkSize", d.Ingest.ChunkSize)
	v.SetDefault("ingest.overlap", d.Ingest.Overlap)
	v.SetDefault("embeddings.provider", d.Embeddings.Provider)
	v.SetDefault("embeddings.baseURL", d.Embeddings.BaseURL)
	v.SetDefault("embeddings.model", d.Embeddings.Model)
	v.SetDefault("api.bind", d.API.Bind)
	v.SetDefault("api.corsOrigins", d.API.CorsOrigins)
	v.SetDefault("privacy.enableSqlcipher", d.Privacy.EnableSqlcipher)
}
