// Package cmd provides the hybridsearch CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/localdex/hybridsearch/internal/config"
	"github.com/localdex/hybridsearch/internal/embed"
	"github.com/localdex/hybridsearch/internal/ingest"
	"github.com/localdex/hybridsearch/internal/logging"
	"github.com/localdex/hybridsearch/internal/search"
	"github.com/localdex/hybridsearch/internal/store"
	"github.com/localdex/hybridsearch/internal/watch"
)

var configPath string

// NewRootCmd builds the hybridsearch root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hybridsearch",
		Short: "Local-first hybrid document search engine",
		Long: `hybridsearch indexes documents into coupled BM25, vector and record
stores and serves hybrid (lexical + semantic) search over them, entirely
on-disk with no external services required.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config/default.toml", "path to TOML configuration file")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app bundles the wired storage, embedding and retrieval stack shared by
// every subcommand.
type app struct {
	cfg       config.Config
	manager   *store.Manager
	lock      *store.DataDirLock
	embedder  embed.Embedder
	reranker  embed.Reranker
	retriever *search.Retriever
	pipeline  *ingest.Pipeline
	watcher   *watch.Watcher
}

// newApp loads configuration and opens the record/inverted/vector stores
// under an exclusive data-directory lock, then wires the embedder,
// reranker, retriever and ingest pipeline around them.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logging.SetupDefault(cfg.Paths.DataDir); err != nil {
		slog.Warn("logging setup failed, continuing with default logger", "error", err)
	}

	lock := store.NewDataDirLock(cfg.Paths.DataDir)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data directory %s is already locked by another hybridsearch process", cfg.Paths.DataDir)
	}

	embedder, reranker := buildEmbedders(cfg)

	records, err := store.OpenRecordStore(cfg.Paths.DataDir)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open record store: %w", err)
	}
	inverted, err := store.OpenInvertedIndex(cfg.Paths.DataDir)
	if err != nil {
		records.Close()
		lock.Unlock()
		return nil, fmt.Errorf("open inverted index: %w", err)
	}
	vector, err := store.OpenVectorIndex(cfg.Paths.DataDir, embedder.Dimensions())
	if err != nil {
		inverted.Close()
		records.Close()
		lock.Unlock()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	manager := store.NewManager(records, inverted, vector)

	retrieverCfg := search.Config{
		Alpha:     cfg.Retrieval.Alpha,
		Beta:      cfg.Retrieval.Beta,
		RerankTop: cfg.Retrieval.RerankTop,
		FinalTop:  cfg.Retrieval.FinalTop,
	}

	ingestCfg := ingest.Config{
		MaxFileMB:         cfg.Ingest.MaxFileMB,
		AllowedMimeGroups: cfg.Ingest.AllowedMimeGroups,
		ChunkSize:         cfg.Ingest.ChunkSize,
		Overlap:           cfg.Ingest.Overlap,
	}

	pipeline := ingest.New(manager, embedder, ingestCfg, ingest.DefaultHandlers())

	var watcher *watch.Watcher
	if len(cfg.Paths.WatchPaths) > 0 {
		watcher, err = watch.New(func(ctx context.Context, path string) error {
			_, err := pipeline.IngestPath(ctx, path)
			return err
		})
		if err != nil {
			slog.Warn("watch: disabled, failed to initialize", "error", err)
			watcher = nil
		}
	}

	return &app{
		cfg:       cfg,
		manager:   manager,
		lock:      lock,
		embedder:  embedder,
		reranker:  reranker,
		retriever: search.New(manager, embedder, reranker, retrieverCfg),
		pipeline:  pipeline,
		watcher:   watcher,
	}, nil
}

// buildEmbedders selects the Ollama or static embedding backend per
// cfg.Embeddings.Provider, matching spec.md §6's embeddings.provider key.
// The chosen embedder is wrapped in an LRU cache so repeated chunk text
// across re-ingests and repeated queries skip the network/compute round
// trip. The reranker does not go through that cache: the Ollama reranker
// calls the uncached base embedder, and the static reranker embeds with its
// own StaticEmbedder.
func buildEmbedders(cfg config.Config) (embed.Embedder, embed.Reranker) {
	var base *embed.OllamaEmbedder
	var reranker embed.Reranker

	if cfg.Embeddings.Provider == "ollama" {
		base = embed.NewOllamaEmbedder(embed.OllamaConfig{
			Host:  cfg.Embeddings.BaseURL,
			Model: cfg.Embeddings.Model,
		})
		cached := embed.NewCachedEmbedder(base, embed.DefaultEmbeddingCacheSize)
		return cached, embed.NewOllamaReranker(base)
	}

	reranker = embed.NewStaticReranker()
	return embed.NewCachedEmbedder(embed.NewStaticEmbedder(), embed.DefaultEmbeddingCacheSize), reranker
}

func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.reranker != nil {
		a.reranker.Close()
	}
	if a.manager != nil {
		a.manager.Close()
	}
	if a.lock != nil {
		a.lock.Unlock()
	}
}
