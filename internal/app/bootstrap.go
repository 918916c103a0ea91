package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"recall/internal/adapter/gemini"
	"recall/internal/adapter/pdf"
	"recall/internal/config"
	"recall/internal/corpus"
	"recall/internal/index"
	"recall/internal/retrieval"
	"recall/internal/summary"
	"recall/internal/text"
)

// Bootstrap builds the full dependency graph from config and prepares both
// indices: the corpus is loaded from durable storage or ingested fresh, the
// summary index is loaded. The returned cleanup closes everything.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gemini client: %w", err)
	}

	cleanup := func() { _ = client.Close() }
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Resolved once: an ingestion in progress must not switch modes.
	mode := index.ResolveMode(cfg.DataRoot, cfg.Ephemeral)
	slog.Info("storage mode resolved", "mode", mode.String(), "data_root", cfg.DataRoot)

	corpusIdx, err := index.Open("corpus", mode, cfg.DataRoot)
	if err != nil {
		return fail(fmt.Errorf("opening corpus index: %w", err))
	}
	summaryIdx, err := index.Open("summaries", mode, cfg.DataRoot)
	if err != nil {
		corpusIdx.Close()
		return fail(fmt.Errorf("opening summary index: %w", err))
	}

	prev := cleanup
	cleanup = func() {
		_ = corpusIdx.Close()
		_ = summaryIdx.Close()
		prev()
	}

	embedder := gemini.NewEmbedder(client, cfg.EmbeddingModel, cfg.MaxEmbedChars)
	summarizer := gemini.NewSummarizer(client, cfg.GenerationModel)
	vision := gemini.NewVision(client, cfg.VisionModel)

	splitter := text.NewSplitter(
		text.WithChunkSize(cfg.ChunkSize),
		text.WithChunkOverlap(cfg.ChunkOverlap),
	)

	corpusStore := corpus.NewStore(cfg.CorpusDir, splitter, pdf.NewExtractor(), embedder, corpusIdx)
	summaryStore := summary.NewStore(cfg.SummaryDir, embedder, summaryIdx, summarizer,
		summary.WithTruncateLimit(cfg.SummaryTruncateLimit))

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stderr", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stderr)
	}

	svc := retrieval.NewService(corpusStore, summaryStore, vision, queryLogger)

	if err := prepareCorpus(ctx, corpusStore); err != nil {
		cleanup()
		return nil, nil, err
	}
	if n, err := summaryStore.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("loading summary index: %w", err)
	} else if n > 0 {
		slog.Info("summary index loaded", "entries", n)
	}

	return New(cfg, corpusStore, summaryStore, svc, os.Stdin, os.Stdout), cleanup, nil
}

// prepareCorpus reuses a durable index when one exists and falls back to a
// fresh ingestion otherwise. An empty corpus directory is not fatal; search
// stays unavailable until documents arrive.
func prepareCorpus(ctx context.Context, store *corpus.Store) error {
	err := store.LoadExisting(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, index.ErrNotReady) {
		return err
	}

	ok, err := store.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingesting corpus: %w", err)
	}
	if !ok {
		slog.Warn("corpus is empty, search is unavailable until documents are added")
	}
	return nil
}
