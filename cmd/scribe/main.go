// Command scribe is the entry point for the knowledge ingestion,
// search, and reporting CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/scribe/internal/adapters/driven/config/file"
	openaiembed "github.com/custodia-labs/scribe/internal/adapters/driven/embedding/openai"
	openaillm "github.com/custodia-labs/scribe/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/scribe/internal/adapters/driven/report/filesystem"
	blevesearch "github.com/custodia-labs/scribe/internal/adapters/driven/search/bleve"
	"github.com/custodia-labs/scribe/internal/adapters/driven/storage/dual"
	"github.com/custodia-labs/scribe/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/scribe/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/scribe/internal/adapters/driving/cli"
	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/core/services"
	"github.com/custodia-labs/scribe/internal/exporters/github"
	"github.com/custodia-labs/scribe/internal/exporters/google/calendar"
	"github.com/custodia-labs/scribe/internal/exporters/google/gmail"
	"github.com/custodia-labs/scribe/internal/exporters/jira"
	"github.com/custodia-labs/scribe/internal/exporters/notion"
	"github.com/custodia-labs/scribe/internal/exporters/slack"
	"github.com/custodia-labs/scribe/internal/logger"
	"github.com/custodia-labs/scribe/internal/normalisers"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	prompts, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("create prompt store: %w", err)
	}

	store, err := sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	indexDir := cfg.GetString("storage.index_dir")
	if indexDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		indexDir = filepath.Join(home, ".scribe", "indexes")
	}
	searchIndex := blevesearch.NewIndex(indexDir)

	var llm driven.LLMService
	var embedder driven.EmbeddingService
	if apiKey := cfg.GetString("openai.api_key"); apiKey != "" {
		llmSvc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  apiKey,
			BaseURL: cfg.GetString("openai.base_url"),
			Model:   cfg.GetString("openai.llm_model"),
		})
		if err != nil {
			return fmt.Errorf("create LLM service: %w", err)
		}
		llm = llmSvc

		embedSvc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  apiKey,
			BaseURL: cfg.GetString("openai.base_url"),
			Model:   cfg.GetString("openai.embedding_model"),
		})
		if err != nil {
			return fmt.Errorf("create embedding service: %w", err)
		}
		embedder = embedSvc
	}

	// The vector index lives in memory; rebuild it from the stored
	// embeddings so vector search survives restarts.
	vectorIndex := memory.NewIndex()
	ctx := context.Background()
	for _, collection := range domain.AllCollections() {
		err := store.Embeddings(ctx, collection, func(id string, embedding []float32) error {
			return vectorIndex.Add(ctx, collection, id, embedding)
		})
		if err != nil {
			return fmt.Errorf("rebuild vector index for %s: %w", collection, err)
		}
	}

	docStore := dual.NewStore(store.DocumentStore(), searchIndex, vectorIndex, embedder)
	defer func() {
		if err := docStore.Close(); err != nil {
			logger.Warn("Close store: %v", err)
		}
	}()

	pipelines, err := buildPipelines(cfg)
	if err != nil {
		return err
	}
	ingestSvc, err := services.NewIngestService(docStore, store.RunHistoryStore(), pipelines)
	if err != nil {
		return fmt.Errorf("create ingest service: %w", err)
	}

	searchSvc := services.NewSearchService(docStore, searchIndex, vectorIndex, embedder, llm)
	searchSvc.SetPromptStore(prompts)

	sink, err := filesystem.NewSink(cfg.GetString("reports.dir"))
	if err != nil {
		return fmt.Errorf("create report sink: %w", err)
	}
	reportSvc := services.NewReportService(searchSvc, llm, sink)
	reportSvc.SetPromptStore(prompts)

	cli.SetVersion(version)
	cli.Configure(ingestSvc, searchSvc, reportSvc)
	return cli.Execute()
}

// buildPipelines assembles one pipeline per configured source.
// Sources without credentials in the config are simply not registered.
func buildPipelines(cfg *file.ConfigStore) ([]services.Pipeline, error) {
	var pipelines []services.Pipeline

	if token := cfg.GetString("gmail.token"); token != "" {
		pipelines = append(pipelines, services.Pipeline{
			Exporter: gmail.New(gmail.Config{
				Token:  token,
				Labels: cfg.GetStringSlice("gmail.labels"),
			}),
			Normaliser: normalisers.Email(),
		})
	}

	if token := cfg.GetString("slack.token"); token != "" {
		pipelines = append(pipelines, services.Pipeline{
			Exporter: slack.New(slack.Config{
				Token:    token,
				Channels: cfg.GetStringSlice("slack.channels"),
			}),
			Normaliser: normalisers.Chat(),
		})
	}

	if token := cfg.GetString("notion.token"); token != "" {
		pipelines = append(pipelines, services.Pipeline{
			Exporter:   notion.New(notion.Config{Token: token}),
			Normaliser: normalisers.Wiki(),
		})
	}

	if baseURL := cfg.GetString("jira.base_url"); baseURL != "" {
		exporter, err := jira.New(jira.Config{
			BaseURL:  baseURL,
			Email:    cfg.GetString("jira.email"),
			APIToken: cfg.GetString("jira.api_token"),
			Project:  cfg.GetString("jira.project"),
		})
		if err != nil {
			return nil, fmt.Errorf("create jira exporter: %w", err)
		}
		pipelines = append(pipelines, services.Pipeline{
			Exporter:   exporter,
			Normaliser: normalisers.Issue(),
		})
	}

	if token := cfg.GetString("github.token"); token != "" {
		pipelines = append(pipelines, services.Pipeline{
			Exporter: github.New(github.Config{
				Token:        token,
				Owner:        cfg.GetString("github.owner"),
				Repos:        cfg.GetStringSlice("github.repos"),
				SkipComments: cfg.GetBool("github.skip_comments"),
			}),
			Normaliser: normalisers.PullRequest(),
		})
	}

	if token := cfg.GetString("calendar.token"); token != "" {
		pipelines = append(pipelines, services.Pipeline{
			Exporter: calendar.New(calendar.Config{
				Token:      token,
				CalendarID: cfg.GetString("calendar.calendar_id"),
			}),
			Normaliser: normalisers.Calendar(),
		})
	}

	return pipelines, nil
}
