package main

import (
	"context"
	"fmt"

	"github.com/jonathan/career-coach/internal/config"
	"github.com/jonathan/career-coach/internal/db"
	"github.com/jonathan/career-coach/internal/llm"
	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/observability"
	"github.com/jonathan/career-coach/internal/pipeline"
	"github.com/jonathan/career-coach/internal/prompts"
	"github.com/jonathan/career-coach/internal/tokens"
	"github.com/jonathan/career-coach/internal/tools"
)

// app holds the collaborators shared by serve and run.
type app struct {
	db       *db.DB
	tools    *tools.Registry
	router   *llm.Router
	client   llm.Client
	pipeline *pipeline.Pipeline
}

func initLogging(cfg config.Config) {
	logx.Init(logx.Options{Production: cfg.IsProduction(), Level: cfg.LogLevel})
}

// newApp connects to the database and builds the pipeline. Call close when done.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	registry, err := tools.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load tools: %w", err)
	}
	if registry, err = registry.WithCosts(cfg.ToolCosts); err != nil {
		return nil, fmt.Errorf("failed to apply tool costs: %w", err)
	}

	llmCfg, err := llm.ConfigFor(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.LLM.FallbackModel != "" {
		llmCfg = llmCfg.WithFallbackModel(cfg.LLM.FallbackModel)
	}
	router, err := llm.NewRouter(llmCfg, registry.RouteSpecs()).LoadRoutesFile(cfg.ModelRoutesFile)
	if err != nil {
		return nil, err
	}

	assembler, err := prompts.NewTemplateAssembler(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	client, err := llm.NewClient(ctx, llmCfg.Provider, llm.ClientOptions{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p, err := pipeline.New(pipeline.Deps{
		Store:     database,
		Tools:     registry,
		Router:    router,
		Prompts:   assembler,
		Invoker:   llm.NewInvoker(client, llm.WithTimeouts(cfg.LLM.PrimaryTimeout, cfg.LLM.FallbackTimeout)),
		Settler:   tokens.NewSettler(database, tokens.DefaultSettleTimeout),
		Referrals: tokens.NewReferralTrigger(database, cfg.ReferralRewardTokens),
		Metrics:   metrics,
	})
	if err != nil {
		database.Close()
		_ = client.Close()
		return nil, err
	}

	logx.Info().
		Str("provider", string(llmCfg.Provider)).
		Str("fallback_model", router.FallbackModel()).
		Int("tools", len(registry.IDs())).
		Msg("pipeline ready")

	return &app{db: database, tools: registry, router: router, client: client, pipeline: p}, nil
}

func (a *app) close() {
	if err := a.client.Close(); err != nil {
		logx.Warn().Err(err).Msg("llm client close failed")
	}
	a.db.Close()
}
