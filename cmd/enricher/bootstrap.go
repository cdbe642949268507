package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/adapters/database"
	"github.com/zatekoja/docenricher/internal/application/services"
	"github.com/zatekoja/docenricher/internal/domain/providers"
	"github.com/zatekoja/docenricher/internal/infrastructure/clients/alfresco"
	"github.com/zatekoja/docenricher/internal/infrastructure/clients/genai"
	"github.com/zatekoja/docenricher/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/docenricher/internal/infrastructure/observability"
	"github.com/zatekoja/docenricher/pkg/config"
	"github.com/zatekoja/docenricher/pkg/secrets"
)

// app holds what every command shares. closers run in reverse order.
type app struct {
	cfg     *config.Config
	repo    *alfresco.HTTPClient
	metrics *observability.Metrics
	pg      *postgres.Client
	closers []func(context.Context) error
}

func bootstrap(ctx context.Context) (*app, error) {
	vault, err := secrets.Apply(ctx, secrets.LoadConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to load vault secrets: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)
	if vault.Enabled {
		log.Info().
			Str("path", vault.Path).
			Int("loaded", vault.Loaded).
			Int("skipped", vault.Skipped).
			Strs("ignored", vault.Ignored).
			Msg("applied vault secrets")
	}

	a := &app{cfg: cfg}

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry, continuing without export")
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	a.metrics, err = observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	a.repo = alfresco.NewClient(&cfg.Alfresco)
	return a, nil
}

// dispatcher builds every action. A nil cache disables term list caching.
func (a *app) dispatcher(staticTerms string, cache providers.CacheProvider) (*services.Dispatcher, error) {
	provider, err := genai.NewClient(&a.cfg.GenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	terms := services.NewTermListSource(a.repo, cache, a.cfg.Content.Classify.TermsProperty, staticTerms, a.cfg.Redis.TermCacheTTL)

	return services.NewDispatcher(services.ActionDeps{
		Repo:          a.repo,
		Provider:      provider,
		TermLists:     terms,
		RenditionKind: a.cfg.Rendition.Kind,
		Mappings:      services.MappingsFromConfig(a.cfg.Content),
		Recorder:      a.metrics,
	})
}

// ledger connects the batch run ledger and creates its table.
func (a *app) ledger(ctx context.Context) (*database.RunAdapter, error) {
	pg, err := postgres.NewClient(ctx, &a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.pg = pg
	a.closers = append(a.closers, func(context.Context) error { return pg.Close() })

	runs := database.NewRunAdapter(pg.DB())
	if err := runs.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return runs, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("shutdown finished with errors")
	}
}
