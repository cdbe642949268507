package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/docenricher/internal/adapters/cache"
	"github.com/zatekoja/docenricher/internal/adapters/events"
	apihandlers "github.com/zatekoja/docenricher/internal/api/handlers"
	"github.com/zatekoja/docenricher/internal/application/services"
	redisclient "github.com/zatekoja/docenricher/internal/infrastructure/clients/redis"
)

const termListCacheName = "termlist"

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Enrich documents as repository events arrive",
	Long: "listen subscribes to node events bridged from the repository and runs\n" +
		"the configured actions (LISTENER_ACTIONS) when a tracked aspect is added,\n" +
		"content changes or the required rendition appears.",
	RunE: runListen,
}

func runListen(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rc, err := redisclient.NewClient(ctx, &a.cfg.Redis)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return rc.Close() })

	termCache := cache.NewRedisAdapter(rc.Client(), termListCacheName, a.metrics)
	dispatcher, err := a.dispatcher("", termCache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build actions")
	}
	actions, err := dispatcher.ValidateKinds(a.cfg.Listener.Actions...)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid listener actions")
	}

	bus := events.NewRedisEventBus(rc.Client())
	a.closers = append(a.closers, func(context.Context) error { return bus.Close() })

	handlers := services.BuildHandlers(actions, services.HandlerOptions{
		ContentNodeType:   a.cfg.Listener.ContentNodeType,
		RenditionNodeType: a.cfg.Listener.RenditionNodeType,
		RenditionKind:     a.cfg.Rendition.Kind,
	})
	svc := services.NewCompletionService(a.repo, bus, a.cfg.Redis.EventsChannel, handlers, a.cfg.Listener.EventTimeout, a.cfg.Listener.Workers)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	readiness := map[string]apihandlers.Check{
		"redis": func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() },
	}
	if err := a.startAdmin(readiness, nil); err != nil {
		return fmt.Errorf("failed to start admin endpoint: %w", err)
	}

	log.Info().Str("channel", a.cfg.Redis.EventsChannel).Int("handlers", len(handlers)).Msg("listening for node events")

	select {
	case <-ctx.Done():
	case <-svc.Done():
		svc.Stop()
		// A non-zero exit lets the supervisor restart the listener.
		return errors.New("event subscription closed")
	}
	svc.Stop()
	return nil
}
