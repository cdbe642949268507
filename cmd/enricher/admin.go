package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/docenricher/internal/api/handlers"
	"github.com/zatekoja/docenricher/internal/api/routes"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
)

// startAdmin serves health and ledger endpoints until the app closes.
// runs may be nil.
func (a *app) startAdmin(checks map[string]handlers.Check, runs repositories.RunRepository) error {
	if !a.cfg.Admin.Enabled() {
		return nil
	}

	if checks == nil {
		checks = make(map[string]handlers.Check)
	}
	checks["alfresco"] = func(ctx context.Context) error {
		_, err := a.repo.GetNode(ctx, "-root-")
		return err
	}
	if a.pg != nil {
		checks["ledger"] = func(ctx context.Context) error {
			return a.pg.DB().PingContext(ctx)
		}
	}

	var runsHandler *handlers.RunsHandler
	if runs != nil {
		runsHandler = handlers.NewRunsHandler(runs)
	}
	router := routes.NewRouter(handlers.NewHealthHandler(checks, 3*time.Second), runsHandler, a.metrics)

	listener, err := net.Listen("tcp", a.cfg.Admin.Addr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin server stopped")
		}
	}()
	log.Info().Str("addr", listener.Addr().String()).Msg("admin endpoint listening")

	a.closers = append(a.closers, server.Shutdown)
	return nil
}
