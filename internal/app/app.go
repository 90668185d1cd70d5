package app

import (
	"context"
	"net/http"

	"session-service/internal/config"
)

type App struct {
	httpServer  *http.Server
	infra       *Infra
	stopCleanup context.CancelFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	router, infra, err := setupHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	startCleanupWorker(cleanupCtx, infra.Store, cfg.CleanupInterval)

	return &App{
		httpServer:  server,
		infra:       infra,
		stopCleanup: stopCleanup,
	}, nil
}

func (a *App) Run() error {
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.stopCleanup()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return a.infra.Close()
}
