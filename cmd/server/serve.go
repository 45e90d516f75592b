package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"absorbchess/internal/app"
	"absorbchess/internal/bot"
	"absorbchess/internal/clock"
	"absorbchess/internal/config"
	"absorbchess/internal/lobby"
	"absorbchess/internal/logging"
	"absorbchess/internal/match"
	"absorbchess/internal/session"
	"absorbchess/internal/storage"
	"absorbchess/internal/transport/ws"
)

// Serve wires every collaborator together and blocks serving HTTP until the
// command context is cancelled, grounded on the teacher's ServePage
// (build collaborators from Config, start background tasks, run an
// http.Server, shut down cleanly on context cancellation).
func Serve(ctx context.Context, cfg *Config) error {
	logging.SetVerbose(cfg.verbose)
	if err := config.Load(cfg.settingsPath); err != nil {
		return err
	}
	settings := config.Get()

	store, err := storage.Open(cfg.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	lobbies := lobby.NewRegistry()
	queue := lobby.NewQueue()
	matches := match.NewRegistry()
	svc := app.NewService()
	hub := session.NewHub()

	minDelay, maxDelay := settings.BotDelays()
	agent := bot.NewAgent(bot.NewMaterialBrain(), settings.Bot.DepthHint, settings.Bot.TimeBudgetMs, minDelay, maxDelay)

	clientLobby, restoredRunning, err := rebuildFromSnapshot(store, lobbies, matches, svc, agent)
	if err != nil {
		return err
	}
	logging.Infof("rebuild: restored %d running match(es) from snapshot", len(restoredRunning))

	// The secret is persisted (rather than re-randomized every launch) so a
	// reconnect_token issued before a restart still verifies afterward -
	// otherwise rebuilding Lobbies from the snapshot would be pointless,
	// since no previously-connected client could ever reattach to its seat.
	secret, err := store.LoadOrCreateSecret()
	if err != nil {
		return err
	}
	signer := session.NewReconnectSigner(secret, cfg.gracePeriod*4)

	srv := session.NewServer(hub, lobbies, queue, matches, svc, store, signer, agent, session.Config{
		GraceMs:                cfg.gracePeriod.Milliseconds(),
		PromotionCancelAllowed: cfg.promotionCancelAllowed,
	})
	srv.ResumeAfterRestart(clientLobby, restoredRunning)

	scanner := clock.NewScanner(matches, hub, cfg.scanInterval)
	scanner.SetPersister(srv)
	scanner.Start()
	defer scanner.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.Handler(srv))

	httpServer := &http.Server{Addr: cfg.bind, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("listening on %s", cfg.bind)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
