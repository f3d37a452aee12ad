// Package app wires the race service runtime: storage, notification bus,
// matchmaking manager, lifecycle ticker, and the HTTP/WebSocket surface.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coderace/coderace/internal/exercise"
	"github.com/coderace/coderace/internal/password"
	apperrors "github.com/coderace/coderace/internal/platform/errors"
	"github.com/coderace/coderace/internal/platform/timeouts"
	"github.com/coderace/coderace/internal/race/domain"
	"github.com/coderace/coderace/internal/race/events"
	"github.com/coderace/coderace/internal/race/service"
	"github.com/coderace/coderace/internal/race/storage"
	racesqlite "github.com/coderace/coderace/internal/race/storage/sqlite"
	"github.com/coderace/coderace/internal/transport/ws"
)

// RuntimeConfig controls server startup and lifecycle behavior.
type RuntimeConfig struct {
	Port         int
	DBPath       string
	NATSURL      string
	Countdown    time.Duration
	JoinLock     time.Duration
	TickInterval time.Duration
}

const (
	defaultServerPort = 8080
	defaultServerDB   = "data/coderace.db"
)

// Run starts the runtime dependencies and serves until ctx is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultServerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultServerDB
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = service.DefaultTickInterval
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := racesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close sqlite store: %v", closeErr)
		}
	}()

	stores := service.Stores{Players: store, Races: store}

	// Any rows left over from a previous process are stale: in-flight races
	// cannot survive a restart, so the fleet resets before anything is served.
	report, err := service.FleetReset(ctx, stores)
	if err != nil {
		return fmt.Errorf("fleet reset: %w", err)
	}
	log.Printf("fleet reset: %d players cleared, %d races reset", report.PlayersCleared, report.RacesReset)

	bus := events.NewBus()
	publisher := events.Publisher(bus)
	if strings.TrimSpace(cfg.NATSURL) != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer natsPublisher.Close()
		publisher = events.Fanout{bus, natsPublisher}
	}

	manager := service.NewManager(stores, publisher)
	exercises := exercise.NewService(store)

	tickConfig := domain.TickConfig{Countdown: cfg.Countdown, JoinLock: cfg.JoinLock}
	ticker := service.NewTicker(store, publisher, cfg.TickInterval, tickConfig)
	tickerDone := make(chan error, 1)
	go func() {
		tickerDone <- ticker.Run(ctx)
	}()

	hub := ws.NewHub(bus, nil)
	defer hub.Stop()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	server := &http.Server{
		Handler:           Handler(manager, exercises, store, hub),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	log.Printf("server listening at %v", listener.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	<-serveErr
	<-tickerDone
	return nil
}

// Handler builds the HTTP surface: registration and login, matchmaking
// endpoints, exercise intake, the websocket observer gateway, and a health
// probe.
func Handler(manager *service.Manager, exercises *exercise.Service, players storage.PlayerStore, hub *ws.Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /ws", hub)

	mux.HandleFunc("POST /api/players", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerID string `json:"player_id"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.PlayerID) == "" {
			http.Error(w, "player id is required", http.StatusBadRequest)
			return
		}
		if _, err := players.GetPlayer(r.Context(), req.PlayerID); err == nil {
			writeError(w, apperrors.New(apperrors.CodePlayerExists, "player id is taken"))
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			writeError(w, err)
			return
		}
		hash, err := password.Hash(req.Password)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		now := time.Now().UTC()
		player := domain.Player{
			ID:           req.PlayerID,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := players.PutPlayer(r.Context(), player); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerID string `json:"player_id"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		player, err := players.GetPlayer(r.Context(), req.PlayerID)
		if errors.Is(err, storage.ErrNotFound) {
			// Same response as a wrong password so callers cannot enumerate ids.
			writeError(w, apperrors.New(apperrors.CodeInvalidCredentials, "invalid player id or password"))
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		if !password.Compare(player.PasswordHash, req.Password) {
			writeError(w, apperrors.New(apperrors.CodeInvalidCredentials, "invalid player id or password"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/races", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerID string         `json:"player_id"`
			Options  map[string]any `json:"options"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		race, err := manager.Create(r.Context(), req.PlayerID, req.Options)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, race)
	})

	mux.HandleFunc("POST /api/races/{id}/join", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerID string `json:"player_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		race, err := manager.Join(r.Context(), req.PlayerID, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, race)
	})

	mux.HandleFunc("POST /api/quit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerID string `json:"player_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := manager.Quit(r.Context(), req.PlayerID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/races/{id}/finish", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerID  string  `json:"player_id"`
			ElapsedMS int64   `json:"elapsed_ms"`
			Speed     float64 `json:"speed"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		elapsed := time.Duration(req.ElapsedMS) * time.Millisecond
		if err := manager.CompleteWithWinner(r.Context(), r.PathValue("id"), req.PlayerID, elapsed, req.Speed); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/exercises", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Source   string `json:"source"`
			Language string `json:"language"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		created, err := exercises.Create(r.Context(), req.Source, req.Language)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	})

	mux.HandleFunc("GET /api/exercises/{id}", func(w http.ResponseWriter, r *http.Request) {
		found, err := exercises.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	})

	return mux
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Code.HTTPStatus(), map[string]string{
			"code":  string(appErr.Code),
			"error": appErr.Message,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"code":  string(apperrors.CodeInternal),
		"error": err.Error(),
	})
}
