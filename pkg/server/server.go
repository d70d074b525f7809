// Package server exposes the local status API. It is unauthenticated by
// design: the engine runs on the home network next to the devices it drives.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/cheapcharge/cheapcharge/pkg/app"
	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/override"
	"github.com/cheapcharge/cheapcharge/pkg/schedule"
	"github.com/cheapcharge/cheapcharge/pkg/storage"
	"github.com/cheapcharge/cheapcharge/pkg/timeutil"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles the HTTP status API for the engine.
type Server struct {
	app     *app.App
	storage storage.Database

	listenAddr string
	httpServer *http.Server
	now        func() time.Time
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(a *app.App, s storage.Database) *Server {
	srv := &Server{
		app:     a,
		storage: s,
		now:     time.Now,
	}
	listenAddr := lflag.String("http-listen", ":8080", "HTTP server listen address")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history/decisions", s.handleDecisionHistory)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return gziphandler.GzipHandler(mux)
}

// statusResponse is the payload of GET /api/status.
type statusResponse struct {
	Now      time.Time      `json:"now"`
	Settings types.Settings `json:"settings"`

	// Schedule is the cheapest contiguous window shown to the user; the
	// on/off decision runs on a separate selection.
	Schedule []types.PriceBlock `json:"schedule"`

	ControlState      types.ChargingControlState `json:"controlState"`
	OverrideActive    bool                       `json:"overrideActive"`
	OverrideRemaining int                        `json:"overrideRemainingMinutes,omitempty"`
	NextPriceUpdate   time.Time                  `json:"nextPriceUpdate"`
	CachedBlocks      int                        `json:"cachedBlocks"`
	ChargerInfo       types.ChargerInfo          `json:"chargerInfo"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	state, err := s.storage.GetControlState(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read control state", slog.Any("error", err))
		writeJSONError(w, "failed to read control state", http.StatusInternalServerError)
		return
	}

	cache, settings, info := s.app.Snapshot()
	nowMS := now.UnixMilli()

	resp := statusResponse{
		Now:             now,
		Settings:        settings,
		Schedule:        schedule.CheapestWindow(cache, settings.LowPriceBlocksCount, now),
		ControlState:    state,
		OverrideActive:  override.IsActive(state.ManualOverrideTimestamp, nowMS),
		NextPriceUpdate: now.Add(timeutil.Next15MinuteBoundary(now)),
		CachedBlocks:    len(cache),
		ChargerInfo:     info,
	}
	if resp.OverrideActive {
		resp.OverrideRemaining = override.RemainingMinutes(state.ManualOverrideTimestamp, nowMS)
	}

	writeJSON(w, resp)
}

func (s *Server) handleDecisionHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	// default to the last 24 hours
	start := now.Add(-24 * time.Hour)
	end := now
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start", http.StatusBadRequest)
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid end", http.StatusBadRequest)
			return
		}
		end = t
	}

	decisions, err := s.storage.GetDecisionHistory(ctx, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read decision history", slog.Any("error", err))
		writeJSONError(w, "failed to read decision history", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []types.Decision{}
	}

	writeJSON(w, struct {
		Decisions []types.Decision `json:"decisions"`
	}{Decisions: decisions})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}
