package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/leveler/internal/api"
	"github.com/starford/leveler/internal/chat"
	"github.com/starford/leveler/internal/metrics"
	"github.com/starford/leveler/internal/sse"
)

func newHTTPHandler(cfg *Config, svc *services, bot *chat.Bot, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(svc))

	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api; the SSE stream sits behind the same auth.
	r.Mount("/api", api.NewRouter(bot, svc.queries, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	return r
}

// readyHandler reports 503 when the ledger is unreachable. A down or stale
// cache only degrades the report since leaderboards fall back to the ledger.
func readyHandler(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := svc.ledger.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","ledger":"down"}`))
			return
		}

		cache := "disabled"
		if svc.cache != nil {
			synced, err := svc.cache.Synced(ctx)
			switch {
			case err != nil:
				cache = "down"
			case synced:
				cache = "ok"
			default:
				cache = "stale"
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","ledger":"ok","cache":"` + cache + `"}`))
	}
}
