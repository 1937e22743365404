package httptransport

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"holdem-server/internal/config"
	"holdem-server/internal/tablegateway"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Pinger reports backing store health. *store.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires the table API. db is nil when the server runs without
// durable storage; pub is nil when events are not streamed in process.
func NewRouter(cfg config.ServerConfig, coord *tablegateway.Coordinator, pub *tablegateway.TopicPublisher, db Pinger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", HealthHandler(db))

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Route("/tables", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			tablegateway.Routes(r, coord, pub)
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Route("/debug", func(r chi.Router) {
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricHealthChecks.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if db == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "disabled"})
			return
		}
		if err := db.Ping(r.Context()); err != nil {
			metricHealthFailures.Add(1)
			log.Warn().Err(err).Msg("health check ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
