package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/BRAVO68WEB/echohook/internal/infrastructure/config"
	obs "github.com/BRAVO68WEB/echohook/internal/infrastructure/observability"
	"github.com/BRAVO68WEB/echohook/internal/live"
	"github.com/BRAVO68WEB/echohook/internal/usecase"
)

type Deps struct {
	Cfg      config.Config
	Logger   *zerolog.Logger
	Metrics  *obs.Metrics
	Sessions *usecase.SessionService
	Capture  *usecase.CaptureService
	Live     *live.Registry
	Store    usecase.HealthChecker
	// StartedAt is the process start used for uptime reporting.
	StartedAt time.Time
	// PingInterval overrides the stream heartbeat; zero means live.PingInterval.
	PingInterval time.Duration
}

// ingestMethods are the verbs accepted on /i/{id}.
var ingestMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

func NewRouter(d *Deps) http.Handler {
	if d.Logger == nil {
		l := zerolog.Nop()
		d.Logger = &l
	}
	if d.Metrics == nil {
		d.Metrics = obs.NewMetrics()
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withCORS(d.Cfg))

	r.Get("/health", d.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	r.Post("/c", d.handleCreateSession)
	r.Get("/r/{id}", d.handleHistory)
	r.Get("/s/{id}", d.handleStream)
	r.Get("/ws/{id}", d.handleWSStream)
	for _, m := range ingestMethods {
		r.Method(m, "/i/{id}", http.HandlerFunc(d.handleIngest))
		r.Method(m, "/i/{id}/*", http.HandlerFunc(d.handleIngest))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func isIngestPath(p string) bool { return strings.HasPrefix(p, "/i/") }

// withCORS answers preflights everywhere except ingestion, where OPTIONS is
// an ordinary captured call.
func withCORS(cfg config.Config) func(http.Handler) http.Handler {
	anyOrigin := cfg.AllowsAnyOrigin()
	allowed := make(map[string]struct{}, len(cfg.CORSAllowedOrigins))
	for _, o := range cfg.CORSAllowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case anyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" && !isIngestPath(r.URL.Path) {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Cache-Control")
				w.Header().Set("Access-Control-Max-Age", "3600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

// allowedOrigin returns the origin to advertise on a stream response.
func allowedOrigin(cfg config.Config, r *http.Request) string {
	origin := r.Header.Get("Origin")
	if cfg.AllowsAnyOrigin() {
		if origin != "" {
			return origin
		}
		return "*"
	}
	for _, o := range cfg.CORSAllowedOrigins {
		if o == origin {
			return origin
		}
	}
	return ""
}
