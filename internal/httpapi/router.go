// Package httpapi exposes the agent tools as a JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/you/agentdesk/internal/agent"
	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/identity"
	"github.com/you/agentdesk/internal/metrics"
	"github.com/you/agentdesk/internal/store"
)

const (
	maxRequestSize = 1024 * 1024 // 1MB max request size

	headerAgentCIF   = "X-Agent-CIF"
	headerAgentEmail = "X-Agent-Email"

	transportLabel = "http"
)

// Service is the tool set served over HTTP.
type Service interface {
	Invoices(ctx context.Context, c identity.Caller, raw filter.Raw) (agent.InvoiceResult, error)
	SearchAddress(ctx context.Context, c identity.Caller, term string) (agent.AddressResult, error)
	Performance(ctx context.Context, email string, year int) (store.PerformanceRecord, error)
	AgentZone(ctx context.Context, email string) (store.AgentZone, error)
	ZoneStats(ctx context.Context, name string, limit *int) ([]store.ZoneStatsRecord, error)
	Ping(ctx context.Context) error
	Mode() identity.Mode
}

// Options tunes the router.
type Options struct {
	ServiceName    string
	RateLimitRPS   float64
	RateLimitBurst int
}

type handler struct {
	svc      Service
	metrics  *metrics.Metrics
	validate *validator.Validate
	name     string
}

// NewRouter builds the chi router with every route and middleware. m may be
// nil, in which case nothing is recorded and /metrics is not mounted.
func NewRouter(svc Service, m *metrics.Metrics, opts Options) http.Handler {
	h := &handler{svc: svc, metrics: m, validate: validator.New(), name: opts.ServiceName}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		accessLog,
		middleware.Recoverer,
		requestSizeLimitMiddleware,
	)

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/", h.root)
	r.Get("/health", h.health)

	r.Route("/tools", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst), m))
		}
		r.Post("/consultar-facturas", h.invoices)
		r.Post("/buscar-propiedad", h.searchAddress)
		r.Post("/mi-performance", h.performance)
		r.Get("/mi-zona", h.agentZone)
		r.Post("/stats-zonas", h.zoneStats)
	})
	return r
}

// requestSizeLimitMiddleware limits the size of incoming requests
func requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// rateLimit shares one token bucket across all tool routes.
func rateLimit(l *rate.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				log.Warn().Str("path", r.URL.Path).Msg("too many requests")
				m.Observe(r.URL.Path, transportLabel, metrics.OutcomeLimited, time.Now())
				writeDetail(w, r, http.StatusTooManyRequests, "Demasiadas solicitudes, inténtalo más tarde.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Detail: msg})
}
