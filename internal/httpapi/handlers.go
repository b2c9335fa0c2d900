package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/you/agentdesk/internal/agent"
	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/format"
	"github.com/you/agentdesk/internal/identity"
	"github.com/you/agentdesk/internal/metrics"
	"github.com/you/agentdesk/internal/store"
)

type invoicesRequest struct {
	Status   string `json:"estado"`
	DateFrom string `json:"fecha_inicio"`
	DateTo   string `json:"fecha_fin"`
	Limit    *int   `json:"limit"`
}

type addressRequest struct {
	Query string `json:"query_direccion" validate:"required"`
}

type performanceRequest struct {
	Year *int `json:"anyo" validate:"omitempty,min=1900,max=2100"`
}

type zoneStatsRequest struct {
	Name  string `json:"nombre_zona" validate:"max=100"`
	Limit *int   `json:"limit"`
}

type agentHeaders struct {
	Email string `validate:"required"`
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"service":   h.name,
		"version":   "1.0.0",
		"status":    "running",
		"auth_mode": h.svc.Mode(),
		"endpoints": map[string]string{
			"health":             "/health",
			"metrics":            "/metrics",
			"consultar_facturas": "/tools/consultar-facturas",
			"buscar_propiedad":   "/tools/buscar-propiedad",
			"mi_performance":     "/tools/mi-performance",
			"mi_zona":            "/tools/mi-zona",
			"stats_zonas":        "/tools/stats-zonas",
		},
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("health check failed")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, healthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Service:  h.name,
			Error:    err.Error(),
		})
		return
	}
	render.JSON(w, r, healthResponse{Status: "healthy", Database: "connected", Service: h.name})
}

func (h *handler) invoices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lg := requestLogger(r, agent.ToolInvoices)

	var req invoicesRequest
	if !h.decode(w, r, lg, &req) {
		h.metrics.Observe(agent.ToolInvoices, transportLabel, metrics.OutcomeInvalid, start)
		return
	}

	res, err := h.svc.Invoices(r.Context(), caller(r), filter.Raw{
		Status:   req.Status,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Limit:    req.Limit,
	})
	h.metrics.Observe(agent.ToolInvoices, transportLabel, agent.Outcome(err, len(res.Rows) == 0), start)
	if err != nil {
		h.fail(w, r, lg, err)
		return
	}
	render.JSON(w, r, format.Invoices(res.Rows, res.Criteria, res.Key))
}

func (h *handler) searchAddress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lg := requestLogger(r, agent.ToolAddress)

	var req addressRequest
	if !h.decode(w, r, lg, &req) || !h.check(w, r, lg, req) {
		h.metrics.Observe(agent.ToolAddress, transportLabel, metrics.OutcomeInvalid, start)
		return
	}

	res, err := h.svc.SearchAddress(r.Context(), caller(r), req.Query)
	h.metrics.Observe(agent.ToolAddress, transportLabel, agent.Outcome(err, len(res.Rows) == 0), start)
	if err != nil {
		h.fail(w, r, lg, err)
		return
	}
	render.JSON(w, r, format.AddressMatches(res.Term, res.Rows))
}

func (h *handler) performance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lg := requestLogger(r, agent.ToolPerformance)

	var req performanceRequest
	hdr := agentHeaders{Email: r.Header.Get(headerAgentEmail)}
	if !h.decode(w, r, lg, &req) || !h.check(w, r, lg, hdr) || !h.check(w, r, lg, req) {
		h.metrics.Observe(agent.ToolPerformance, transportLabel, metrics.OutcomeInvalid, start)
		return
	}

	year := 0
	if req.Year != nil {
		year = *req.Year
	}
	rec, err := h.svc.Performance(r.Context(), hdr.Email, year)
	h.metrics.Observe(agent.ToolPerformance, transportLabel, agent.Outcome(err, !rec.Found), start)
	if err != nil {
		h.fail(w, r, lg, err)
		return
	}
	render.JSON(w, r, format.Performance(rec, year))
}

func (h *handler) agentZone(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lg := requestLogger(r, agent.ToolZone)

	hdr := agentHeaders{Email: r.Header.Get(headerAgentEmail)}
	if !h.check(w, r, lg, hdr) {
		h.metrics.Observe(agent.ToolZone, transportLabel, metrics.OutcomeInvalid, start)
		return
	}

	az, err := h.svc.AgentZone(r.Context(), hdr.Email)
	h.metrics.Observe(agent.ToolZone, transportLabel, agent.Outcome(err, !az.HasZone), start)
	if err != nil {
		h.fail(w, r, lg, err)
		return
	}
	render.JSON(w, r, format.AgentZone(az))
}

func (h *handler) zoneStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lg := requestLogger(r, agent.ToolZoneStats)

	var req zoneStatsRequest
	if !h.decode(w, r, lg, &req) || !h.check(w, r, lg, req) {
		h.metrics.Observe(agent.ToolZoneStats, transportLabel, metrics.OutcomeInvalid, start)
		return
	}

	name := strings.TrimSpace(req.Name)
	rows, err := h.svc.ZoneStats(r.Context(), name, req.Limit)
	h.metrics.Observe(agent.ToolZoneStats, transportLabel, agent.Outcome(err, len(rows) == 0), start)
	if err != nil {
		h.fail(w, r, lg, err)
		return
	}
	render.JSON(w, r, format.ZoneStats(name, rows))
}

// caller forwards both identity headers; the configured authorizer decides
// which one it trusts.
func caller(r *http.Request) identity.Caller {
	return identity.Caller{
		Email: r.Header.Get(headerAgentEmail),
		Key:   r.Header.Get(headerAgentCIF),
	}
}

func requestLogger(r *http.Request, tool string) zerolog.Logger {
	return log.With().
		Str("tool", tool).
		Str("request_id", middleware.GetReqID(r.Context())).
		Logger()
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, lg zerolog.Logger, v any) bool {
	if r.Body == nil {
		return true
	}
	err := render.DecodeJSON(r.Body, v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	lg.Error().Err(err).Msg("failed to decode request")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeDetail(w, r, http.StatusRequestEntityTooLarge, "La petición es demasiado grande.")
		return false
	}
	writeDetail(w, r, http.StatusBadRequest, "Cuerpo de la petición inválido.")
	return false
}

func (h *handler) check(w http.ResponseWriter, r *http.Request, lg zerolog.Logger, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	lg.Warn().Err(err).Msg("validation failed")
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, validationError(verrs))
		return false
	}
	writeDetail(w, r, http.StatusUnprocessableEntity, err.Error())
	return false
}

// fail maps a service error to its status code. Internal details are logged,
// never returned.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, lg zerolog.Logger, err error) {
	switch {
	case filter.IsValidation(err):
		lg.Info().Err(err).Msg("rejected input")
		writeDetail(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrAccessDenied):
		lg.Warn().Err(err).Msg("access denied")
		writeDetail(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, agent.ErrAgentNotFound):
		writeDetail(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConnectivity):
		lg.Error().Err(err).Msg("database unavailable")
		writeDetail(w, r, http.StatusInternalServerError, "Error de conexión con el sistema de facturación")
	default:
		lg.Error().Err(err).Msg("tool call failed")
		writeDetail(w, r, http.StatusInternalServerError, "Error interno al consultar los datos.")
	}
}
