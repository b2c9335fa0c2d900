// Package agent runs the read-only tools offered to real estate agents. Every
// tool follows the same path: validate the input, authorize the caller, build
// a parameterized statement, run it and decode the rows.
package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/identity"
	"github.com/you/agentdesk/internal/metrics"
	"github.com/you/agentdesk/internal/query"
	"github.com/you/agentdesk/internal/store"
)

// Tool names, shared by logs, metrics and both transports.
const (
	ToolInvoices    = "consultar_facturas"
	ToolAddress     = "buscar_propiedad"
	ToolPerformance = "mi_performance"
	ToolZone        = "mi_zona"
	ToolZoneStats   = "stats_zonas"
)

// DefaultZoneStatsLimit applies when stats-zonas gets no limit.
const DefaultZoneStatsLimit = 10

// ErrAgentNotFound is returned by AgentZone for an unknown email.
var ErrAgentNotFound = errors.New("Agente no encontrado en el sistema.")

// Pinger is implemented by row sources that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service is safe for concurrent use; it keeps no per-request state.
type Service struct {
	billing     store.RowSource
	performance store.RowSource
	auth        identity.Authorizer
	maxRows     int
}

// New wires a service. performance may be nil, in which case billing serves
// the performance and zone views too. maxRows caps every result size.
func New(billing, performance store.RowSource, auth identity.Authorizer, maxRows int) *Service {
	if performance == nil {
		performance = billing
	}
	return &Service{billing: billing, performance: performance, auth: auth, maxRows: maxRows}
}

// Mode reports how callers are authorized.
func (s *Service) Mode() identity.Mode { return s.auth.Mode() }

// InvoiceResult is the outcome of an invoice lookup.
type InvoiceResult struct {
	Criteria filter.Criteria
	Key      string
	Rows     []store.InvoiceRecord
}

// Invoices lists the caller's invoices matching raw.
func (s *Service) Invoices(ctx context.Context, c identity.Caller, raw filter.Raw) (InvoiceResult, error) {
	call := s.begin(ToolInvoices, c)

	crit, err := filter.Validate(raw)
	if err != nil {
		call.audit("", "validation failed", false)
		return InvoiceResult{}, err
	}
	crit.Limit = minNonZero(crit.Limit, s.maxRows)

	key, err := s.auth.Authorize(ctx, c)
	if err != nil {
		call.audit("", "authorization failed", false)
		return InvoiceResult{}, err
	}

	st := query.Invoices(crit, key)
	rs, err := s.billing.Query(ctx, st)
	if err != nil {
		call.fail(st, err)
		return InvoiceResult{}, err
	}
	rows := store.DecodeInvoices(rs)
	call.done(st, len(rows))
	return InvoiceResult{Criteria: crit, Key: key, Rows: rows}, nil
}

// AddressResult is the outcome of a fuzzy address search.
type AddressResult struct {
	Term string
	Key  string
	Rows []store.AddressMatch
}

// SearchAddress ranks the caller's invoices by street address similarity.
func (s *Service) SearchAddress(ctx context.Context, c identity.Caller, term string) (AddressResult, error) {
	call := s.begin(ToolAddress, c)

	term, err := filter.SearchTerm(term)
	if err != nil {
		call.audit("", "validation failed", false)
		return AddressResult{}, err
	}

	key, err := s.auth.Authorize(ctx, c)
	if err != nil {
		call.audit("", "authorization failed", false)
		return AddressResult{}, err
	}

	st := query.AddressSearch(term, key)
	rs, err := s.billing.Query(ctx, st)
	if err != nil {
		call.fail(st, err)
		return AddressResult{}, err
	}
	rows := store.DecodeAddressMatches(rs)
	call.done(st, len(rows))
	return AddressResult{Term: term, Key: key, Rows: rows}, nil
}

// Performance reads the sales figures of the agent behind email for year, or
// for the whole career when year is 0. The email is a lookup key only.
func (s *Service) Performance(ctx context.Context, email string, year int) (store.PerformanceRecord, error) {
	email = identity.Normalize(email)
	call := s.begin(ToolPerformance, identity.Caller{Email: email})
	if email == "" {
		call.audit("", "validation failed", false)
		return store.PerformanceRecord{}, filter.ErrMissingIdentity
	}
	if year < 0 {
		call.audit("", "validation failed", false)
		return store.PerformanceRecord{}, filter.ErrInvalidYear
	}

	st := query.CareerPerformance(email)
	if year > 0 {
		st = query.AnnualPerformance(email, year)
	}
	rs, err := s.performance.Query(ctx, st)
	if err != nil {
		call.fail(st, err)
		return store.PerformanceRecord{}, err
	}
	rec := store.DecodePerformance(rs)
	call.done(st, rs.Len())
	return rec, nil
}

// AgentZone reads the zone assigned to the agent behind email.
func (s *Service) AgentZone(ctx context.Context, email string) (store.AgentZone, error) {
	email = identity.Normalize(email)
	call := s.begin(ToolZone, identity.Caller{Email: email})
	if email == "" {
		call.audit("", "validation failed", false)
		return store.AgentZone{}, filter.ErrMissingIdentity
	}

	st := query.AgentZone(email)
	rs, err := s.performance.Query(ctx, st)
	if err != nil {
		call.fail(st, err)
		return store.AgentZone{}, err
	}
	az, ok := store.DecodeAgentZone(rs)
	if !ok {
		call.audit(st.SQL, "agent not found", false)
		return store.AgentZone{}, ErrAgentNotFound
	}
	call.done(st, 1)
	return az, nil
}

// ZoneStats ranks zones by sales, optionally narrowed to names containing
// name. A nil limit means DefaultZoneStatsLimit.
func (s *Service) ZoneStats(ctx context.Context, name string, limit *int) ([]store.ZoneStatsRecord, error) {
	call := s.begin(ToolZoneStats, identity.Caller{})

	n := DefaultZoneStatsLimit
	if limit != nil {
		if *limit < 1 {
			call.audit("", "validation failed", false)
			return nil, filter.ErrInvalidLimit
		}
		n = *limit
	}

	st := query.ZoneStats(name, minNonZero(n, s.maxRows))
	rs, err := s.performance.Query(ctx, st)
	if err != nil {
		call.fail(st, err)
		return nil, err
	}
	rows := store.DecodeZoneStats(rs)
	call.done(st, len(rows))
	return rows, nil
}

// Ping checks the billing database, then the performance one when distinct.
func (s *Service) Ping(ctx context.Context) error {
	for _, src := range []store.RowSource{s.billing, s.performance} {
		p, ok := src.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			return err
		}
		if s.billing == s.performance {
			break
		}
	}
	return nil
}

// Outcome maps the result of a tool call to a metrics outcome label.
func Outcome(err error, empty bool) string {
	switch {
	case err == nil && empty:
		return metrics.OutcomeEmpty
	case err == nil:
		return metrics.OutcomeOK
	case filter.IsValidation(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, identity.ErrAccessDenied):
		return metrics.OutcomeDenied
	case errors.Is(err, ErrAgentNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

type call struct {
	id     string
	tool   string
	user   string
	logger zerolog.Logger
}

func (s *Service) begin(tool string, c identity.Caller) *call {
	user := identity.Normalize(c.Email)
	if user == "" {
		user = c.Key
	}
	id := uuid.NewString()
	return &call{
		id:     id,
		tool:   tool,
		user:   user,
		logger: log.With().Str("call_id", id).Str("tool", tool).Logger(),
	}
}

func (c *call) done(st query.Statement, rows int) {
	c.logger.Debug().Int("rows", rows).Int("args", len(st.Args)).Msg("tool call completed")
	c.audit(st.SQL, "ok", true)
}

func (c *call) fail(st query.Statement, err error) {
	c.logger.Error().Err(err).Msg("query failed")
	c.audit(st.SQL, err.Error(), false)
}

// audit logs security-relevant events
func (c *call) audit(sql, result string, success bool) {
	log.Info().
		Str("event", c.tool).
		Str("call_id", c.id).
		Str("user", c.user).
		Str("query", sql).
		Str("result", result).
		Bool("success", success).
		Msg("audit_log")
}

func minNonZero(v, max int) int {
	if max <= 0 {
		return v
	}
	if v <= 0 {
		return max
	}
	if v > max {
		return max
	}
	return v
}
