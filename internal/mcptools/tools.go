// Package mcptools publishes the invoice tools to MCP clients over stdio or
// HTTP SSE.
package mcptools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/you/agentdesk/internal/agent"
	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/format"
	"github.com/you/agentdesk/internal/identity"
	"github.com/you/agentdesk/internal/metrics"
)

// Tool names as seen by MCP clients.
const (
	ToolInvoices = "consultar_mis_facturas"
	ToolAddress  = "buscar_factura_por_propiedad"
)

const transportLabel = "mcp"

// Service is the subset of the agent service the MCP tools need.
type Service interface {
	Invoices(ctx context.Context, c identity.Caller, raw filter.Raw) (agent.InvoiceResult, error)
	SearchAddress(ctx context.Context, c identity.Caller, term string) (agent.AddressResult, error)
	Mode() identity.Mode
}

type invoicesInput struct {
	Email    string `json:"email_agente,omitempty" jsonschema:"email of the agent asking; required when the server delegates authorization"`
	Status   string `json:"estado,omitempty" jsonschema:"PENDIENTE or PAGADA"`
	DateFrom string `json:"fecha_inicio,omitempty" jsonschema:"first issue date, YYYY-MM-DD"`
	DateTo   string `json:"fecha_fin,omitempty" jsonschema:"last issue date, YYYY-MM-DD"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"maximum number of invoices, default 5"`
}

type addressInput struct {
	Email string `json:"email_agente,omitempty" jsonschema:"email of the agent asking; required when the server delegates authorization"`
	Query string `json:"query_direccion" jsonschema:"street address or part of it, typos allowed"`
}

type toolOutput struct {
	Count int    `json:"count"`
	Text  string `json:"text"`
}

type tools struct {
	svc     Service
	metrics *metrics.Metrics
}

// NewServer builds an MCP server exposing both tools.
func NewServer(svc Service, m *metrics.Metrics, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "agentdesk", Version: version}, nil)
	Register(server, svc, m)
	return server
}

// Register adds the tools to an existing server.
func Register(server *mcp.Server, svc Service, m *metrics.Metrics) {
	t := &tools{svc: svc, metrics: m}
	mcp.AddTool(server, &mcp.Tool{
		Name: ToolInvoices,
		Description: "Lista las facturas del agente, de la más reciente a la más antigua. " +
			"Filtros opcionales: estado (PENDIENTE o PAGADA), fecha_inicio y fecha_fin (YYYY-MM-DD) y limit.",
	}, t.handleInvoices)
	mcp.AddTool(server, &mcp.Tool{
		Name: ToolAddress,
		Description: "Busca facturas del agente por la dirección del inmueble, tolerando errores de escritura. " +
			"Devuelve hasta 3 coincidencias ordenadas por parecido.",
	}, t.handleAddress)
}

func (t *tools) handleInvoices(ctx context.Context, _ *mcp.CallToolRequest, in invoicesInput) (*mcp.CallToolResult, toolOutput, error) {
	start := time.Now()
	log.Debug().Str("tool", ToolInvoices).Str("estado", in.Status).
		Str("fecha_inicio", in.DateFrom).Str("fecha_fin", in.DateTo).Msg("request")

	if err := t.requireEmail(in.Email); err != nil {
		t.metrics.Observe(agent.ToolInvoices, transportLabel, metrics.OutcomeInvalid, start)
		return failure(err, "Error en sistema de facturación"), toolOutput{}, nil
	}
	res, err := t.svc.Invoices(ctx, identity.Caller{Email: in.Email}, filter.Raw{
		Status:   in.Status,
		DateFrom: in.DateFrom,
		DateTo:   in.DateTo,
		Limit:    in.Limit,
	})
	t.metrics.Observe(agent.ToolInvoices, transportLabel, agent.Outcome(err, len(res.Rows) == 0), start)
	if err != nil {
		return failure(err, "Error en sistema de facturación"), toolOutput{}, nil
	}
	return success(len(res.Rows), format.InvoicesText(res.Rows, res.Criteria))
}

func (t *tools) handleAddress(ctx context.Context, _ *mcp.CallToolRequest, in addressInput) (*mcp.CallToolResult, toolOutput, error) {
	start := time.Now()
	log.Debug().Str("tool", ToolAddress).Str("query_direccion", strings.TrimSpace(in.Query)).Msg("request")

	if err := t.requireEmail(in.Email); err != nil {
		t.metrics.Observe(agent.ToolAddress, transportLabel, metrics.OutcomeInvalid, start)
		return failure(err, "Error buscando propiedad"), toolOutput{}, nil
	}
	res, err := t.svc.SearchAddress(ctx, identity.Caller{Email: in.Email}, in.Query)
	t.metrics.Observe(agent.ToolAddress, transportLabel, agent.Outcome(err, len(res.Rows) == 0), start)
	if err != nil {
		return failure(err, "Error buscando propiedad"), toolOutput{}, nil
	}
	return success(len(res.Rows), format.AddressMatchesText(res.Term, res.Rows))
}

// requireEmail rejects calls without an email when authorization is delegated.
func (t *tools) requireEmail(email string) error {
	if t.svc.Mode() == identity.ModeDelegated && strings.TrimSpace(email) == "" {
		return filter.ErrMissingIdentity
	}
	return nil
}

func success(n int, text string) (*mcp.CallToolResult, toolOutput, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, toolOutput{Count: n, Text: text}, nil
}

// failure renders err as tool text. Store failures are logged and replaced
// by internal, which never carries connection details.
func failure(err error, internal string) *mcp.CallToolResult {
	var text string
	switch {
	case filter.IsValidation(err):
		text = "Error: " + err.Error()
	case errors.Is(err, identity.ErrAccessDenied):
		text = err.Error()
	default:
		log.Error().Err(err).Msg("tool call failed")
		text = internal + "."
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
