package format

import (
	"fmt"

	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/store"
)

// InvoiceFilters echoes every criterion plus the resolved key. Unset values are null.
type InvoiceFilters struct {
	Status   *string `json:"estado"`
	DateFrom *string `json:"fecha_inicio"`
	DateTo   *string `json:"fecha_fin"`
	Limit    int     `json:"limit"`
	AgentCIF string  `json:"agent_cif"`
}

type InvoiceEnvelope struct {
	Count   int                   `json:"count"`
	Data    []store.InvoiceRecord `json:"data"`
	Filters InvoiceFilters        `json:"filtros_aplicados"`
	Message string                `json:"mensaje,omitempty"`
}

// Invoices builds the HTTP envelope. An empty result carries an explicit message.
func Invoices(rows []store.InvoiceRecord, c filter.Criteria, key string) InvoiceEnvelope {
	if rows == nil {
		rows = []store.InvoiceRecord{}
	}
	env := InvoiceEnvelope{
		Count: len(rows),
		Data:  rows,
		Filters: InvoiceFilters{
			Status:   optional(c.StatusString()),
			DateFrom: optional(c.DateFromString()),
			DateTo:   optional(c.DateToString()),
			Limit:    c.Limit,
			AgentCIF: key,
		},
	}
	if len(rows) == 0 {
		env.Message = NoInvoices
	}
	return env
}

type AddressEnvelope struct {
	Found   bool                 `json:"encontrados"`
	Results []store.AddressMatch `json:"resultados"`
	Query   string               `json:"query_original"`
	Message string               `json:"mensaje,omitempty"`
}

func AddressMatches(term string, rows []store.AddressMatch) AddressEnvelope {
	if rows == nil {
		rows = []store.AddressMatch{}
	}
	env := AddressEnvelope{Found: len(rows) > 0, Results: rows, Query: term}
	if len(rows) == 0 {
		env.Message = NoAddressMatch(term)
	}
	return env
}

type PerformanceData struct {
	Sales     int64   `json:"ventas"`
	Invoiced  float64 `json:"facturado"`
	Collected float64 `json:"cobrado"`
	Pending   float64 `json:"pendiente_cobro"`
}

type PerformanceEnvelope struct {
	Period  any             `json:"periodo"`
	Kind    string          `json:"tipo"`
	Message string          `json:"mensaje,omitempty"`
	Data    PerformanceData `json:"data"`
}

// AllTimeLabel names the career-wide period.
const AllTimeLabel = "Histórico Total"

// Performance reports a year when year > 0, the whole career otherwise. A
// missing row reports zeros with a message.
func Performance(p store.PerformanceRecord, year int) PerformanceEnvelope {
	env := PerformanceEnvelope{Period: AllTimeLabel, Kind: "Acumulado"}
	if year > 0 {
		env.Period, env.Kind = year, "Anual"
	}
	if !p.Found {
		if year > 0 {
			env.Message = fmt.Sprintf("No hay datos registrados para el año %d.", year)
		} else {
			env.Message = "No hay datos registrados para este agente."
		}
		return env
	}
	env.Data = PerformanceData{
		Sales:     p.SalesCount,
		Invoiced:  p.Invoiced,
		Collected: p.Collected,
		Pending:   p.Pending(),
	}
	return env
}

type ZoneInfo struct {
	Name string `json:"nombre"`
	City string `json:"ciudad,omitempty"`
}

type AgentZoneEnvelope struct {
	Agent   string    `json:"agente"`
	HasZone bool      `json:"tiene_zona"`
	Zone    *ZoneInfo `json:"zona,omitempty"`
	Message string    `json:"mensaje,omitempty"`
}

func AgentZone(az store.AgentZone) AgentZoneEnvelope {
	if !az.HasZone {
		return AgentZoneEnvelope{
			Agent:   az.AgentName,
			Message: "No tienes una zona asignada actualmente.",
		}
	}
	return AgentZoneEnvelope{
		Agent:   az.AgentName,
		HasZone: true,
		Zone:    &ZoneInfo{Name: az.ZoneName, City: az.City},
	}
}

type ZoneStatsEnvelope struct {
	Count      int                     `json:"count"`
	SearchKind string                  `json:"tipo_busqueda,omitempty"`
	Message    string                  `json:"mensaje,omitempty"`
	Data       []store.ZoneStatsRecord `json:"data"`
}

func ZoneStats(name string, rows []store.ZoneStatsRecord) ZoneStatsEnvelope {
	if len(rows) == 0 {
		return ZoneStatsEnvelope{
			Message: fmt.Sprintf(NoZoneData, name),
			Data:    []store.ZoneStatsRecord{},
		}
	}
	kind := "Top Mercado"
	if name != "" {
		kind = "Específica"
	}
	return ZoneStatsEnvelope{Count: len(rows), SearchKind: kind, Data: rows}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
