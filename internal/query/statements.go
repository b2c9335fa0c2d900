package query

import (
	"strings"

	"github.com/you/agentdesk/internal/filter"
)

// AddressMatchLimit is the size of the ranked fuzzy search result.
const AddressMatchLimit = 3

// SimilarityFloor is the pg_trgm similarity_threshold the % operator applies.
const SimilarityFloor = 0.3

const invoicesBase = `SELECT numero_factura, estado_legible, fecha_emision, moneda, total, emisor_direccion_calle
FROM view_ai_facturas`

// Invoices lists the invoices of one agent, newest first.
func Invoices(c filter.Criteria, key string) Statement {
	return New(invoicesBase).
		Where("emisor_cif = ?", key).
		WhereIf(c.Status != nil, "estado_legible = ?", c.StatusString()).
		WhereIf(c.DateFrom != nil, "fecha_emision >= ?::date", c.DateFromString()).
		WhereIf(c.DateTo != nil, "fecha_emision <= ?::date", c.DateToString()).
		OrderBy("fecha_emision DESC").
		Limit(c.Limit).
		Build()
}

// AddressSearch ranks the agent's invoices by trigram similarity of the street
// address. The term binds twice: once for the score, once for the filter.
func AddressSearch(term, key string) Statement {
	return New(`SELECT numero_factura, estado_legible, fecha_emision, moneda, total, emisor_direccion_calle,
       similarity(emisor_direccion_calle, ?) AS score
FROM view_ai_facturas`, term).
		Where("emisor_cif = ?", key).
		Where("emisor_direccion_calle % ?", term).
		OrderBy("score DESC").
		Limit(AddressMatchLimit).
		Build()
}

// ZoneStats ranks zones by sales. A zone name filter is a case-insensitive
// contains match.
func ZoneStats(name string, limit int) Statement {
	name = strings.TrimSpace(name)
	return New(`SELECT zona, num_ventas, precio_medio, precio_m2_medio, total_honorarios
FROM view_stats_zonas`).
		WhereIf(name != "", `zona ILIKE ? ESCAPE '\'`, "%"+escapeLike(name)+"%").
		OrderBy("num_ventas DESC").
		Limit(limit).
		Build()
}

// AnnualPerformance reads one year of the agent's performance row.
func AnnualPerformance(identity string, year int) Statement {
	return New(`SELECT ventas, facturado, cobrado
FROM view_agente_performance_anual`).
		Where("LOWER(correo) = LOWER(?)", identity).
		Where("anyo = ?", year).
		Build()
}

// CareerPerformance sums every year of the agent's performance.
func CareerPerformance(identity string) Statement {
	return New(`SELECT SUM(ventas) AS ventas, SUM(facturado) AS facturado, SUM(cobrado) AS cobrado
FROM view_agente_performance_anual`).
		Where("LOWER(correo) = LOWER(?)", identity).
		Build()
}

// AgentZone reads the agent and the zone assigned to them, if any.
func AgentZone(identity string) Statement {
	return New(`SELECT a.nombre AS agente_nombre, z.nombre AS zona_nombre, z.ciudad
FROM agentes a
LEFT JOIN zonas z ON z.id = a.zona_id`).
		Where("LOWER(a.correo) = LOWER(?)", identity).
		Build()
}

// ResolveIdentity maps an email to the authorization key. Both sides are case
// folded at query time.
func ResolveIdentity(identity string) Statement {
	return New(`SELECT cif FROM contacto_agentes`).
		Where("LOWER(email) = LOWER(?)", identity).
		Build()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
