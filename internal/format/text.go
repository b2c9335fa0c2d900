// Package format shapes decoded rows into what each transport sends back:
// short Spanish summaries for MCP tools and JSON envelopes for the HTTP API.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/store"
)

const (
	NoInvoices = "No se encontraron facturas con esos criterios."
	NoZoneData = "No se encontraron datos para la zona '%s'"
)

// InvoicesText lists invoices and mentions only the filters the caller set.
func InvoicesText(rows []store.InvoiceRecord, c filter.Criteria) string {
	if len(rows) == 0 {
		return NoInvoices
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d factura(s)", len(rows))
	if applied := appliedFilters(c); len(applied) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(applied, ", "))
	}
	b.WriteString(":\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "- Factura %s (%s): %s %s. Fecha: %s\n",
			r.Number, r.StatusLabel, Money(r.Total), r.Currency, r.IssueDate)
	}
	return b.String()
}

func appliedFilters(c filter.Criteria) []string {
	var out []string
	if c.Status != nil {
		out = append(out, "estado: "+c.StatusString())
	}
	switch {
	case c.DateFrom != nil && c.DateTo != nil:
		out = append(out, fmt.Sprintf("periodo: %s a %s", c.DateFromString(), c.DateToString()))
	case c.DateFrom != nil:
		out = append(out, "desde: "+c.DateFromString())
	case c.DateTo != nil:
		out = append(out, "hasta: "+c.DateToString())
	}
	return out
}

// NoAddressMatch is the explicit empty answer of the fuzzy search.
func NoAddressMatch(term string) string {
	return fmt.Sprintf("No encontré ninguna factura relacionada con la dirección '%s'.", term)
}

// AddressMatchesText ranks matches and shows the stored address so the caller
// can confirm it.
func AddressMatchesText(term string, rows []store.AddressMatch) string {
	if len(rows) == 0 {
		return NoAddressMatch(term)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Resultados para '%s':\n", term)
	for _, r := range rows {
		fmt.Fprintf(&b, "- [Coincidencia: %d%%] Propiedad: '%s' -> Factura %s (%s): %s %s.\n",
			r.Percent(), r.StreetAddress, r.Number, r.StatusLabel, Money(r.Total), r.Currency)
	}
	return b.String()
}

// Money renders an amount with two decimals.
func Money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
