package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ResultSet holds the rows of one statement as ordered column/value pairs.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len is the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Row returns an accessor for row i.
func (rs *ResultSet) Row(i int) Row { return Row{set: rs, vals: rs.Rows[i]} }

// Row reads one row by column name.
type Row struct {
	set  *ResultSet
	vals []any
}

// Value is the raw driver value, nil for NULL or an unknown column.
func (r Row) Value(col string) any {
	for i, c := range r.set.Columns {
		if c == col && i < len(r.vals) {
			return r.vals[i]
		}
	}
	return nil
}

// Null reports whether the column is NULL or absent.
func (r Row) Null(col string) bool { return r.Value(col) == nil }

func (r Row) String(col string) string { return asString(r.Value(col)) }

func (r Row) Float(col string) float64 { return asFloat(r.Value(col)) }

func (r Row) Int(col string) int64 { return int64(asFloat(r.Value(col))) }

// Date renders date and timestamp columns as YYYY-MM-DD.
func (r Row) Date(col string) string {
	switch v := r.Value(col).(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case pgtype.Date:
		if !v.Valid {
			return ""
		}
		return v.Time.Format("2006-01-02")
	default:
		return asString(v)
	}
}

func asString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case pgtype.Text:
		if !v.Valid {
			return ""
		}
		return v.String
	case pgtype.Numeric:
		return strconv.FormatFloat(asFloat(v), 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// asFloat coerces driver numerics to float64. NULL and unparseable values are 0.
func asFloat(v any) float64 {
	switch v := v.(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case pgtype.Numeric:
		if !v.Valid || v.NaN {
			return 0
		}
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return 0
		}
		return f.Float64
	case pgtype.Float8:
		if !v.Valid {
			return 0
		}
		return v.Float64
	case pgtype.Int8:
		if !v.Valid {
			return 0
		}
		return float64(v.Int64)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// InvoiceRecord is one row of view_ai_facturas.
type InvoiceRecord struct {
	Number        string  `json:"numero_factura"`
	StatusLabel   string  `json:"estado_legible"`
	IssueDate     string  `json:"fecha_emision"`
	Currency      string  `json:"moneda"`
	Total         float64 `json:"total"`
	StreetAddress string  `json:"emisor_direccion_calle,omitempty"`
}

// AddressMatch is an invoice ranked by address similarity.
type AddressMatch struct {
	InvoiceRecord
	Score float64 `json:"score"`
}

// Percent is the similarity as a whole percentage.
func (m AddressMatch) Percent() int { return int(m.Score * 100) }

// PerformanceRecord aggregates sales, invoiced and collected amounts.
type PerformanceRecord struct {
	Found      bool
	SalesCount int64
	Invoiced   float64
	Collected  float64
}

// Pending is what has been invoiced but not collected yet.
func (p PerformanceRecord) Pending() float64 { return p.Invoiced - p.Collected }

// ZoneStatsRecord is one row of view_stats_zonas.
type ZoneStatsRecord struct {
	ZoneName      string  `json:"zona"`
	SaleCount     int64   `json:"num_ventas"`
	AvgPrice      float64 `json:"precio_medio"`
	AvgPricePerM2 float64 `json:"precio_m2_medio"`
	TotalFees     float64 `json:"total_honorarios"`
}

// AgentZone is the agent with the zone assigned to them.
type AgentZone struct {
	AgentName string
	ZoneName  string
	City      string
	HasZone   bool
}

func DecodeInvoices(rs *ResultSet) []InvoiceRecord {
	out := make([]InvoiceRecord, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		out = append(out, decodeInvoice(rs.Row(i)))
	}
	return out
}

func decodeInvoice(r Row) InvoiceRecord {
	return InvoiceRecord{
		Number:        r.String("numero_factura"),
		StatusLabel:   r.String("estado_legible"),
		IssueDate:     r.Date("fecha_emision"),
		Currency:      r.String("moneda"),
		Total:         r.Float("total"),
		StreetAddress: r.String("emisor_direccion_calle"),
	}
}

func DecodeAddressMatches(rs *ResultSet) []AddressMatch {
	out := make([]AddressMatch, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		r := rs.Row(i)
		out = append(out, AddressMatch{InvoiceRecord: decodeInvoice(r), Score: r.Float("score")})
	}
	return out
}

// DecodePerformance reads the first row. A missing row or a NULL sales sum
// yields a zero record with Found unset.
func DecodePerformance(rs *ResultSet) PerformanceRecord {
	if rs.Len() == 0 {
		return PerformanceRecord{}
	}
	r := rs.Row(0)
	if r.Null("ventas") {
		return PerformanceRecord{}
	}
	return PerformanceRecord{
		Found:      true,
		SalesCount: r.Int("ventas"),
		Invoiced:   r.Float("facturado"),
		Collected:  r.Float("cobrado"),
	}
}

func DecodeZoneStats(rs *ResultSet) []ZoneStatsRecord {
	out := make([]ZoneStatsRecord, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		r := rs.Row(i)
		out = append(out, ZoneStatsRecord{
			ZoneName:      r.String("zona"),
			SaleCount:     r.Int("num_ventas"),
			AvgPrice:      r.Float("precio_medio"),
			AvgPricePerM2: r.Float("precio_m2_medio"),
			TotalFees:     r.Float("total_honorarios"),
		})
	}
	return out
}

// DecodeAgentZone returns false when the agent does not exist.
func DecodeAgentZone(rs *ResultSet) (AgentZone, bool) {
	if rs.Len() == 0 {
		return AgentZone{}, false
	}
	r := rs.Row(0)
	return AgentZone{
		AgentName: r.String("agente_nombre"),
		ZoneName:  r.String("zona_nombre"),
		City:      r.String("ciudad"),
		HasZone:   !r.Null("zona_nombre") && r.String("zona_nombre") != "",
	}, true
}
