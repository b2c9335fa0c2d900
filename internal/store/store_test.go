package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardReadOnly(t *testing.T) {
	ok := []string{
		"SELECT 1",
		"SELECT numero_factura FROM view_ai_facturas\nWHERE emisor_cif = $1\nLIMIT $2",
		"WITH x AS (SELECT 1) SELECT * FROM x LIMIT 5",
		"SELECT 1;",
	}
	bad := []string{
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET a=1",
		"DELETE FROM t",
		"ALTER TABLE t ADD COLUMN x int",
		"DROP TABLE t",
		"TRUNCATE t",
		"CREATE TABLE t(x int)",
		"COPY facturas FROM '/tmp/x.csv'",
		"SELECT 1; SELECT 2",
		"SELECT 1; SELECT 2;",
	}
	for _, q := range ok {
		if err := guardReadOnly(q); err != nil {
			t.Fatalf("guardReadOnly rejected safe SQL: %q err=%v", q, err)
		}
	}
	for _, q := range bad {
		if err := guardReadOnly(q); err == nil {
			t.Fatalf("guardReadOnly did not reject: %q", q)
		}
	}
}

func numeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	require.NoError(t, n.Scan(s))
	return n
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float64", 1.5, 1.5},
		{"float32", float32(0.25), 0.25},
		{"int32", int32(7), 7},
		{"int64", int64(9), 9},
		{"numeric", pgtype.Numeric{Int: big.NewInt(123456), Exp: -2, Valid: true}, 1234.56},
		{"null numeric", pgtype.Numeric{}, 0},
		{"string", "12.5", 12.5},
		{"junk string", "abc", 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, asFloat(tt.in), 1e-9)
		})
	}
}

func TestDecodeInvoices(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"numero_factura", "estado_legible", "fecha_emision", "moneda", "total", "emisor_direccion_calle"},
		Rows: [][]any{
			{"F-2024-001", "PAGADA", time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC), "EUR", numeric(t, "1500.50"), "Calle Velázquez 12"},
			{"F-2024-002", "PENDIENTE", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), "EUR", nil, nil},
		},
	}
	got := DecodeInvoices(rs)
	require.Len(t, got, 2)
	assert.Equal(t, InvoiceRecord{
		Number: "F-2024-001", StatusLabel: "PAGADA", IssueDate: "2024-11-03",
		Currency: "EUR", Total: 1500.50, StreetAddress: "Calle Velázquez 12",
	}, got[0])
	assert.Equal(t, 0.0, got[1].Total)
	assert.Equal(t, "", got[1].StreetAddress)
}

func TestDecodeAddressMatches(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"numero_factura", "estado_legible", "total", "moneda", "emisor_direccion_calle", "score"},
		Rows:    [][]any{{"F-1", "PAGADA", numeric(t, "200"), "EUR", "Calle Velázquez 12", float32(0.5833333)}},
	}
	got := DecodeAddressMatches(rs)
	require.Len(t, got, 1)
	assert.Equal(t, 58, got[0].Percent())
	assert.Equal(t, "Calle Velázquez 12", got[0].StreetAddress)
}

func TestDecodePerformance(t *testing.T) {
	cols := []string{"ventas", "facturado", "cobrado"}

	t.Run("no rows", func(t *testing.T) {
		p := DecodePerformance(&ResultSet{Columns: cols})
		assert.False(t, p.Found)
		assert.Equal(t, PerformanceRecord{}, p)
	})
	t.Run("null sums", func(t *testing.T) {
		p := DecodePerformance(&ResultSet{Columns: cols, Rows: [][]any{{nil, nil, nil}}})
		assert.False(t, p.Found)
		assert.Equal(t, 0.0, p.Pending())
	})
	t.Run("numeric sums", func(t *testing.T) {
		p := DecodePerformance(&ResultSet{Columns: cols, Rows: [][]any{{numeric(t, "12"), numeric(t, "30000.00"), nil}}})
		assert.True(t, p.Found)
		assert.Equal(t, int64(12), p.SalesCount)
		assert.Equal(t, 30000.0, p.Invoiced)
		assert.Equal(t, 0.0, p.Collected)
		assert.Equal(t, 30000.0, p.Pending())
	})
}

func TestDecodeZoneStats(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"zona", "num_ventas", "precio_medio", "precio_m2_medio", "total_honorarios"},
		Rows:    [][]any{{"Camins al Grau", int64(14), numeric(t, "245000.00"), numeric(t, "2890.12"), numeric(t, "73500")}},
	}
	got := DecodeZoneStats(rs)
	require.Len(t, got, 1)
	assert.Equal(t, ZoneStatsRecord{ZoneName: "Camins al Grau", SaleCount: 14, AvgPrice: 245000, AvgPricePerM2: 2890.12, TotalFees: 73500}, got[0])
}

func TestDecodeAgentZone(t *testing.T) {
	cols := []string{"agente_nombre", "zona_nombre", "ciudad"}

	_, ok := DecodeAgentZone(&ResultSet{Columns: cols})
	assert.False(t, ok)

	az, ok := DecodeAgentZone(&ResultSet{Columns: cols, Rows: [][]any{{"Lucía", nil, nil}}})
	require.True(t, ok)
	assert.False(t, az.HasZone)
	assert.Equal(t, "Lucía", az.AgentName)

	az, ok = DecodeAgentZone(&ResultSet{Columns: cols, Rows: [][]any{{"Lucía", "Ruzafa", "Valencia"}}})
	require.True(t, ok)
	assert.True(t, az.HasZone)
	assert.Equal(t, "Valencia", az.City)
}

func TestRowUnknownColumnIsNull(t *testing.T) {
	rs := &ResultSet{Columns: []string{"a"}, Rows: [][]any{{"x"}}}
	r := rs.Row(0)
	assert.True(t, r.Null("missing"))
	assert.Equal(t, "x", r.String("a"))
	assert.Equal(t, 0, (*ResultSet)(nil).Len())
}
