//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/you/agentdesk/internal/filter"
	"github.com/you/agentdesk/internal/query"
	"github.com/you/agentdesk/internal/store"
)

const seed = `
INSERT INTO facturas (numero_factura, emisor_cif, emisor_direccion_calle, estado, fecha_emision, total) VALUES
    ('F-2024-101', 'B11111111', 'Calle Velázquez 12',   'PAGADA',    '2024-11-03', 1200.00),
    ('F-2024-102', 'B11111111', 'Avenida de América 4', 'PAGADA',    '2024-11-15',  800.50),
    ('F-2024-103', 'B11111111', 'Calle Serrano 40',     'PAGADA',    '2024-11-28', 2300.00),
    ('F-2024-090', 'B11111111', 'Calle Goya 7',         'PAGADA',    '2024-10-30',  450.00),
    ('F-2024-120', 'B11111111', 'Calle Goya 9',         'PAGADA',    '2024-12-01',  990.00),
    ('F-2024-104', 'B11111111', 'Plaza Mayor 1',        'PENDIENTE', '2024-11-20',  600.00),
    ('F-2024-201', 'B22222222', 'Calle Velázquez 14',   'PAGADA',    '2024-11-10', 3100.00);

INSERT INTO contacto_agentes (email, cif) VALUES ('Ana.Garcia@Inmo.es', 'B11111111');

INSERT INTO zonas (nombre, ciudad) VALUES ('Salamanca', 'Madrid'), ('Chamberí', 'Madrid');
INSERT INTO agentes (nombre, correo, zona_id) VALUES ('Ana García', 'ana.garcia@inmo.es', 1);
INSERT INTO ventas (agente_id, zona_id, fecha, precio, superficie_m2, honorarios, facturado, cobrado) VALUES
    (1, 1, '2024-03-01', 450000, 90, 13500, 13500, 13500),
    (1, 1, '2024-09-12', 300000, 60,  9000,  9000,  4000),
    (1, 2, '2023-05-20', 500000, 100, 15000, 15000, 15000);
`

func startPostgres(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("facturacion"),
		postgres.WithUsername("agent"),
		postgres.WithPassword("agent"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.Open(ctx, dsn, store.Options{ConnectTimeout: 5 * time.Second, QueryTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate(), "second run is a no-op")

	_, err = s.Pool().Exec(ctx, seed)
	require.NoError(t, err)
	return s
}

func TestStoreAgainstPostgres(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	t.Run("paid invoices in November", func(t *testing.T) {
		crit, err := filter.Validate(filter.Raw{Status: "PAGADA", DateFrom: "2024-11-01", DateTo: "2024-11-30"})
		require.NoError(t, err)

		rs, err := s.Query(ctx, query.Invoices(crit, "B11111111"))
		require.NoError(t, err)
		rows := store.DecodeInvoices(rs)
		require.Len(t, rows, 3)
		assert.Equal(t, "F-2024-103", rows[0].Number)
		assert.Equal(t, "2024-11-28", rows[0].IssueDate)
		assert.Equal(t, 2300.0, rows[0].Total)
	})

	t.Run("limit caps rows", func(t *testing.T) {
		limit := 2
		crit, err := filter.Validate(filter.Raw{Limit: &limit})
		require.NoError(t, err)

		rs, err := s.Query(ctx, query.Invoices(crit, "B11111111"))
		require.NoError(t, err)
		assert.Equal(t, 2, rs.Len())
	})

	t.Run("fuzzy address ignores accents", func(t *testing.T) {
		rs, err := s.Query(ctx, query.AddressSearch("Velazquez", "B11111111"))
		require.NoError(t, err)
		matches := store.DecodeAddressMatches(rs)
		require.Len(t, matches, 1, "other agents' invoices stay hidden")
		assert.Equal(t, "Calle Velázquez 12", matches[0].StreetAddress)
		assert.Greater(t, matches[0].Score, query.SimilarityFloor)
	})

	t.Run("identity resolves case-insensitively", func(t *testing.T) {
		rs, err := s.Query(ctx, query.ResolveIdentity("ana.garcia@inmo.es"))
		require.NoError(t, err)
		require.Equal(t, 1, rs.Len())
		assert.Equal(t, "B11111111", rs.Row(0).String("cif"))
	})

	t.Run("performance", func(t *testing.T) {
		rs, err := s.Query(ctx, query.AnnualPerformance("ana.garcia@inmo.es", 2024))
		require.NoError(t, err)
		perf := store.DecodePerformance(rs)
		assert.EqualValues(t, 2, perf.SalesCount)
		assert.Equal(t, 22500.0, perf.Invoiced)
		assert.Equal(t, 5000.0, perf.Pending())

		rs, err = s.Query(ctx, query.CareerPerformance("ana.garcia@inmo.es"))
		require.NoError(t, err)
		assert.EqualValues(t, 3, store.DecodePerformance(rs).SalesCount)
	})

	t.Run("agent zone and zone stats", func(t *testing.T) {
		rs, err := s.Query(ctx, query.AgentZone("ANA.GARCIA@INMO.ES"))
		require.NoError(t, err)
		zone, ok := store.DecodeAgentZone(rs)
		require.True(t, ok)
		assert.Equal(t, "Salamanca", zone.ZoneName)

		rs, err = s.Query(ctx, query.ZoneStats("sala", 10))
		require.NoError(t, err)
		stats := store.DecodeZoneStats(rs)
		require.Len(t, stats, 1)
		assert.EqualValues(t, 2, stats[0].SaleCount)
	})

	t.Run("writes are rejected", func(t *testing.T) {
		_, err := s.Query(ctx, query.Statement{SQL: "DELETE FROM facturas"})
		assert.ErrorIs(t, err, store.ErrQuery)
	})
}
