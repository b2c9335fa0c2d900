// Package store executes the read-only statements built by package query against
// PostgreSQL and hands back ordered column/value rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/you/agentdesk/internal/query"
)

var (
	// ErrConnectivity marks failures to reach the database.
	ErrConnectivity = errors.New("database unavailable")
	// ErrQuery marks failures while running a statement.
	ErrQuery = errors.New("query execution failed")
)

// RowSource runs one statement and returns every row it produced.
type RowSource interface {
	Query(ctx context.Context, st query.Statement) (*ResultSet, error)
}

// Options tunes the connection pool.
type Options struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	MinConns       int32
	MaxConns       int32
}

// Store is a RowSource backed by a pgx pool.
type Store struct {
	db      *pgxpool.Pool
	queryTO time.Duration
}

// Open builds the pool. It does not fail when the database is down; the first
// query reports ErrConnectivity instead.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	conf.MinConns = 2
	conf.MaxConns = 8
	if opts.MinConns > 0 {
		conf.MinConns = opts.MinConns
	}
	if opts.MaxConns > 0 {
		conf.MaxConns = opts.MaxConns
	}
	conf.MaxConnLifetime = 30 * time.Minute
	conf.MaxConnIdleTime = 5 * time.Minute
	conf.HealthCheckPeriod = 30 * time.Second
	if opts.ConnectTimeout > 0 {
		conf.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	db, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	qto := opts.QueryTimeout
	if qto <= 0 {
		qto = 25 * time.Second
	}
	return &Store{db: db, queryTO: qto}, nil
}

// Pool exposes the underlying pool for migrations.
func (s *Store) Pool() *pgxpool.Pool { return s.db }

// Close releases every pooled connection.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping checks that a connection can be acquired and used.
func (s *Store) Ping(ctx context.Context) error {
	ctxTO, cancel := context.WithTimeout(ctx, s.queryTO)
	defer cancel()
	if err := s.db.Ping(ctxTO); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	return nil
}

// Query runs st inside a read-only transaction on a single pooled connection.
// The connection goes back to the pool on every path.
func (s *Store) Query(ctx context.Context, st query.Statement) (*ResultSet, error) {
	if err := guardReadOnly(st.SQL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	ctxTO, cancel := context.WithTimeout(ctx, s.queryTO)
	defer cancel()
	conn, err := s.db.Acquire(ctxTO)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctxTO, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	defer tx.Rollback(ctxTO)

	start := time.Now()
	rows, err := tx.Query(ctxTO, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	flds := rows.FieldDescriptions()
	out := &ResultSet{Columns: make([]string, len(flds))}
	for i, f := range flds {
		out.Columns[i] = f.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if err := tx.Commit(ctxTO); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	log.Debug().Int("args", len(st.Args)).Int("row_count", len(out.Rows)).Dur("dur", time.Since(start)).Msg("query done")
	return out, nil
}

var mutating = regexp.MustCompile(`(?is)\b(INSERT|UPDATE|DELETE|UPSERT|MERGE|ALTER|DROP|TRUNCATE|VACUUM|REINDEX|GRANT|REVOKE|CREATE|COPY)\b`)

func guardReadOnly(sql string) error {
	if mutating.MatchString(sql) {
		return fmt.Errorf("refusing to run non-read-only SQL")
	}
	trimmed := strings.TrimSpace(sql)
	if strings.Count(trimmed, ";") > 0 && trimmed[len(trimmed)-1] != ';' {
		return fmt.Errorf("multiple statements not allowed")
	}
	if strings.Count(trimmed, ";") > 1 {
		return fmt.Errorf("multiple statements not allowed")
	}
	return nil
}
