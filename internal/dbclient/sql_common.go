package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sqlplugin/internal/config"
	"sqlplugin/internal/domain"
	"sqlplugin/internal/query"
)

// ValidationTimeout bounds the test query run by Validate.
const ValidationTimeout = 5 * time.Second

// SQLPool is the connection pool behind the lookup executor.
type SQLPool struct {
	driver    domain.DatabaseDriver
	db        *sql.DB
	testQuery string
}

// Open builds a pool for settings. No connection is made until first use; call
// Validate to check connectivity.
func Open(settings config.DatabaseSettings, password, appName string) (*SQLPool, error) {
	target, err := BuildTarget(settings, password, appName)
	if err != nil {
		return nil, err
	}
	return OpenTarget(target, settings.Pool)
}

// OpenTarget builds a pool for an already resolved target.
func OpenTarget(target Target, pool config.PoolSettings) (*SQLPool, error) {
	db, err := sql.Open(target.DriverName, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target.DriverName, err)
	}
	if pool.MaxSize > 0 {
		db.SetMaxOpenConns(pool.MaxSize)
	}
	if pool.MinSize > 0 {
		db.SetMaxIdleConns(pool.MinSize)
	}
	if pool.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(pool.IdleTimeout)
	}
	testQuery := pool.TestQuery
	if testQuery == "" {
		testQuery = config.DefaultPoolSettings().TestQuery
	}
	return &SQLPool{driver: target.Driver, db: db, testQuery: testQuery}, nil
}

// Driver reports which engine the pool talks to.
func (p *SQLPool) Driver() domain.DatabaseDriver { return p.driver }

// Session tells the executor how to keep a lookup read-only and capped at
// query.MaxRows rows on this engine.
//
// MySQL caps rows through sql_select_limit in the DSN and SQLite connections are
// query_only and stream rows lazily. SQL Server rejects read-only transactions, so
// its lookups run in a transaction that is always rolled back, under SET ROWCOUNT.
// PostgreSQL has no session row cap; rows past the cap are still drained when
// the cursor closes.
func (p *SQLPool) Session() query.Session {
	switch p.driver {
	case domain.DatabaseDriverSQLServer:
		return query.Session{
			Setup: []string{fmt.Sprintf("SET ROWCOUNT %d", query.MaxRows)},
			Reset: []string{"SET ROWCOUNT 0"},
		}
	default:
		return query.DefaultSession
	}
}

// Conn hands out a dedicated connection. The caller must Close it.
func (p *SQLPool) Conn(ctx context.Context) (*sql.Conn, error) {
	return p.db.Conn(ctx)
}

// Validate runs the test query on a pooled connection within ValidationTimeout.
func (p *SQLPool) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ValidationTimeout)
	defer cancel()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, p.testQuery)
	if err != nil {
		return fmt.Errorf("test query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("test query: %w", err)
	}
	return nil
}

// OpenConnections returns the number of established connections, in use or idle.
func (p *SQLPool) OpenConnections() int {
	return p.db.Stats().OpenConnections
}

// Close closes the pool. Connections in use are closed when released.
func (p *SQLPool) Close() error {
	return p.db.Close()
}
