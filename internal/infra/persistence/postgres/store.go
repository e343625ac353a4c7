// Package postgres provides the PostgreSQL value store. It applies the
// value store DDL on startup and otherwise defers to sqlstore.
package postgres

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"eavcore/internal/infra/persistence/sqlstore"
	"eavcore/internal/valuemodel/sqlbundle"
	"eavcore/pkg/domain"
)

var _ domain.ValueStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/eavcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a sqlstore.Store bound to a PostgreSQL database.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN),
// pings it and applies the DDL bundle.
func NewStore(ctx context.Context, dsn string, opts ...sqlstore.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	inner := sqlstore.New(db, defaultDriver, sqlbuilder.PostgreSQL, opts...)
	if err := inner.ApplySchema(ctx, sqlbundle.Postgres()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
