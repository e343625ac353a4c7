// Package sqlite provides the embedded SQLite value store.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"eavcore/internal/infra/persistence/sqlstore"
	"eavcore/internal/valuemodel/sqlbundle"
	"eavcore/pkg/domain"
)

var _ domain.ValueStore = (*Store)(nil)

const (
	driverName  = "sqlite"
	defaultPath = "eavcore.db"
)

// Store is a sqlstore.Store bound to one SQLite file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating when needed) the database at path and applies the
// value store DDL. An empty path selects ./eavcore.db.
func NewStore(ctx context.Context, path string, opts ...sqlstore.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, errors.Wrap(err, "create dirs")
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	inner := sqlstore.New(db, driverName, sqlbuilder.SQLite, opts...)
	if err := inner.ApplySchema(ctx, sqlbundle.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
