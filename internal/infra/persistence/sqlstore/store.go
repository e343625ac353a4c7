// Package sqlstore implements domain.ValueStore over database/sql. Queries
// are built with go-sqlbuilder so one implementation serves every flavor the
// sqlite and postgres adapters need.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"eavcore/internal/valuemodel/sqlbundle"
	"eavcore/pkg/domain"
)

var _ domain.ValueStore = (*Store)(nil)

const (
	dateLayout     = time.DateOnly
	datetimeLayout = time.RFC3339Nano

	// DefaultInsertBatch bounds the rows per value INSERT so that bind
	// parameters stay under the sqlite and postgres limits.
	DefaultInsertBatch = 500
)

var valueColumns = []string{
	"id", "data_id", "ordinal", "attribute_code", "family_code", "position",
	"bool_value", "integer_value", "decimal_value", "date_value", "datetime_value",
	"string_value", "text_value", "data_value_id", "embedded", "context",
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for new ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock replaces the clock used for created_at / updated_at.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithInsertBatch sets how many value rows one INSERT statement carries.
func WithInsertBatch(rows int) Option {
	return func(s *Store) {
		if rows > 0 {
			s.batch = rows
		}
	}
}

// Store is a relational value store. It is safe for concurrent use; writes
// run in a single transaction each.
type Store struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
	newID  func() string
	now    func() time.Time
	batch  int
}

// New wraps an open database handle. driverName is the database/sql driver
// the handle was opened with.
func New(db *sql.DB, driverName string, flavor sqlbuilder.Flavor, opts ...Option) *Store {
	s := &Store{
		db:     sqlx.NewDb(db, driverName),
		flavor: flavor,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
		batch:  DefaultInsertBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db.DB }

// Flavor reports the SQL dialect queries are built for.
func (s *Store) Flavor() sqlbuilder.Flavor { return s.flavor }

// ApplySchema executes every statement of a DDL script in order.
func (s *Store) ApplySchema(ctx context.Context, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute ddl")
		}
	}
	return nil
}

// SaveData stores d and every embedded target reachable from it. Embedded
// targets that d no longer references are deleted.
func (s *Store) SaveData(ctx context.Context, d *domain.Data) error {
	if d == nil {
		return errors.New("sqlstore: nil data")
	}
	snaps, err := domain.Flatten(d, s.newID)
	if err != nil {
		return err
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		keep := make(map[string]struct{}, len(snaps))
		for _, snap := range snaps {
			keep[snap.Data.ID] = struct{}{}
		}
		var stale []string
		for _, snap := range snaps {
			previous, err := s.embeddedTargets(ctx, tx, snap.Data.ID)
			if err != nil {
				return err
			}
			for _, id := range previous {
				if _, ok := keep[id]; !ok {
					stale = append(stale, id)
				}
			}
			if err := s.writeSnapshot(ctx, tx, snap, now); err != nil {
				return err
			}
		}
		visited := make(map[string]struct{})
		for _, id := range stale {
			if _, err := s.deleteTree(ctx, tx, id, visited); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadData rebuilds the entity id and everything it references.
func (s *Store) LoadData(ctx context.Context, reg *domain.Registry, id string) (*domain.Data, error) {
	if reg == nil {
		return nil, errors.New("sqlstore: load requires a registry")
	}
	return domain.Hydrate(ctx, reg, id, s.fetch)
}

// DeleteData removes id, its values and its embedded targets, and clears
// foreign references to any removed entity.
func (s *Store) DeleteData(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		deleted, err = s.deleteTree(ctx, tx, id, make(map[string]struct{}))
		return err
	})
	return deleted, err
}

// Values lists stored rows ordered by data id, attribute code and position.
func (s *Store) Values(ctx context.Context, filter domain.ValueFilter) ([]domain.ValueRow, error) {
	return s.selectValues(ctx, s.db, filter, "data_id", "attribute_code", "COALESCE(position, -1)", "ordinal")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	return nil
}

func (s *Store) writeSnapshot(ctx context.Context, tx *sqlx.Tx, snap domain.Snapshot, now time.Time) error {
	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto(sqlbundle.DataTable)
	ib.Cols("id", "family_code", "created_at", "updated_at")
	ib.Values(snap.Data.ID, snap.Data.FamilyCode, now, now)
	ib.SQL("ON CONFLICT (id) DO UPDATE SET family_code = excluded.family_code, updated_at = excluded.updated_at")
	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "upsert data %s", snap.Data.ID)
	}

	del := s.flavor.NewDeleteBuilder()
	del.DeleteFrom(sqlbundle.ValuesTable)
	del.Where(del.Equal("data_id", snap.Data.ID))
	query, args = del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "clear values of %s", snap.Data.ID)
	}

	for start := 0; start < len(snap.Values); start += s.batch {
		end := min(start+s.batch, len(snap.Values))
		ib = s.flavor.NewInsertBuilder()
		ib.InsertInto(sqlbundle.ValuesTable)
		ib.Cols(valueColumns...)
		for i := start; i < end; i++ {
			values, err := encodeRow(snap.Values[i], i)
			if err != nil {
				return err
			}
			ib.Values(values...)
		}
		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "insert values of %s", snap.Data.ID)
		}
	}
	return nil
}

func (s *Store) deleteTree(ctx context.Context, tx *sqlx.Tx, id string, visited map[string]struct{}) (bool, error) {
	if _, seen := visited[id]; seen {
		return false, nil
	}
	visited[id] = struct{}{}

	sb := s.flavor.NewSelectBuilder()
	sb.Select("id").From(sqlbundle.DataTable).Where(sb.Equal("id", id))
	query, args := sb.Build()
	var found []string
	if err := tx.SelectContext(ctx, &found, query, args...); err != nil {
		return false, errors.Wrapf(err, "select data %s", id)
	}
	if len(found) == 0 {
		return false, nil
	}
	targets, err := s.embeddedTargets(ctx, tx, id)
	if err != nil {
		return false, err
	}

	del := s.flavor.NewDeleteBuilder()
	del.DeleteFrom(sqlbundle.ValuesTable).Where(del.Equal("data_id", id))
	query, args = del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, errors.Wrapf(err, "delete values of %s", id)
	}
	del = s.flavor.NewDeleteBuilder()
	del.DeleteFrom(sqlbundle.DataTable).Where(del.Equal("id", id))
	query, args = del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, errors.Wrapf(err, "delete data %s", id)
	}
	ub := s.flavor.NewUpdateBuilder()
	ub.Update(sqlbundle.ValuesTable).Set("data_value_id = NULL").Where(ub.Equal("data_value_id", id))
	query, args = ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, errors.Wrapf(err, "clear references to %s", id)
	}

	for _, target := range targets {
		if _, err := s.deleteTree(ctx, tx, target, visited); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) embeddedTargets(ctx context.Context, q sqlx.QueryerContext, id string) ([]string, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("data_value_id").From(sqlbundle.ValuesTable)
	sb.Where(sb.Equal("data_id", id), sb.Equal("embedded", true), sb.IsNotNull("data_value_id"))
	sb.OrderBy("ordinal")
	query, args := sb.Build()
	var targets []string
	if err := sqlx.SelectContext(ctx, q, &targets, query, args...); err != nil {
		return nil, errors.Wrapf(err, "select embedded targets of %s", id)
	}
	return targets, nil
}

func (s *Store) fetch(ctx context.Context, id string) (domain.DataRow, []domain.ValueRow, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("id", "family_code").From(sqlbundle.DataTable).Where(sb.Equal("id", id))
	query, args := sb.Build()
	var rec dataRecord
	if err := s.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DataRow{}, nil, errors.Wrapf(domain.ErrNotFound, "data %s", id)
		}
		return domain.DataRow{}, nil, errors.Wrapf(err, "select data %s", id)
	}
	rows, err := s.selectValues(ctx, s.db, domain.ValueFilter{DataID: id}, "ordinal")
	if err != nil {
		return domain.DataRow{}, nil, err
	}
	return domain.DataRow{ID: rec.ID, FamilyCode: rec.FamilyCode}, rows, nil
}

func (s *Store) selectValues(ctx context.Context, q sqlx.QueryerContext, filter domain.ValueFilter, order ...string) ([]domain.ValueRow, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(valueColumns...).From(sqlbundle.ValuesTable)
	var where []string
	if filter.DataID != "" {
		where = append(where, sb.Equal("data_id", filter.DataID))
	}
	if filter.FamilyCode != "" {
		where = append(where, sb.Equal("family_code", filter.FamilyCode))
	}
	if filter.AttributeCode != "" {
		where = append(where, sb.Equal("attribute_code", filter.AttributeCode))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy(order...)
	query, args := sb.Build()
	var recs []valueRecord
	if err := sqlx.SelectContext(ctx, q, &recs, query, args...); err != nil {
		return nil, errors.Wrap(err, "select values")
	}
	out := make([]domain.ValueRow, 0, len(recs))
	for _, rec := range recs {
		row, err := rec.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

type dataRecord struct {
	ID         string `db:"id"`
	FamilyCode string `db:"family_code"`
}

type valueRecord struct {
	ID            string          `db:"id"`
	DataID        string          `db:"data_id"`
	Ordinal       int             `db:"ordinal"`
	AttributeCode string          `db:"attribute_code"`
	FamilyCode    string          `db:"family_code"`
	Position      sql.NullInt64   `db:"position"`
	Bool          sql.NullBool    `db:"bool_value"`
	Integer       sql.NullInt64   `db:"integer_value"`
	Decimal       sql.NullFloat64 `db:"decimal_value"`
	Date          sql.NullString  `db:"date_value"`
	DateTime      sql.NullString  `db:"datetime_value"`
	String        sql.NullString  `db:"string_value"`
	Text          sql.NullString  `db:"text_value"`
	RelationID    sql.NullString  `db:"data_value_id"`
	Embedded      bool            `db:"embedded"`
	Context       string          `db:"context"`
}

func (r valueRecord) decode() (domain.ValueRow, error) {
	row := domain.ValueRow{
		ID:            r.ID,
		DataID:        r.DataID,
		AttributeCode: r.AttributeCode,
		FamilyCode:    r.FamilyCode,
		RelationID:    r.RelationID.String,
		Embedded:      r.Embedded,
	}
	if r.Position.Valid {
		p := int(r.Position.Int64)
		row.Position = &p
	}
	if r.Bool.Valid {
		row.Bool = &r.Bool.Bool
	}
	if r.Integer.Valid {
		row.Integer = &r.Integer.Int64
	}
	if r.Decimal.Valid {
		row.Decimal = &r.Decimal.Float64
	}
	if r.String.Valid {
		row.String = &r.String.String
	}
	if r.Text.Valid {
		row.Text = &r.Text.String
	}
	var err error
	if row.Date, err = parseTime(r.Date, dateLayout); err != nil {
		return domain.ValueRow{}, errors.Wrapf(err, "value %s date", r.ID)
	}
	if row.DateTime, err = parseTime(r.DateTime, datetimeLayout); err != nil {
		return domain.ValueRow{}, errors.Wrapf(err, "value %s datetime", r.ID)
	}
	if r.Context != "" && r.Context != "{}" {
		if err := json.Unmarshal([]byte(r.Context), &row.Context); err != nil {
			return domain.ValueRow{}, errors.Wrapf(err, "value %s context", r.ID)
		}
	}
	return row, nil
}

func encodeRow(row domain.ValueRow, ordinal int) ([]any, error) {
	contextJSON := "{}"
	if len(row.Context) > 0 {
		raw, err := json.Marshal(row.Context)
		if err != nil {
			return nil, errors.Wrapf(err, "encode context of value %s", row.ID)
		}
		contextJSON = string(raw)
	}
	return []any{
		row.ID, row.DataID, ordinal, row.AttributeCode, row.FamilyCode, nullable(row.Position),
		nullable(row.Bool), nullable(row.Integer), nullable(row.Decimal),
		formatTime(row.Date, dateLayout), formatTime(row.DateTime, datetimeLayout),
		nullable(row.String), nullable(row.Text), nullString(row.RelationID), row.Embedded, contextJSON,
	}, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t *time.Time, layout string) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(layout)
}

func parseTime(raw sql.NullString, layout string) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := time.Parse(layout, raw.String)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
