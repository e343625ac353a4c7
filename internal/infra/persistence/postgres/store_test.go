package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"eavcore/internal/infra/persistence/sqlstore"
	"eavcore/internal/infra/persistence/storetest"
	"eavcore/internal/valuemodel/sqlbundle"
	"eavcore/pkg/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock
}

func expectDDL(mock sqlmock.Sqlmock) {
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.Postgres()) {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func openMocked(t *testing.T, opts ...sqlstore.Option) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMock(t)
	mock.ExpectPing()
	expectDDL(mock)
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return db, nil
	})
	defer restore()
	store, err := NewStore(context.Background(), "", opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if gotDriver != defaultDriver || gotDSN != defaultDSN {
		t.Fatalf("unexpected open(%q, %q)", gotDriver, gotDSN)
	}
	return store, mock
}

func TestNewStoreAppliesDDL(t *testing.T) {
	_, mock := openMocked(t)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatal("expected open failure")
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectPing().WillReturnError(errors.New("unreachable"))
	mock.ExpectClose()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatal("expected ping failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewStoreDDLFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatal("expected ddl failure")
	}
}

func TestSaveDataUsesPostgresPlaceholders(t *testing.T) {
	store, mock := openMocked(t)
	reg := storetest.Registry(t)
	user, err := reg.NewData("User")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := user.Set("login", "ada", nil); err != nil {
		t.Fatalf("set: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data_value_id FROM eav_values WHERE data_id = $1 AND embedded = $2 AND data_value_id IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"data_value_id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO eav_data (id, family_code, created_at, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM eav_values WHERE data_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO eav_values (id, data_id, ordinal, attribute_code")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.SaveData(context.Background(), user); err != nil {
		t.Fatalf("save: %v", err)
	}
	if user.ID() == "" {
		t.Fatal("expected id assigned on save")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveDataBatchesValueInserts(t *testing.T) {
	store, mock := openMocked(t, sqlstore.WithInsertBatch(2))
	reg := storetest.Registry(t)
	book, err := reg.NewData("Book")
	if err != nil {
		t.Fatalf("new book: %v", err)
	}
	if err := book.Set("tags", []string{"a", "b", "c", "d", "e"}, nil); err != nil {
		t.Fatalf("set: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT data_value_id").WillReturnRows(sqlmock.NewRows([]string{"data_value_id"}))
	mock.ExpectExec("INSERT INTO eav_data").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM eav_values").WillReturnResult(sqlmock.NewResult(0, 0))
	for range 3 {
		mock.ExpectExec("INSERT INTO eav_values").WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectCommit()

	if err := store.SaveData(context.Background(), book); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveDataRollsBackOnFailure(t *testing.T) {
	store, mock := openMocked(t)
	reg := storetest.Registry(t)
	user, _ := reg.NewData("User")
	_ = user.Set("login", "ada", nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT data_value_id").WillReturnRows(sqlmock.NewRows([]string{"data_value_id"}))
	mock.ExpectExec("INSERT INTO eav_data").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	if err := store.SaveData(context.Background(), user); err == nil {
		t.Fatal("expected save failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadDataDecodesRows(t *testing.T) {
	store, mock := openMocked(t)
	reg := storetest.Registry(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, family_code FROM eav_data WHERE id = $1")).
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_code"}).AddRow("book-1", "Book"))
	cols := []string{
		"id", "data_id", "ordinal", "attribute_code", "family_code", "position",
		"bool_value", "integer_value", "decimal_value", "date_value", "datetime_value",
		"string_value", "text_value", "data_value_id", "embedded", "context",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM eav_values WHERE data_id = $1 ORDER BY ordinal")).
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("v1", "book-1", 0, "title", "Book", nil, nil, nil, nil, nil, nil, "Dune", nil, nil, false, `{"locale":"en_US"}`).
			AddRow("v2", "book-1", 1, "publishedAt", "Book", nil, nil, nil, nil, "1965-08-01", nil, nil, nil, nil, false, "{}").
			AddRow("v3", "book-1", 2, "tags", "Book", 1, nil, nil, nil, nil, nil, "sf", nil, nil, false, "{}").
			AddRow("v4", "book-1", 3, "tags", "Book", 0, nil, nil, nil, nil, nil, "classic", nil, nil, false, "{}").
			AddRow("v5", "book-1", 4, "available", "Book", nil, true, nil, nil, nil, nil, nil, nil, nil, false, "{}"))

	loaded, err := store.LoadData(context.Background(), reg, "book-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := loaded.Get("title", map[string]any{"locale": "en_US"}); got != "Dune" {
		t.Fatalf("unexpected title %v", got)
	}
	if got, _ := loaded.Get("available", nil); got != true {
		t.Fatalf("unexpected available %v", got)
	}
	tags, _ := loaded.Get("tags", nil)
	if list := tags.([]any); len(list) != 2 || list[0] != "classic" || list[1] != "sf" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadDataNotFound(t *testing.T) {
	store, mock := openMocked(t)
	mock.ExpectQuery("SELECT id, family_code FROM eav_data").
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_code"}))
	_, err := store.LoadData(context.Background(), storetest.Registry(t), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOverrideSQLOpenRestores(t *testing.T) {
	called := false
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		called = true
		return nil, errors.New("stub")
	})
	_, _ = NewStore(context.Background(), "")
	restore()
	if !called {
		t.Fatal("expected override to be used")
	}
	openMu.Lock()
	defer openMu.Unlock()
	if sqlOpen == nil {
		t.Fatal("expected sqlOpen restored")
	}
}
