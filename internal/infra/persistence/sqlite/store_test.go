package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"eavcore/internal/infra/persistence/storetest"
	"eavcore/internal/valuemodel/sqlbundle"
	"eavcore/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.ValueStore {
		return openStore(t, filepath.Join(t.TempDir(), "values.db"))
	})
}

func TestStoreAppliesValueModelDDL(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "values.db"))
	for _, table := range []string{sqlbundle.DataTable, sqlbundle.ValuesTable} {
		var name string
		if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name); err != nil {
			t.Fatalf("lookup %s table: %v", table, err)
		}
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "values.db")
	reg := storetest.Registry(t)

	first, err := NewStore(ctx, path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if first.Path() != path {
		t.Fatalf("unexpected path %s", first.Path())
	}
	user, err := reg.NewData("User")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := user.Set("login", "grace", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := first.SaveData(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	loaded, err := reopened.LoadData(ctx, reg, user.ID())
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if got, _ := loaded.Get("login", nil); got != "grace" {
		t.Fatalf("expected login grace, got %v", got)
	}
}
