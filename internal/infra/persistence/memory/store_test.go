package memory

import (
	"context"
	"errors"
	"testing"

	"eavcore/internal/infra/persistence/storetest"
	"eavcore/pkg/domain"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) domain.ValueStore { return NewStore() })
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := storetest.Registry(t)
	store := NewStore()
	user, err := reg.NewData("User")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := user.Set("login", "ada", nil); err != nil {
		t.Fatalf("set login: %v", err)
	}
	if err := store.SaveData(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}

	snapshot := store.ExportState()
	restored := NewStore()
	restored.ImportState(snapshot)
	loaded, err := restored.LoadData(ctx, reg, user.ID())
	if err != nil {
		t.Fatalf("load from imported state: %v", err)
	}
	if got, _ := loaded.Get("login", nil); got != "ada" {
		t.Fatalf("expected login ada, got %v", got)
	}

	*snapshot.Values[user.ID()][0].String = "mutated"
	again, err := restored.LoadData(ctx, reg, user.ID())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, _ := again.Get("login", nil); got != "ada" {
		t.Fatalf("import must copy rows, got %v", got)
	}
}

func TestValuesReturnsCopies(t *testing.T) {
	ctx := context.Background()
	reg := storetest.Registry(t)
	store := NewStore(WithIDGenerator(sequence()))
	book, err := reg.NewData("Book")
	if err != nil {
		t.Fatalf("new book: %v", err)
	}
	if err := book.Set("stock", 3, nil); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if err := store.SaveData(ctx, book); err != nil {
		t.Fatalf("save: %v", err)
	}
	if book.ID() != "id-1" {
		t.Fatalf("expected generated id id-1, got %s", book.ID())
	}
	rows, err := store.Values(ctx, domain.ValueFilter{DataID: book.ID()})
	if err != nil || len(rows) != 1 {
		t.Fatalf("values: %v (%d rows)", err, len(rows))
	}
	*rows[0].Integer = 99
	rows, _ = store.Values(ctx, domain.ValueFilter{DataID: book.ID()})
	if *rows[0].Integer != 3 {
		t.Fatalf("stored row mutated through Values result: %d", *rows[0].Integer)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore()
	if _, err := store.Values(ctx, domain.ValueFilter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.DeleteData(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := store.SaveData(context.Background(), nil); err == nil {
		t.Fatalf("expected error saving nil data")
	}
	if _, err := store.LoadData(context.Background(), nil, "x"); err == nil {
		t.Fatalf("expected error loading without registry")
	}
}

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
}
