// Package storetest holds the behaviour every domain.ValueStore must share.
// Driver packages call Run from their tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"eavcore/pkg/domain"
)

// Factory opens an empty store. Implementations register their own cleanup.
type Factory func(t *testing.T) domain.ValueStore

// Registry builds the library fixture used by the contract:
//
//	Book: title, summary(text), price(decimal), stock(integer), available(bool),
//	  publishedAt(date), updatedAt(datetime), tags[], chapters[](Chapter),
//	  author(user), cover(data)
//	Chapter: heading
//	User: login
//
// Values carry a scoped (locale, channel) context.
func Registry(t testing.TB) *domain.Registry {
	t.Helper()
	reg, err := domain.NewRegistryBuilder(nil).
		RegisterType(domain.AttributeType{Name: "user", Kind: domain.KindForeignRelation}).
		WithContext(domain.ContextScoped).
		AddFamily(domain.FamilySpec{Code: "Book", DataType: "BookData", Attributes: []domain.AttributeSpec{
			{Code: "title", Type: domain.TypeString},
			{Code: "summary", Type: domain.TypeText},
			{Code: "price", Type: domain.TypeDecimal},
			{Code: "stock", Type: domain.TypeInteger},
			{Code: "available", Type: domain.TypeBool},
			{Code: "publishedAt", Type: domain.TypeDate},
			{Code: "updatedAt", Type: domain.TypeDateTime},
			{Code: "tags", Type: domain.TypeString, Collection: true},
			{Code: "chapters", Type: domain.TypeData, Collection: true, Options: map[string]any{domain.OptionAllowedFamilies: "Chapter"}},
			{Code: "author", Type: "user"},
			{Code: "cover", Type: domain.TypeData},
		}}).
		AddFamily(domain.FamilySpec{Code: "Chapter", DataType: "ChapterData", Attributes: []domain.AttributeSpec{
			{Code: "heading", Type: domain.TypeString},
		}}).
		AddFamily(domain.FamilySpec{Code: "User", DataType: "UserData", Attributes: []domain.AttributeSpec{
			{Code: "login", Type: domain.TypeString},
		}}).
		Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, open(t)) })
	t.Run("UnsavedForeignRelation", func(t *testing.T) { testUnsavedForeign(t, open(t)) })
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, open(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, open(t)) })
	t.Run("DeleteClearsForeignReferences", func(t *testing.T) { testDeleteClearsForeign(t, open(t)) })
	t.Run("ResaveReplacesValues", func(t *testing.T) { testResave(t, open(t)) })
	t.Run("ValuesFilterAndOrder", func(t *testing.T) { testValues(t, open(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, open(t)) })
	t.Run("KeyedContextRoundTrip", func(t *testing.T) { testKeyedContext(t, open(t)) })
	t.Run("LargeCollection", func(t *testing.T) { testLargeCollection(t, open(t)) })
}

var (
	english = map[string]any{"locale": "en_US"}
	french  = map[string]any{"locale": "fr_FR"}
)

type fixture struct {
	reg      *domain.Registry
	book     *domain.Data
	author   *domain.Data
	chapters []*domain.Data
	cover    *domain.Data
}

func newFixture(t *testing.T, ctx context.Context, store domain.ValueStore) fixture {
	t.Helper()
	reg := Registry(t)
	f := fixture{reg: reg}
	f.author = mustData(t, reg, "User")
	must(t, f.author.Set("login", "ada", nil))
	must(t, store.SaveData(ctx, f.author))

	f.book = mustData(t, reg, "Book")
	must(t, f.book.Set("title", "Dune", english))
	must(t, f.book.Set("title", "Dune (fr)", french))
	must(t, f.book.Set("summary", "Desert planet", nil))
	must(t, f.book.Set("price", "12.5", nil))
	must(t, f.book.Set("stock", 7, nil))
	must(t, f.book.Set("available", 1, nil))
	must(t, f.book.Set("publishedAt", "1965-08-01", nil))
	must(t, f.book.Set("updatedAt", time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), nil))
	must(t, f.book.Set("tags", []string{"classic", "sf", "desert"}, nil))
	for i := range 2 {
		ch := mustData(t, reg, "Chapter")
		must(t, ch.Set("heading", fmt.Sprintf("Part %d", i+1), nil))
		f.chapters = append(f.chapters, ch)
	}
	must(t, f.book.Set("chapters", []*domain.Data{f.chapters[0], f.chapters[1]}, nil))
	must(t, f.book.Set("author", f.author, nil))
	f.cover = mustData(t, reg, "Chapter")
	must(t, f.cover.Set("heading", "Cover", nil))
	must(t, f.book.Set("cover", f.cover, nil))
	must(t, store.SaveData(ctx, f.book))
	return f
}

func testRoundTrip(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	f := newFixture(t, ctx, store)
	if f.book.ID() == "" || f.cover.ID() == "" || f.chapters[1].ID() == "" {
		t.Fatalf("expected ids assigned to the book and its embedded targets")
	}
	for _, v := range f.book.Values() {
		if v.ID() == "" {
			t.Fatalf("expected value %s to carry an id", v.AttributeCode())
		}
	}

	loaded, err := store.LoadData(ctx, f.reg, f.book.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID() != f.book.ID() || loaded.Family().Code() != "Book" {
		t.Fatalf("unexpected identity %s/%s", loaded.ID(), loaded.Family().Code())
	}
	expectValue(t, loaded, "title", english, "Dune")
	expectValue(t, loaded, "title", french, "Dune (fr)")
	expectValue(t, loaded, "title", nil, nil)
	expectValue(t, loaded, "summary", nil, "Desert planet")
	expectValue(t, loaded, "price", nil, 12.5)
	expectValue(t, loaded, "stock", nil, int64(7))
	expectValue(t, loaded, "available", nil, true)

	published := get(t, loaded, "publishedAt", nil).(time.Time)
	if !published.Equal(time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected publishedAt %v", published)
	}
	updated := get(t, loaded, "updatedAt", nil).(time.Time)
	if !updated.Equal(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)) {
		t.Fatalf("unexpected updatedAt %v", updated)
	}

	tags := get(t, loaded, "tags", nil).([]any)
	if fmt.Sprint(tags) != "[classic sf desert]" {
		t.Fatalf("unexpected tags %v", tags)
	}
	chapters := get(t, loaded, "chapters", nil).([]any)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	for i, raw := range chapters {
		ch := raw.(*domain.Data)
		if ch.ID() != f.chapters[i].ID() {
			t.Fatalf("chapter %d: want id %s, got %s", i, f.chapters[i].ID(), ch.ID())
		}
		expectValue(t, ch, "heading", nil, fmt.Sprintf("Part %d", i+1))
	}
	author := get(t, loaded, "author", nil).(*domain.Data)
	if author.ID() != f.author.ID() {
		t.Fatalf("unexpected author id %s", author.ID())
	}
	expectValue(t, author, "login", nil, "ada")
	cover := get(t, loaded, "cover", nil).(*domain.Data)
	expectValue(t, cover, "heading", nil, "Cover")
}

func testUnsavedForeign(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	reg := Registry(t)
	user := mustData(t, reg, "User")
	book := mustData(t, reg, "Book")
	must(t, book.Set("author", user, nil))
	err := store.SaveData(ctx, book)
	if !errors.Is(err, domain.ErrUnsavedRelation) {
		t.Fatalf("expected ErrUnsavedRelation, got %v", err)
	}
}

func testLoadMissing(t *testing.T, store domain.ValueStore) {
	_, err := store.LoadData(context.Background(), Registry(t), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	deleted, err := store.DeleteData(context.Background(), "missing")
	if err != nil || deleted {
		t.Fatalf("expected no-op delete, got %v, %v", deleted, err)
	}
}

func testDeleteCascades(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	f := newFixture(t, ctx, store)
	deleted, err := store.DeleteData(ctx, f.book.ID())
	if err != nil || !deleted {
		t.Fatalf("delete: %v, %v", deleted, err)
	}
	for _, id := range []string{f.book.ID(), f.chapters[0].ID(), f.chapters[1].ID(), f.cover.ID()} {
		if _, err := store.LoadData(ctx, f.reg, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected %s to be deleted, got %v", id, err)
		}
	}
	rows, err := store.Values(ctx, domain.ValueFilter{DataID: f.book.ID()})
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no value rows, got %d (%v)", len(rows), err)
	}
	if _, err := store.LoadData(ctx, f.reg, f.author.ID()); err != nil {
		t.Fatalf("foreign target must survive: %v", err)
	}
	if deleted, err = store.DeleteData(ctx, f.book.ID()); err != nil || deleted {
		t.Fatalf("second delete: %v, %v", deleted, err)
	}
}

func testDeleteClearsForeign(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	f := newFixture(t, ctx, store)
	if deleted, err := store.DeleteData(ctx, f.author.ID()); err != nil || !deleted {
		t.Fatalf("delete author: %v, %v", deleted, err)
	}
	loaded, err := store.LoadData(ctx, f.reg, f.book.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	expectValue(t, loaded, "author", nil, nil)
}

func testResave(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	f := newFixture(t, ctx, store)
	loaded, err := store.LoadData(ctx, f.reg, f.book.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	kept := get(t, loaded, "chapters", nil).([]any)[1].(*domain.Data)
	must(t, loaded.Set("chapters", []*domain.Data{kept}, nil))
	must(t, loaded.Set("title", nil, french))
	must(t, loaded.Set("cover", nil, nil))
	must(t, store.SaveData(ctx, loaded))

	reloaded, err := store.LoadData(ctx, f.reg, f.book.ID())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	expectValue(t, reloaded, "title", french, nil)
	expectValue(t, reloaded, "title", english, "Dune")
	expectValue(t, reloaded, "cover", nil, nil)
	chapters := get(t, reloaded, "chapters", nil).([]any)
	if len(chapters) != 1 || chapters[0].(*domain.Data).ID() != f.chapters[1].ID() {
		t.Fatalf("unexpected chapters after resave: %v", chapters)
	}
	for _, id := range []string{f.chapters[0].ID(), f.cover.ID()} {
		if _, err := store.LoadData(ctx, f.reg, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected dropped embedded target %s to be deleted, got %v", id, err)
		}
	}
}

func testValues(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	f := newFixture(t, ctx, store)
	rows, err := store.Values(ctx, domain.ValueFilter{DataID: f.book.ID(), AttributeCode: "tags"})
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 tag rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Position == nil || *row.Position != i {
			t.Fatalf("row %d: unexpected position %v", i, row.Position)
		}
		if row.FamilyCode != "Book" || row.String == nil {
			t.Fatalf("row %d: unexpected row %+v", i, row)
		}
	}

	chapters, err := store.Values(ctx, domain.ValueFilter{DataID: f.book.ID(), AttributeCode: "chapters"})
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	for _, row := range chapters {
		if !row.Embedded || row.RelationID == "" {
			t.Fatalf("expected embedded relation row, got %+v", row)
		}
	}
	author, err := store.Values(ctx, domain.ValueFilter{AttributeCode: "author"})
	if err != nil || len(author) != 1 || author[0].Embedded || author[0].RelationID != f.author.ID() {
		t.Fatalf("unexpected author rows %+v (%v)", author, err)
	}

	titles, err := store.Values(ctx, domain.ValueFilter{FamilyCode: "Book", AttributeCode: "title"})
	if err != nil || len(titles) != 2 {
		t.Fatalf("expected 2 contextual title rows, got %d (%v)", len(titles), err)
	}
	for _, row := range titles {
		if row.Context["locale"] == nil {
			t.Fatalf("expected locale context, got %v", row.Context)
		}
	}

	all, err := store.Values(ctx, domain.ValueFilter{})
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.DataID > cur.DataID || (prev.DataID == cur.DataID && prev.AttributeCode > cur.AttributeCode) {
			t.Fatalf("rows out of order at %d: %s/%s before %s/%s", i, prev.DataID, prev.AttributeCode, cur.DataID, cur.AttributeCode)
		}
	}
}

func testKeyedContext(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	reg, err := domain.NewRegistryBuilder(nil).
		WithContext(domain.ContextKeyed, "store_id").
		AddFamily(domain.FamilySpec{Code: "Book", DataType: "BookData", Attributes: []domain.AttributeSpec{
			{Code: "title", Type: domain.TypeString},
		}}).
		Build()
	must(t, err)
	shop := map[string]any{"store_id": 7}
	book := mustData(t, reg, "Book")
	must(t, book.Set("title", "Dune", shop))
	must(t, store.SaveData(ctx, book))

	loaded, err := store.LoadData(ctx, reg, book.ID())
	must(t, err)
	expectValue(t, loaded, "title", shop, "Dune")
	expectValue(t, loaded, "title", map[string]any{"store_id": "7"}, "Dune")
	must(t, loaded.Set("title", "Dune (2nd)", shop))
	if n := len(loaded.ValuesFor("title")); n != 1 {
		t.Fatalf("expected the loaded record to be reused, got %d title values", n)
	}
}

func testLargeCollection(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	reg := Registry(t)
	const n = 2500
	tags := make([]string, n)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag-%04d", i)
	}
	book := mustData(t, reg, "Book")
	must(t, book.Set("tags", tags, nil))
	must(t, store.SaveData(ctx, book))

	loaded, err := store.LoadData(ctx, reg, book.ID())
	must(t, err)
	got, ok := get(t, loaded, "tags", nil).([]any)
	if !ok || len(got) != n {
		t.Fatalf("expected %d tags after reload, got %d", n, len(got))
	}
	if got[0] != tags[0] || got[n-1] != tags[n-1] {
		t.Fatalf("tags out of order: first %v, last %v", got[0], got[n-1])
	}
}

func testConcurrentSaves(t *testing.T, store domain.ValueStore) {
	ctx := context.Background()
	reg := Registry(t)
	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := reg.NewData("User")
			if err != nil {
				errs <- err
				return
			}
			if err := user.Set("login", fmt.Sprintf("user-%d", i), nil); err != nil {
				errs <- err
				return
			}
			if err := store.SaveData(ctx, user); err != nil {
				errs <- err
				return
			}
			ids[i] = user.ID()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent save: %v", err)
	}
	for i, id := range ids {
		loaded, err := store.LoadData(ctx, reg, id)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		expectValue(t, loaded, "login", nil, fmt.Sprintf("user-%d", i))
	}
}

func mustData(t *testing.T, reg *domain.Registry, family string) *domain.Data {
	t.Helper()
	d, err := reg.NewData(family)
	if err != nil {
		t.Fatalf("new %s: %v", family, err)
	}
	return d
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func get(t *testing.T, d *domain.Data, code string, context map[string]any) any {
	t.Helper()
	v, err := d.Get(code, context)
	if err != nil {
		t.Fatalf("get %s: %v", code, err)
	}
	return v
}

func expectValue(t *testing.T, d *domain.Data, code string, context map[string]any, want any) {
	t.Helper()
	got := get(t, d, code, context)
	if got == nil && want == nil {
		return
	}
	if got != want {
		t.Fatalf("%s.%s%v: want %#v, got %#v", d.Family().Code(), code, context, want, got)
	}
}
