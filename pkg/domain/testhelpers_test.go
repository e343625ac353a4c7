package domain

import (
	"errors"
	"testing"
)

// mustNoError simplifies tests that expect helper methods to succeed.
func mustNoError(t *testing.T, label string, err error) {
	t.Helper()
	if err != nil {
		if label == "" {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Fatalf("%s: %v", label, err)
	}
}

// libraryRegistry builds a small catalog:
//
//	Book (root, data type Book): title, summary(text), price(decimal), tags[], publishedAt(date),
//	  available(bool), stock(integer), updatedAt(datetime)
//	Magazine extends Book: issue(integer)
//	Novel extends Book: title redeclared (text), chapters[](data of Chapter), author(user), cover(data)
//	Chapter (root): heading
//	User (root): login
func libraryRegistry(t *testing.T, variant ContextVariant, keys ...string) *Registry {
	t.Helper()
	b := NewRegistryBuilder(nil).
		RegisterType(AttributeType{Name: "user", Kind: KindForeignRelation}).
		WithContext(variant, keys...).
		AddFamily(FamilySpec{
			Code:     "Book",
			DataType: "Book",
			Attributes: []AttributeSpec{
				{Code: "title", Type: TypeString},
				{Code: "summary", Type: TypeText},
				{Code: "price", Type: TypeDecimal},
				{Code: "tags", Type: TypeString, Collection: true},
				{Code: "publishedAt", Type: TypeDate},
				{Code: "available", Type: TypeBool},
				{Code: "stock", Type: TypeInteger},
				{Code: "updatedAt", Type: TypeDateTime},
			},
		}).
		AddFamily(FamilySpec{Code: "Magazine", Parent: "Book", Attributes: []AttributeSpec{
			{Code: "issue", Type: TypeInteger},
		}}).
		AddFamily(FamilySpec{Code: "Novel", Parent: "Book", DataType: "Novel", Attributes: []AttributeSpec{
			{Code: "title", Type: TypeText},
			{Code: "chapters", Type: TypeData, Collection: true, Options: map[string]any{OptionAllowedFamilies: []any{"Chapter"}}},
			{Code: "author", Type: "user"},
			{Code: "cover", Type: TypeData},
		}}).
		AddFamily(FamilySpec{Code: "Chapter", DataType: "Chapter", Attributes: []AttributeSpec{
			{Code: "heading", Type: TypeString},
		}}).
		AddFamily(FamilySpec{Code: "User", DataType: "User", Attributes: []AttributeSpec{
			{Code: "login", Type: TypeString},
		}})
	reg, err := b.Build()
	mustNoError(t, "build registry", err)
	return reg
}

func mustFamily(t *testing.T, reg *Registry, code string) *Family {
	t.Helper()
	f, ok := reg.Family(code)
	if !ok {
		t.Fatalf("family %s missing", code)
	}
	return f
}

func mustData(t *testing.T, reg *Registry, code string) *Data {
	t.Helper()
	d, err := reg.NewData(code)
	mustNoError(t, "new data "+code, err)
	return d
}

func mustValue(t *testing.T, d *Data, code string) *Value {
	t.Helper()
	attr, ok := d.Family().EffectiveAttribute(code)
	if !ok {
		t.Fatalf("attribute %s missing on %s", code, d.Family().Code())
	}
	v, err := NewValue(d, attr, nil)
	mustNoError(t, "new value "+code, err)
	return v
}

func codes(attrs []*Attribute) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Family().Code()+"."+a.Code())
	}
	return out
}

func assertErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if !errors.As(err, &target) {
		t.Fatalf("expected %T, got %v", target, err)
	}
	return target
}
