package accessors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eavcore/internal/catalog"
	"eavcore/pkg/domain"
)

func library(t *testing.T) *domain.Registry {
	t.Helper()
	reg, err := domain.NewRegistryBuilder(nil).
		RegisterType(domain.AttributeType{Name: "user"}).
		AddFamily(domain.FamilySpec{Code: "Book", DataType: "BookData", Attributes: []domain.AttributeSpec{
			{Code: "title", Type: domain.TypeString},
		}}).
		AddFamily(domain.FamilySpec{Code: "Magazine", Parent: "Book"}).
		AddFamily(domain.FamilySpec{Code: "Novel", Parent: "Book", Attributes: []domain.AttributeSpec{
			{Code: "title", Type: domain.TypeText},
			{Code: "chapters", Type: domain.TypeData, Collection: true, Options: map[string]any{domain.OptionAllowedFamilies: "Chapter"}},
			{Code: "author", Type: "user"},
			{Code: "published_at", Type: domain.TypeDate},
		}}).
		AddFamily(domain.FamilySpec{Code: "Chapter", DataType: "ChapterData"}).
		Build()
	require.NoError(t, err)
	return reg
}

func family(t *testing.T, reg *domain.Registry, code string) *domain.Family {
	t.Helper()
	f, ok := reg.Family(code)
	require.True(t, ok)
	return f
}

func names(decls []Declaration) []string {
	out := make([]string, 0, len(decls))
	for _, d := range decls {
		out = append(out, d.Name)
	}
	return out
}

func TestBookGetsGetterAndSetterOnly(t *testing.T) {
	reg := library(t)
	unit := NewGenerator(nil, nil).Unit(family(t, reg, "Book"))

	assert.Equal(t, "Book", unit.FamilyCode)
	assert.Equal(t, "BookData", unit.Extends)
	assert.False(t, unit.ExtendsFamily)
	require.Len(t, unit.Declarations, 2)

	get, set := unit.Declarations[0], unit.Declarations[1]
	assert.Equal(t, Declaration{
		FamilyCode: "Book", AttributeCode: "title", Name: "getTitle", Kind: KindGet,
		Type:       catalog.AccessorType{Shape: catalog.ShapeScalar, Names: []string{"string"}},
		ReturnType: "string", HasContext: true,
	}, get)
	assert.Equal(t, "setTitle", set.Name)
	assert.Equal(t, KindSet, set.Kind)
	assert.Equal(t, "string", set.TypeString())
	assert.Equal(t, "Book", set.ReturnType)
	assert.True(t, set.HasContext)
}

func TestMagazineSkipsInheritedAttributes(t *testing.T) {
	reg := library(t)
	unit := NewGenerator(nil, nil).Unit(family(t, reg, "Magazine"))
	assert.Equal(t, "Book", unit.Extends)
	assert.True(t, unit.ExtendsFamily)
	assert.Equal(t, "BookData", unit.DataType)
	assert.Empty(t, unit.Declarations)
	assert.NotNil(t, unit.Declarations)
}

func TestNovelRedeclaresAndAddsCollections(t *testing.T) {
	reg := library(t)
	cat := catalog.New(catalog.StaticAssociations{}.Add(domain.DefaultValueType, "userValue", "User"))
	unit := NewGenerator(cat, nil).Unit(family(t, reg, "Novel"))

	assert.Equal(t, []string{
		"getTitle", "setTitle",
		"getChapters", "setChapters", "addChapters", "removeChapters",
		"getAuthor", "setAuthor",
		"getPublished_at", "setPublished_at",
	}, names(unit.Declarations))

	byName := map[string]Declaration{}
	for _, d := range unit.Declarations {
		byName[d.Name] = d
		assert.True(t, d.HasContext, d.Name)
	}
	assert.Equal(t, "Chapter[]", byName["getChapters"].ReturnType)
	assert.Equal(t, "Chapter[]", byName["setChapters"].TypeString())
	assert.Equal(t, "Novel", byName["setChapters"].ReturnType)
	assert.Equal(t, "Chapter", byName["addChapters"].TypeString())
	assert.Equal(t, "Chapter", byName["removeChapters"].TypeString())
	assert.Equal(t, "Novel", byName["removeChapters"].ReturnType)
	assert.Equal(t, "User", byName["getAuthor"].ReturnType)
	assert.Equal(t, "DateTime", byName["getPublished_at"].ReturnType)

	counts := unit.Count()
	assert.Equal(t, 4, counts[KindGet])
	assert.Equal(t, 1, counts[KindAdd])
}

func TestNativeMethodsAreSkippedIndependently(t *testing.T) {
	reg := library(t)
	var calls []string
	oracle := MethodCheckerFunc(func(dataType, method string) bool {
		calls = append(calls, dataType+"."+method)
		return method == "getTitle" || method == "addChapters"
	})
	unit := NewGenerator(nil, oracle).Unit(family(t, reg, "Novel"))
	got := names(unit.Declarations)
	assert.NotContains(t, got, "getTitle")
	assert.Contains(t, got, "setTitle")
	assert.NotContains(t, got, "addChapters")
	assert.Contains(t, got, "removeChapters")
	assert.Contains(t, calls, "BookData.getTitle", "oracle is asked with the resolved data type")
}

func TestUnitsFollowFamilyOrder(t *testing.T) {
	reg := library(t)
	units := NewGenerator(nil, nil).Units(reg.Families())
	require.Len(t, units, 4)
	var codes []string
	for _, u := range units {
		codes = append(codes, u.FamilyCode)
	}
	assert.Equal(t, []string{"Book", "Magazine", "Novel", "Chapter"}, codes)
}

func TestAccessorName(t *testing.T) {
	cases := map[string]string{
		"title":         "Title",
		"published_at":  "Published_at",
		"isbn-13":       "Isbn-13",
		"meta.keywords": "Meta.keywords",
		"short name":    "Short name",
		"camelCase":     "CamelCase",
		"élan":          "Élan",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, UpperFirst(in), in)
	}
	assert.Equal(t, "removeTags", AccessorName(KindRemove, "tags"))
}

func TestAccessorNamesStayDistinct(t *testing.T) {
	reg, err := domain.NewRegistryBuilder(nil).
		AddFamily(domain.FamilySpec{Code: "Person", DataType: "PersonData", Attributes: []domain.AttributeSpec{
			{Code: "first_name", Type: domain.TypeString},
			{Code: "firstName", Type: domain.TypeString},
		}}).
		Build()
	require.NoError(t, err)
	unit := NewGenerator(nil, nil).Unit(family(t, reg, "Person"))
	assert.Equal(t, []string{"getFirst_name", "setFirst_name", "getFirstName", "setFirstName"}, names(unit.Declarations))
}
