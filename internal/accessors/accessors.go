// Package accessors derives the accessor surface each family imposes on
// generated code: getters and setters for every own attribute, plus adders and
// removers for collections, minus anything the data type already implements.
package accessors

import (
	"unicode"
	"unicode/utf8"

	"eavcore/internal/catalog"
	"eavcore/pkg/domain"
)

// Kind is the accessor kind.
type Kind string

// Accessor kinds in emission order.
const (
	KindGet    Kind = "get"
	KindSet    Kind = "set"
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
)

// MethodChecker reports whether a data type natively implements a method.
// Implementations must be pure; the generator calls them once per candidate.
type MethodChecker interface {
	HasMethod(dataType, method string) bool
}

// MethodCheckerFunc adapts a function to MethodChecker.
type MethodCheckerFunc func(dataType, method string) bool

// HasMethod implements MethodChecker.
func (f MethodCheckerFunc) HasMethod(dataType, method string) bool { return f(dataType, method) }

// NoMethods is a MethodChecker for data types with no native accessors.
var NoMethods MethodChecker = MethodCheckerFunc(func(string, string) bool { return false })

// Declaration is one required accessor.
type Declaration struct {
	FamilyCode    string               `json:"family_code" yaml:"family_code"`
	AttributeCode string               `json:"attribute_code" yaml:"attribute_code"`
	Name          string               `json:"name" yaml:"name"`
	Kind          Kind                 `json:"kind" yaml:"kind"`
	Type          catalog.AccessorType `json:"type" yaml:"type"`
	ReturnType    string               `json:"return_type" yaml:"return_type"`
	HasContext    bool                 `json:"context" yaml:"context"`
}

// TypeString is the documented parameter or return type notation.
func (d Declaration) TypeString() string { return d.Type.String() }

// Unit is the generation output for one family.
type Unit struct {
	FamilyCode string `json:"family_code" yaml:"family_code"`
	// Extends is the parent family code, or the resolved data type for roots.
	Extends       string        `json:"extends" yaml:"extends"`
	ExtendsFamily bool          `json:"extends_family" yaml:"extends_family"`
	DataType      string        `json:"data_type" yaml:"data_type"`
	Declarations  []Declaration `json:"declarations" yaml:"declarations"`
}

// Count returns the number of declarations per kind.
func (u Unit) Count() map[Kind]int {
	out := make(map[Kind]int, 4)
	for _, d := range u.Declarations {
		out[d.Kind]++
	}
	return out
}

// Generator computes units. It holds no mutable state and may be shared.
type Generator struct {
	catalog *catalog.Catalog
	methods MethodChecker
}

// NewGenerator wires the type catalog and the native-method oracle. Nil
// arguments select an empty association table and NoMethods.
func NewGenerator(cat *catalog.Catalog, methods MethodChecker) *Generator {
	if cat == nil {
		cat = catalog.New(nil)
	}
	if methods == nil {
		methods = NoMethods
	}
	return &Generator{catalog: cat, methods: methods}
}

// Units generates one unit per family, in the order given.
func (g *Generator) Units(families []*domain.Family) []Unit {
	out := make([]Unit, 0, len(families))
	for _, f := range families {
		out = append(out, g.Unit(f))
	}
	return out
}

// Unit generates the declarations for a single family. Attributes the family
// inherits are documented on the ancestor that declares them and skipped here.
func (g *Generator) Unit(f *domain.Family) Unit {
	unit := Unit{FamilyCode: f.Code(), DataType: f.DataType(), Declarations: []Declaration{}}
	if p := f.Parent(); p != nil {
		unit.Extends = p.Code()
		unit.ExtendsFamily = true
	} else {
		unit.Extends = f.DataType()
	}
	for _, a := range f.EffectiveAttributes() {
		if f.IsInherited(a) {
			continue
		}
		unit.Declarations = append(unit.Declarations, g.attributeDeclarations(f, a)...)
	}
	return unit
}

func (g *Generator) attributeDeclarations(f *domain.Family, a *domain.Attribute) []Declaration {
	var out []Declaration
	full := g.catalog.AccessorType(f, a, false)
	out = g.appendIfMissing(out, f, a, KindGet, full, full.String())
	out = g.appendIfMissing(out, f, a, KindSet, full, f.Code())
	if a.Collection() {
		single := g.catalog.AccessorType(f, a, true)
		out = g.appendIfMissing(out, f, a, KindAdd, single, f.Code())
		out = g.appendIfMissing(out, f, a, KindRemove, single, f.Code())
	}
	return out
}

func (g *Generator) appendIfMissing(out []Declaration, f *domain.Family, a *domain.Attribute, kind Kind, typ catalog.AccessorType, returns string) []Declaration {
	name := AccessorName(kind, a.Code())
	if g.methods.HasMethod(f.DataType(), name) {
		return out
	}
	return append(out, Declaration{
		FamilyCode:    f.Code(),
		AttributeCode: a.Code(),
		Name:          name,
		Kind:          kind,
		Type:          typ,
		ReturnType:    returns,
		HasContext:    true,
	})
}

// AccessorName builds "get"/"set"/"add"/"remove" + the code with its first
// letter upper-cased.
func AccessorName(kind Kind, code string) string {
	return string(kind) + UpperFirst(code)
}

// UpperFirst upper-cases the first letter of code and keeps the rest as is,
// so distinct codes always give distinct names.
func UpperFirst(code string) string {
	r, size := utf8.DecodeRuneInString(code)
	if size == 0 {
		return code
	}
	return string(unicode.ToUpper(r)) + code[size:]
}
