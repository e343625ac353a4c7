package domain

import "slices"

// DefaultValueType names the value-bearing type of root families that do not
// declare one.
const DefaultValueType = "Value"

// Family is a named, inheritable set of attributes. Families are created by a
// RegistryBuilder and are read-only afterwards, so they can be shared across
// goroutines without locking.
type Family struct {
	code       string
	parent     *Family
	attributes []*Attribute
	byCode     map[string]*Attribute
	dataType   string
	valueType  string

	resolvedDataType  string
	resolvedValueType string
}

// Code returns the globally unique family code.
func (f *Family) Code() string { return f.code }

// Parent returns the parent family or nil for roots.
func (f *Family) Parent() *Family { return f.parent }

// Attributes returns the family's own attributes in declaration order.
func (f *Family) Attributes() []*Attribute {
	return slices.Clone(f.attributes)
}

// OwnAttribute looks up an attribute declared directly on the family.
func (f *Family) OwnAttribute(code string) (*Attribute, bool) {
	a, ok := f.byCode[code]
	return a, ok
}

// Declares reports whether the family itself declares code.
func (f *Family) Declares(code string) bool {
	_, ok := f.byCode[code]
	return ok
}

// DeclaredDataType returns the representation declared on the family itself;
// empty means it is inherited from the parent.
func (f *Family) DeclaredDataType() string { return f.dataType }

// DataType returns the resolved underlying representation.
func (f *Family) DataType() string { return f.resolvedDataType }

// ValueType returns the resolved value-bearing type used for association lookups.
func (f *Family) ValueType() string { return f.resolvedValueType }

// Ancestors returns the strict ancestors of f, nearest first.
func (f *Family) Ancestors() []*Family {
	var out []*Family
	for p := f.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// IsA reports whether f is other or descends from it.
func (f *Family) IsA(other *Family) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}
