// Package domain holds the family/attribute model, the attribute resolver and
// the value record model shared by every adapter in eavcore. It must stay free
// of infrastructure imports.
package domain

// StorageKind identifies the value slot an attribute's representation maps to.
type StorageKind string

// Storage kinds understood by the value record model.
const (
	KindBool             StorageKind = "bool"
	KindInteger          StorageKind = "integer"
	KindDecimal          StorageKind = "decimal"
	KindString           StorageKind = "string"
	KindText             StorageKind = "text"
	KindDate             StorageKind = "date"
	KindDateTime         StorageKind = "datetime"
	KindEmbeddedRelation StorageKind = "embedded_relation"
	KindForeignRelation  StorageKind = "foreign_relation"
	KindUnknown          StorageKind = "unknown"
)

var knownKinds = map[StorageKind]struct{}{
	KindBool:             {},
	KindInteger:          {},
	KindDecimal:          {},
	KindString:           {},
	KindText:             {},
	KindDate:             {},
	KindDateTime:         {},
	KindEmbeddedRelation: {},
	KindForeignRelation:  {},
	KindUnknown:          {},
}

// ParseStorageKind converts a textual kind, returning KindUnknown for values
// outside the enumeration.
func ParseStorageKind(raw string) StorageKind {
	kind := StorageKind(raw)
	if _, ok := knownKinds[kind]; ok {
		return kind
	}
	return KindUnknown
}

// String implements fmt.Stringer.
func (k StorageKind) String() string { return string(k) }

// IsScalar reports whether the kind is stored in a boolean, numeric or string slot.
func (k StorageKind) IsScalar() bool {
	switch k {
	case KindBool, KindInteger, KindDecimal, KindString, KindText:
		return true
	default:
		return false
	}
}

// IsTemporal reports whether the kind is stored in the date or datetime slot.
func (k StorageKind) IsTemporal() bool {
	return k == KindDate || k == KindDateTime
}

// IsRelation reports whether the kind is stored in the relation slot.
func (k StorageKind) IsRelation() bool {
	return k == KindEmbeddedRelation || k == KindForeignRelation
}
