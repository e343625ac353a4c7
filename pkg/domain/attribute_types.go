package domain

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// AttributeType binds a logical attribute type name to the raw database type
// identifier of its value column and to the storage kind it populates.
type AttributeType struct {
	Name         string      `json:"name" yaml:"name" toml:"name"`
	DatabaseType string      `json:"database_type" yaml:"database_type" toml:"database_type"`
	Kind         StorageKind `json:"kind" yaml:"kind" toml:"kind"`
}

// Logical type names registered by default.
const (
	TypeBool     = "bool"
	TypeInteger  = "integer"
	TypeDecimal  = "decimal"
	TypeString   = "string"
	TypeText     = "text"
	TypeDate     = "date"
	TypeDateTime = "datetime"
	TypeData     = "data"
)

const databaseTypeSuffix = "Value"

var builtinTypes = []AttributeType{
	{Name: TypeBool, DatabaseType: "boolValue", Kind: KindBool},
	{Name: TypeInteger, DatabaseType: "integerValue", Kind: KindInteger},
	{Name: TypeDecimal, DatabaseType: "decimalValue", Kind: KindDecimal},
	{Name: TypeString, DatabaseType: "stringValue", Kind: KindString},
	{Name: TypeText, DatabaseType: "textValue", Kind: KindText},
	{Name: TypeDate, DatabaseType: "dateValue", Kind: KindDate},
	{Name: TypeDateTime, DatabaseType: "datetimeValue", Kind: KindDateTime},
	{Name: TypeData, DatabaseType: "dataValue", Kind: KindEmbeddedRelation},
}

// AttributeTypes is the table of logical attribute types known to a registry.
// It is mutable only until handed to a RegistryBuilder.
type AttributeTypes struct {
	byName map[string]AttributeType
	order  []string
}

// NewAttributeTypes returns a table seeded with the built-in types.
func NewAttributeTypes() *AttributeTypes {
	t := &AttributeTypes{byName: make(map[string]AttributeType, len(builtinTypes))}
	for _, typ := range builtinTypes {
		t.byName[typ.Name] = typ
		t.order = append(t.order, typ.Name)
	}
	return t
}

// Register adds a custom logical type. The database type defaults to the name
// followed by "Value"; an empty kind is treated as a foreign relation.
func (t *AttributeTypes) Register(typ AttributeType) error {
	name := strings.TrimSpace(typ.Name)
	if name == "" {
		return &ConfigurationError{Reason: "attribute type name must not be empty"}
	}
	if _, exists := t.byName[name]; exists {
		return &ConfigurationError{Reason: "attribute type " + name + " already registered"}
	}
	typ.Name = name
	if typ.DatabaseType == "" {
		typ.DatabaseType = name + databaseTypeSuffix
	}
	if typ.Kind == "" {
		typ.Kind = KindForeignRelation
	} else {
		typ.Kind = ParseStorageKind(string(typ.Kind))
	}
	t.byName[name] = typ
	t.order = append(t.order, name)
	return nil
}

// Lookup returns the type registered under name.
func (t *AttributeTypes) Lookup(name string) (AttributeType, bool) {
	typ, ok := t.byName[name]
	return typ, ok
}

// Names lists registered type names in registration order.
func (t *AttributeTypes) Names() []string {
	return slices.Clone(t.order)
}

// ShortName strips the conventional "Value" suffix from the database type,
// yielding the slot family name ("decimalValue" -> "decimal").
func (typ AttributeType) ShortName() string {
	return strings.TrimSuffix(typ.DatabaseType, databaseTypeSuffix)
}

// ErrUnknownAttributeType is wrapped when an attribute references a type that
// is not present in the registry's type table.
var ErrUnknownAttributeType = errors.New("domain: unknown attribute type")
