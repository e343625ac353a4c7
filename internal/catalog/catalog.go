// Package catalog maps attribute types onto storage kinds and onto the
// documented accessor types generated code exposes.
package catalog

import (
	"strings"

	"eavcore/pkg/domain"
)

// Documented type names produced by the mapping.
const (
	TypeBool     = "bool"
	TypeInteger  = "integer"
	TypeDouble   = "double"
	TypeString   = "string"
	TypeDateTime = "DateTime"
	TypeArray    = "array"
	TypeMixed    = "mixed"
)

// Shape classifies an accessor type.
type Shape string

// Accessor type shapes.
const (
	ShapeScalar   Shape = "scalar"
	ShapeTemporal Shape = "temporal"
	ShapeFamilies Shape = "families"
	ShapeTarget   Shape = "target"
	ShapeArray    Shape = "array"
	ShapeMixed    Shape = "mixed"
)

// AccessorType is the documented parameter/return type of an accessor. Names
// holds the scalar name, the temporal type, the allowed family codes or the
// association target; Collection marks each member as a sequence.
type AccessorType struct {
	Shape      Shape    `json:"shape" yaml:"shape"`
	Names      []string `json:"names,omitempty" yaml:"names,omitempty"`
	Collection bool     `json:"collection,omitempty" yaml:"collection,omitempty"`
}

// String renders the type notation: "double", "DateTime[]", "Image|Video",
// "Product[]", "array" or "mixed".
func (t AccessorType) String() string {
	switch t.Shape {
	case ShapeArray:
		return TypeArray
	case ShapeMixed, "":
		return TypeMixed
	}
	parts := make([]string, len(t.Names))
	for i, n := range t.Names {
		if t.Collection {
			n += "[]"
		}
		parts[i] = n
	}
	return strings.Join(parts, "|")
}

// IsFallback reports whether the type is the generic array/mixed fallback.
func (t AccessorType) IsFallback() bool {
	return t.Shape == ShapeArray || t.Shape == ShapeMixed
}

// Cardinality tells scalar attributes from collections.
type Cardinality string

// Cardinalities.
const (
	Scalar     Cardinality = "scalar"
	Collection Cardinality = "collection"
)

// Catalog resolves accessor types. The association mapper is consulted for
// foreign and unknown kinds; a nil mapper never finds a target.
type Catalog struct {
	associations AssociationMapper
}

// New returns a catalog backed by the given association mapper.
func New(associations AssociationMapper) *Catalog {
	if associations == nil {
		associations = StaticAssociations(nil)
	}
	return &Catalog{associations: associations}
}

// StorageKind returns the value slot category of an attribute.
func (c *Catalog) StorageKind(a *domain.Attribute) domain.StorageKind {
	return a.Kind()
}

// Cardinality returns whether the attribute holds one value or a sequence.
func (c *Catalog) Cardinality(a *domain.Attribute) Cardinality {
	if a.Collection() {
		return Collection
	}
	return Scalar
}

// AccessorType maps an attribute of family onto its documented type.
// forceSingle yields the per-element type used by adders and removers.
// Association misses fall back to array/mixed and are never reported.
func (c *Catalog) AccessorType(family *domain.Family, a *domain.Attribute, forceSingle bool) AccessorType {
	collection := a.Collection() && !forceSingle
	switch kind := a.Kind(); kind {
	case domain.KindBool, domain.KindInteger, domain.KindDecimal, domain.KindString, domain.KindText:
		if collection {
			return AccessorType{Shape: ShapeArray}
		}
		return AccessorType{Shape: ShapeScalar, Names: []string{scalarName(kind)}}
	case domain.KindDate, domain.KindDateTime:
		return AccessorType{Shape: ShapeTemporal, Names: []string{TypeDateTime}, Collection: collection}
	case domain.KindEmbeddedRelation:
		if families := a.AllowedFamilies(); len(families) > 0 {
			return AccessorType{Shape: ShapeFamilies, Names: families, Collection: collection}
		}
		return fallback(collection)
	default:
		target, ok := c.associations.AssociationTarget(family.ValueType(), a.Type().DatabaseType)
		if !ok || strings.TrimSpace(target) == "" {
			return fallback(collection)
		}
		return AccessorType{Shape: ShapeTarget, Names: []string{target}, Collection: collection}
	}
}

func scalarName(kind domain.StorageKind) string {
	switch kind {
	case domain.KindBool:
		return TypeBool
	case domain.KindInteger:
		return TypeInteger
	case domain.KindDecimal:
		return TypeDouble
	default:
		return TypeString
	}
}

func fallback(collection bool) AccessorType {
	if collection {
		return AccessorType{Shape: ShapeArray}
	}
	return AccessorType{Shape: ShapeMixed}
}
