package domain

import (
	"maps"

	"github.com/spf13/cast"
)

// OptionAllowedFamilies lists the family codes an embedded relation may hold.
const OptionAllowedFamilies = "allowed_families"

// Attribute is a typed property definition owned by exactly one family. It is
// immutable once its registry is built.
type Attribute struct {
	code       string
	typ        AttributeType
	collection bool
	options    map[string]any
	family     *Family
}

// Code returns the attribute code.
func (a *Attribute) Code() string { return a.code }

// Type returns the logical attribute type.
func (a *Attribute) Type() AttributeType { return a.typ }

// Kind returns the storage kind the attribute's values populate.
func (a *Attribute) Kind() StorageKind {
	if a == nil || a.typ.Kind == "" {
		return KindUnknown
	}
	return a.typ.Kind
}

// Collection reports whether the attribute holds an ordered list of values.
func (a *Attribute) Collection() bool { return a.collection }

// Family returns the family that declares the attribute.
func (a *Attribute) Family() *Family { return a.family }

// Option returns a single option value.
func (a *Attribute) Option(key string) (any, bool) {
	v, ok := a.options[key]
	return v, ok
}

// Options returns a shallow copy of the attribute options.
func (a *Attribute) Options() map[string]any {
	if len(a.options) == 0 {
		return map[string]any{}
	}
	return maps.Clone(a.options)
}

// AllowedFamilies returns the allowed_families option as a list. A single
// string is promoted to a one-element list; an absent option yields nil.
func (a *Attribute) AllowedFamilies() []string {
	raw, ok := a.options[OptionAllowedFamilies]
	if !ok || raw == nil {
		return nil
	}
	if s, ok := raw.(string); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	families, err := cast.ToStringSliceE(raw)
	if err != nil {
		return nil
	}
	return families
}

// allowedFamiliesValid reports whether the raw option can be read as a list of codes.
func allowedFamiliesValid(raw any) bool {
	if raw == nil {
		return true
	}
	if _, ok := raw.(string); ok {
		return true
	}
	switch raw.(type) {
	case []string, []any:
	default:
		return false
	}
	_, err := cast.ToStringSliceE(raw)
	return err == nil
}
