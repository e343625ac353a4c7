package domain

// EffectiveAttributes returns the family's own attributes followed by the
// inherited ones that no closer family redeclares, nearest ancestor first.
// A family without attributes yields an empty, non-nil slice.
func (f *Family) EffectiveAttributes() []*Attribute {
	out := make([]*Attribute, 0, len(f.attributes))
	seen := make(map[string]struct{})
	for cur := f; cur != nil; cur = cur.parent {
		for _, a := range cur.attributes {
			if _, shadowed := seen[a.code]; shadowed {
				continue
			}
			seen[a.code] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// EffectiveAttribute resolves code against the effective attribute set.
func (f *Family) EffectiveAttribute(code string) (*Attribute, bool) {
	if fam := f.DeclaringFamily(code); fam != nil {
		return fam.byCode[code], true
	}
	return nil, false
}

// DeclaringFamily returns the nearest family in the chain starting at f that
// declares code, or nil when no family does.
func (f *Family) DeclaringFamily(code string) *Family {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.Declares(code) {
			return cur
		}
	}
	return nil
}

// IsInherited reports whether a reaches f from a strict ancestor: f and every
// family between f and a's owner must leave a.Code() undeclared.
func (f *Family) IsInherited(a *Attribute) bool {
	if a == nil || a.family == nil || a.family == f {
		return false
	}
	for cur := f; cur != nil; cur = cur.parent {
		if cur.Declares(a.code) {
			return cur != f && cur.byCode[a.code] == a
		}
	}
	return false
}

// ResolveDataType walks the parent chain until a family declares an
// underlying representation.
func (f *Family) ResolveDataType() (string, error) {
	hops := 0
	for cur := f; cur != nil; cur = cur.parent {
		if cur.dataType != "" {
			return cur.dataType, nil
		}
		hops++
		if hops > maxDepth {
			return "", &ConfigurationError{Family: f.code, Reason: "parent chain does not terminate", Err: ErrInheritanceCycle}
		}
	}
	return "", &ConfigurationError{Family: f.code, Reason: "no family in the parent chain declares a data type", Err: ErrNoRepresentation}
}

func (f *Family) resolveValueType() string {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.valueType != "" {
			return cur.valueType
		}
	}
	return DefaultValueType
}

// maxDepth bounds parent walks on graphs that have not been validated yet.
const maxDepth = 1 << 12
