package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AttributeSpec describes an attribute before it is bound to a family.
type AttributeSpec struct {
	Code       string
	Type       string
	Collection bool
	Options    map[string]any
}

// FamilySpec describes a family before the registry is built. Attributes are
// kept in declaration order.
type FamilySpec struct {
	Code       string
	Parent     string
	DataType   string
	ValueType  string
	Attributes []AttributeSpec
}

// ContextVariant selects the context record used by every value a registry creates.
type ContextVariant string

const (
	ContextNone   ContextVariant = "none"
	ContextScoped ContextVariant = "scoped"
	ContextKeyed  ContextVariant = "keyed"
)

// Registry is the validated, immutable family catalog for one process run.
type Registry struct {
	families    []*Family
	byCode      map[string]*Family
	types       *AttributeTypes
	variant     ContextVariant
	contextKeys []string
}

// Families returns every family in registration order.
func (r *Registry) Families() []*Family {
	return slices.Clone(r.families)
}

// Family looks up a family by code.
func (r *Registry) Family(code string) (*Family, bool) {
	f, ok := r.byCode[code]
	return f, ok
}

// Types returns the attribute type table the registry was built with.
func (r *Registry) Types() *AttributeTypes { return r.types }

// ContextVariant reports the context record variant values are created with.
func (r *Registry) ContextVariant() ContextVariant { return r.variant }

// NewContext returns an empty context record of the registry's variant.
func (r *Registry) NewContext() ContextRecord {
	switch r.variant {
	case ContextScoped:
		return NewScopedContext()
	case ContextKeyed:
		return NewKeyedContext(r.contextKeys...)
	default:
		return NoContext{}
	}
}

// RegistryBuilder collects family definitions and validates them once in Build.
type RegistryBuilder struct {
	types     *AttributeTypes
	specs     []FamilySpec
	detached  []detachedAttribute
	variant   ContextVariant
	keys      []string
	typeError error
}

type detachedAttribute struct {
	family string
	spec   AttributeSpec
}

// NewRegistryBuilder starts a builder. A nil type table selects the built-ins.
func NewRegistryBuilder(types *AttributeTypes) *RegistryBuilder {
	if types == nil {
		types = NewAttributeTypes()
	}
	return &RegistryBuilder{types: types, variant: ContextNone}
}

// RegisterType adds a custom attribute type; errors surface from Build.
func (b *RegistryBuilder) RegisterType(typ AttributeType) *RegistryBuilder {
	if err := b.types.Register(typ); err != nil && b.typeError == nil {
		b.typeError = err
	}
	return b
}

// AddFamily queues a family definition.
func (b *RegistryBuilder) AddFamily(spec FamilySpec) *RegistryBuilder {
	spec.Attributes = slices.Clone(spec.Attributes)
	b.specs = append(b.specs, spec)
	return b
}

// AddAttribute queues an attribute declared outside its family definition. It
// is appended after the family's inline attributes. An empty or unknown family
// code fails the build.
func (b *RegistryBuilder) AddAttribute(familyCode string, spec AttributeSpec) *RegistryBuilder {
	b.detached = append(b.detached, detachedAttribute{family: familyCode, spec: spec})
	return b
}

// WithContext selects the context variant and, for ContextKeyed, the allowed keys.
func (b *RegistryBuilder) WithContext(variant ContextVariant, keys ...string) *RegistryBuilder {
	b.variant = variant
	b.keys = slices.Clone(keys)
	return b
}

// Build validates the queued definitions and returns the registry. The first
// problem found aborts the build with a *ConfigurationError.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if b.typeError != nil {
		return nil, b.typeError
	}
	if err := b.validateContext(); err != nil {
		return nil, err
	}
	reg := &Registry{
		byCode:      make(map[string]*Family, len(b.specs)),
		types:       b.types,
		variant:     b.variant,
		contextKeys: slices.Clone(b.keys),
	}
	for _, spec := range b.specs {
		code := strings.TrimSpace(spec.Code)
		if code == "" {
			return nil, &ConfigurationError{Reason: "family code must not be empty"}
		}
		if _, dup := reg.byCode[code]; dup {
			return nil, &ConfigurationError{Family: code, Reason: "family code registered twice", Err: ErrDuplicateFamily}
		}
		fam := &Family{
			code:      code,
			byCode:    make(map[string]*Attribute, len(spec.Attributes)),
			dataType:  strings.TrimSpace(spec.DataType),
			valueType: strings.TrimSpace(spec.ValueType),
		}
		reg.byCode[code] = fam
		reg.families = append(reg.families, fam)
	}
	for i, spec := range b.specs {
		fam := reg.families[i]
		if parent := strings.TrimSpace(spec.Parent); parent != "" {
			p, ok := reg.byCode[parent]
			if !ok {
				return nil, &ConfigurationError{Family: fam.code, Reason: fmt.Sprintf("parent %q is not registered", parent), Err: ErrUnknownParent}
			}
			fam.parent = p
		}
		for _, as := range spec.Attributes {
			if err := b.attach(fam, as); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range b.detached {
		fam, ok := reg.byCode[strings.TrimSpace(d.family)]
		if !ok {
			return nil, &ConfigurationError{Family: d.family, Attribute: d.spec.Code, Reason: "attribute is not assigned to a registered family", Err: ErrMissingFamily}
		}
		if err := b.attach(fam, d.spec); err != nil {
			return nil, err
		}
	}
	if err := checkCycles(reg.families); err != nil {
		return nil, err
	}
	for _, fam := range reg.families {
		dt, err := fam.ResolveDataType()
		if err != nil {
			return nil, err
		}
		fam.resolvedDataType = dt
		fam.resolvedValueType = fam.resolveValueType()
	}
	for _, fam := range reg.families {
		for _, a := range fam.attributes {
			if err := checkAllowedFamilies(reg, a); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

func (b *RegistryBuilder) attach(fam *Family, spec AttributeSpec) error {
	code := strings.TrimSpace(spec.Code)
	if code == "" {
		return &ConfigurationError{Family: fam.code, Reason: "attribute code must not be empty"}
	}
	if fam.Declares(code) {
		return &ConfigurationError{Family: fam.code, Attribute: code, Reason: "attribute declared twice", Err: ErrDuplicateAttribute}
	}
	typ, ok := b.types.Lookup(strings.TrimSpace(spec.Type))
	if !ok {
		return &ConfigurationError{Family: fam.code, Attribute: code, Reason: fmt.Sprintf("type %q is not registered", spec.Type), Err: ErrUnknownAttributeType}
	}
	attr := &Attribute{
		code:       code,
		typ:        typ,
		collection: spec.Collection,
		family:     fam,
	}
	if len(spec.Options) > 0 {
		attr.options = maps.Clone(spec.Options)
	}
	fam.attributes = append(fam.attributes, attr)
	fam.byCode[code] = attr
	return nil
}

func (b *RegistryBuilder) validateContext() error {
	switch b.variant {
	case "", ContextNone:
		b.variant = ContextNone
		b.keys = nil
	case ContextScoped:
		b.keys = nil
	case ContextKeyed:
		if len(b.keys) == 0 {
			return &ConfigurationError{Reason: "keyed context requires at least one key"}
		}
		seen := make(map[string]struct{}, len(b.keys))
		for _, k := range b.keys {
			if strings.TrimSpace(k) == "" {
				return &ConfigurationError{Reason: "context keys must not be empty"}
			}
			if _, dup := seen[k]; dup {
				return &ConfigurationError{Reason: fmt.Sprintf("context key %q declared twice", k)}
			}
			seen[k] = struct{}{}
		}
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown context variant %q", b.variant)}
	}
	return nil
}

// checkCycles walks every parent chain once; a chain that revisits a family
// on the current path is a cycle.
func checkCycles(families []*Family) error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[*Family]int, len(families))
	for _, start := range families {
		var path []*Family
		cur := start
		for cur != nil && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = cur.parent
		}
		if cur != nil && state[cur] == onPath {
			codes := make([]string, 0, len(path)+1)
			for _, f := range path {
				codes = append(codes, f.code)
			}
			codes = append(codes, cur.code)
			return &ConfigurationError{Family: cur.code, Reason: "inheritance cycle " + strings.Join(codes, " -> "), Err: ErrInheritanceCycle}
		}
		for _, f := range path {
			state[f] = done
		}
	}
	return nil
}

func checkAllowedFamilies(reg *Registry, a *Attribute) error {
	raw, ok := a.options[OptionAllowedFamilies]
	if !ok {
		return nil
	}
	if !allowedFamiliesValid(raw) {
		return &ConfigurationError{Family: a.family.code, Attribute: a.code, Reason: "allowed_families must be a family code or a list of family codes"}
	}
	for _, code := range a.AllowedFamilies() {
		if _, ok := reg.byCode[code]; !ok {
			return &ConfigurationError{Family: a.family.code, Attribute: a.code, Reason: fmt.Sprintf("allowed family %q is not registered", code)}
		}
	}
	return nil
}
