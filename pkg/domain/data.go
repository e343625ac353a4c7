package domain

import (
	"reflect"
	"slices"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// Data is an entity whose properties live in value records. A Data owns its
// values exclusively: destroying it destroys them.
type Data struct {
	id         string
	family     *Family
	values     []*Value
	newContext func() ContextRecord
}

// NewData creates an empty entity of the given family. Values it creates use
// the registry's context variant.
func (r *Registry) NewData(familyCode string) (*Data, error) {
	fam, ok := r.byCode[familyCode]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "family %q", familyCode)
	}
	return &Data{family: fam, newContext: r.NewContext}, nil
}

// NewData creates an entity outside a registry; a nil factory means NoContext.
func NewData(family *Family, contextFactory func() ContextRecord) (*Data, error) {
	if family == nil {
		return nil, &ConfigurationError{Reason: "data requires a family", Err: ErrMissingFamily}
	}
	if contextFactory == nil {
		contextFactory = func() ContextRecord { return NoContext{} }
	}
	return &Data{family: family, newContext: contextFactory}, nil
}

// ID returns the identity, empty until first persisted.
func (d *Data) ID() string { return d.id }

// Family returns the family of the entity.
func (d *Data) Family() *Family { return d.family }

// Values returns every value record, grouped by attribute and ordered by position.
func (d *Data) Values() []*Value {
	out := slices.Clone(d.values)
	sortValues(out)
	return out
}

// ValuesFor returns the records of one attribute across all contexts.
func (d *Data) ValuesFor(code string) []*Value {
	var out []*Value
	for _, v := range d.values {
		if v.attributeCode == code {
			out = append(out, v)
		}
	}
	sortValues(out)
	return out
}

// Get returns the value of an attribute in a context: the plain slot value for
// scalars (nil when unset) and an ordered []any for collections.
func (d *Data) Get(code string, context map[string]any) (any, error) {
	attr, ctx, err := d.resolve(code, context)
	if err != nil {
		return nil, err
	}
	matches := d.matching(code, ctx)
	if attr.collection {
		out := make([]any, 0, len(matches))
		for _, v := range matches {
			out = append(out, v.Get())
		}
		return out, nil
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0].Get(), nil
}

// Set assigns an attribute in a context. For collections input must be a
// slice; existing elements in that context are replaced.
func (d *Data) Set(code string, input any, context map[string]any) error {
	attr, ctx, err := d.resolve(code, context)
	if err != nil {
		return err
	}
	if !attr.collection {
		if input == nil {
			d.drop(code, ctx)
			return nil
		}
		if matches := d.matching(code, ctx); len(matches) > 0 {
			return matches[0].Set(input)
		}
		v, err := d.newValue(attr, ctx)
		if err != nil {
			return err
		}
		if err := v.Set(input); err != nil {
			return err
		}
		d.values = append(d.values, v)
		return nil
	}
	elements, err := toSlice(attr, input)
	if err != nil {
		return err
	}
	created := make([]*Value, 0, len(elements))
	for i, el := range elements {
		v, err := d.newValue(attr, ctx)
		if err != nil {
			return err
		}
		if err := v.Set(el); err != nil {
			return err
		}
		v.SetPosition(i)
		created = append(created, v)
	}
	d.drop(code, ctx)
	d.values = append(d.values, created...)
	return nil
}

// Add appends one element to a collection attribute.
func (d *Data) Add(code string, input any, context map[string]any) error {
	attr, ctx, err := d.resolve(code, context)
	if err != nil {
		return err
	}
	if !attr.collection {
		return &InvalidValueError{Attribute: code, Kind: attr.Kind(), Input: input, Reason: "add requires a collection attribute"}
	}
	v, err := d.newValue(attr, ctx)
	if err != nil {
		return err
	}
	if err := v.Set(input); err != nil {
		return err
	}
	next := 0
	for _, existing := range d.matching(code, ctx) {
		if pos, ok := existing.Position(); ok && pos >= next {
			next = pos + 1
		}
	}
	v.SetPosition(next)
	d.values = append(d.values, v)
	return nil
}

// Remove deletes the first element equal to input from a collection attribute.
// Relations compare by identity, scalars by their coerced value.
func (d *Data) Remove(code string, input any, context map[string]any) (bool, error) {
	attr, ctx, err := d.resolve(code, context)
	if err != nil {
		return false, err
	}
	if !attr.collection {
		return false, &InvalidValueError{Attribute: code, Kind: attr.Kind(), Input: input, Reason: "remove requires a collection attribute"}
	}
	candidate, err := d.newValue(attr, ctx)
	if err != nil {
		return false, err
	}
	if err := candidate.Set(input); err != nil {
		return false, err
	}
	want := candidate.Get()
	for _, v := range d.matching(code, ctx) {
		if sameValue(attr.Kind(), v.Get(), want) {
			d.values = slices.DeleteFunc(d.values, func(x *Value) bool { return x == v })
			return true, nil
		}
	}
	return false, nil
}

// Clear destroys every record of an attribute in a context.
func (d *Data) Clear(code string, context map[string]any) error {
	_, ctx, err := d.resolve(code, context)
	if err != nil {
		return err
	}
	d.drop(code, ctx)
	return nil
}

// Clone copies the entity and all of its values without identities. An
// embedded target reached twice is copied once, so embedded cycles are
// preserved in the copy.
func (d *Data) Clone() *Data {
	return d.cloneWith(make(map[*Data]*Data))
}

func (d *Data) cloneWith(seen map[*Data]*Data) *Data {
	if cp, ok := seen[d]; ok {
		return cp
	}
	cp := &Data{family: d.family, newContext: d.newContext}
	seen[d] = cp
	cp.values = make([]*Value, 0, len(d.values))
	for _, v := range d.values {
		c := v.cloneWith(seen)
		c.owner = cp
		cp.values = append(cp.values, c)
	}
	return cp
}

func (d *Data) resolve(code string, context map[string]any) (*Attribute, ContextRecord, error) {
	attr, ok := d.family.EffectiveAttribute(code)
	if !ok {
		return nil, nil, &UnknownAttributeError{Family: d.family.code, Attribute: code}
	}
	ctx := d.newContext()
	check := &Value{attribute: attr, attributeCode: code, context: ctx}
	if err := check.SetContext(context); err != nil {
		return nil, nil, err
	}
	return attr, ctx, nil
}

func (d *Data) newValue(attr *Attribute, ctx ContextRecord) (*Value, error) {
	return NewValue(d, attr, ctx.Clone())
}

func (d *Data) matching(code string, ctx ContextRecord) []*Value {
	var out []*Value
	for _, v := range d.values {
		if v.attributeCode == code && v.MatchesContext(ctx) {
			out = append(out, v)
		}
	}
	sortValues(out)
	return out
}

func (d *Data) drop(code string, ctx ContextRecord) {
	d.values = slices.DeleteFunc(d.values, func(v *Value) bool {
		return v.attributeCode == code && v.MatchesContext(ctx)
	})
}

// adopt attaches a restored value; used by row hydration.
func (d *Data) adopt(v *Value) {
	v.owner = d
	d.values = append(d.values, v)
}

func toSlice(attr *Attribute, input any) ([]any, error) {
	if input == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &InvalidValueError{Attribute: attr.code, Kind: attr.Kind(), Input: input, Reason: "collection attributes take a slice"}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func sameValue(kind StorageKind, a, b any) bool {
	if kind.IsRelation() {
		return a == b
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func sortValues(values []*Value) {
	sort.SliceStable(values, func(i, j int) bool {
		if values[i].attributeCode != values[j].attributeCode {
			return values[i].attributeCode < values[j].attributeCode
		}
		pi, iok := values[i].Position()
		pj, jok := values[j].Position()
		if iok != jok {
			return iok
		}
		return pi < pj
	})
}
