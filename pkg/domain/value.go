package domain

import (
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cast"
)

// ErrMissingOwner is returned when a value is created without an owning entity.
var ErrMissingOwner = errors.New("domain: value requires an owner")

// Value is the uniform storage unit for one (entity, attribute, context)
// triple. At most one typed slot, or the relation slot, is populated; which
// one follows from the attribute's storage kind. Values are single-writer.
type Value struct {
	id            string
	owner         *Data
	attribute     *Attribute
	attributeCode string
	familyCode    string
	position      *int

	boolValue     *bool
	integerValue  *int64
	decimalValue  *float64
	dateValue     *time.Time
	datetimeValue *time.Time
	stringValue   *string
	textValue     *string
	relation      *Data

	context ContextRecord
}

// NewValue creates an empty value for attr owned by owner. A nil context
// record selects NoContext.
func NewValue(owner *Data, attr *Attribute, ctx ContextRecord) (*Value, error) {
	if attr == nil {
		return nil, &ConfigurationError{Reason: "value requires an attribute", Err: ErrMissingFamily}
	}
	if attr.family == nil {
		return nil, &ConfigurationError{Attribute: attr.code, Reason: "attribute has no family", Err: ErrMissingFamily}
	}
	if owner == nil {
		return nil, errors.Wrapf(ErrMissingOwner, "attribute %q", attr.code)
	}
	if ctx == nil {
		ctx = NoContext{}
	}
	return &Value{
		owner:         owner,
		attribute:     attr,
		attributeCode: attr.code,
		familyCode:    owner.family.code,
		context:       ctx,
	}, nil
}

// ID returns the surrogate identity, empty until first persisted.
func (v *Value) ID() string { return v.id }

// Owner returns the entity the value belongs to.
func (v *Value) Owner() *Data { return v.owner }

// Attribute returns the attribute definition the value is stored for.
func (v *Value) Attribute() *Attribute { return v.attribute }

// AttributeCode returns the denormalized attribute code.
func (v *Value) AttributeCode() string { return v.attributeCode }

// FamilyCode returns the denormalized family code of the owner.
func (v *Value) FamilyCode() string { return v.familyCode }

// Kind returns the storage kind of the value's attribute.
func (v *Value) Kind() StorageKind { return v.attribute.Kind() }

// Position returns the ordering key of a collection element.
func (v *Value) Position() (int, bool) {
	if v.position == nil {
		return 0, false
	}
	return *v.position, true
}

// SetPosition sets the ordering key.
func (v *Value) SetPosition(pos int) { v.position = &pos }

// ClearPosition removes the ordering key.
func (v *Value) ClearPosition() { v.position = nil }

// BoolValue returns the boolean slot.
func (v *Value) BoolValue() (bool, bool) { return deref(v.boolValue) }

// IntegerValue returns the integer slot.
func (v *Value) IntegerValue() (int64, bool) { return deref(v.integerValue) }

// DecimalValue returns the decimal slot.
func (v *Value) DecimalValue() (float64, bool) { return deref(v.decimalValue) }

// StringValue returns the short string slot.
func (v *Value) StringValue() (string, bool) { return deref(v.stringValue) }

// TextValue returns the long text slot.
func (v *Value) TextValue() (string, bool) { return deref(v.textValue) }

// DateValue returns the date slot (midnight UTC).
func (v *Value) DateValue() (time.Time, bool) { return deref(v.dateValue) }

// DateTimeValue returns the datetime slot (UTC).
func (v *Value) DateTimeValue() (time.Time, bool) { return deref(v.datetimeValue) }

// Relation returns the related entity, nil when unset.
func (v *Value) Relation() *Data { return v.relation }

// SetBoolValue clears the slot on nil, otherwise stores the boolean cast of input.
func (v *Value) SetBoolValue(input any) error {
	if input == nil {
		v.boolValue = nil
		return nil
	}
	if err := v.guard(KindBool, input); err != nil {
		return err
	}
	b, err := cast.ToBoolE(input)
	if err != nil {
		return v.invalid(input, err)
	}
	v.boolValue = &b
	return nil
}

// SetIntegerValue clears the slot on nil, otherwise stores the integer cast of input.
func (v *Value) SetIntegerValue(input any) error {
	if input == nil {
		v.integerValue = nil
		return nil
	}
	if err := v.guard(KindInteger, input); err != nil {
		return err
	}
	n, err := parseInteger(input)
	if err != nil {
		return v.invalid(input, err)
	}
	v.integerValue = &n
	return nil
}

// SetDecimalValue clears the slot on nil, otherwise stores the float cast of input.
func (v *Value) SetDecimalValue(input any) error {
	if input == nil {
		v.decimalValue = nil
		return nil
	}
	if err := v.guard(KindDecimal, input); err != nil {
		return err
	}
	f, err := cast.ToFloat64E(input)
	if err != nil {
		return v.invalid(input, err)
	}
	v.decimalValue = &f
	return nil
}

// SetStringValue clears the slot on nil, otherwise stores the string cast of input.
func (v *Value) SetStringValue(input any) error {
	if input == nil {
		v.stringValue = nil
		return nil
	}
	if err := v.guard(KindString, input); err != nil {
		return err
	}
	s, err := cast.ToStringE(input)
	if err != nil {
		return v.invalid(input, err)
	}
	v.stringValue = &s
	return nil
}

// SetTextValue clears the slot on nil, otherwise stores the string cast of input.
func (v *Value) SetTextValue(input any) error {
	if input == nil {
		v.textValue = nil
		return nil
	}
	if err := v.guard(KindText, input); err != nil {
		return err
	}
	s, err := cast.ToStringE(input)
	if err != nil {
		return v.invalid(input, err)
	}
	v.textValue = &s
	return nil
}

// SetDateValue accepts a time, a Unix timestamp or a parseable string and
// keeps only the calendar date.
func (v *Value) SetDateValue(input any) error {
	if input == nil {
		v.dateValue = nil
		return nil
	}
	if err := v.guard(KindDate, input); err != nil {
		return err
	}
	t, err := parseTemporal(input)
	if err != nil {
		return &InvalidTemporalValueError{Attribute: v.attributeCode, Kind: KindDate, Input: input, Err: err}
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	v.dateValue = &d
	return nil
}

// SetDateTimeValue accepts a time, a Unix timestamp or a parseable string.
func (v *Value) SetDateTimeValue(input any) error {
	if input == nil {
		v.datetimeValue = nil
		return nil
	}
	if err := v.guard(KindDateTime, input); err != nil {
		return err
	}
	t, err := parseTemporal(input)
	if err != nil {
		return &InvalidTemporalValueError{Attribute: v.attributeCode, Kind: KindDateTime, Input: input, Err: err}
	}
	t = t.UTC()
	v.datetimeValue = &t
	return nil
}

// SetRelation stores a reference to another entity; nil clears it.
func (v *Value) SetRelation(target *Data) error {
	if target == nil {
		v.relation = nil
		return nil
	}
	if !v.Kind().IsRelation() {
		return &InvalidValueError{Attribute: v.attributeCode, Kind: v.Kind(), Input: target.family.code, Reason: "attribute does not store relations"}
	}
	v.relation = target
	return nil
}

// Get returns the populated slot as a plain Go value, nil when empty.
func (v *Value) Get() any {
	switch v.Kind() {
	case KindBool:
		return derefAny(v.boolValue)
	case KindInteger:
		return derefAny(v.integerValue)
	case KindDecimal:
		return derefAny(v.decimalValue)
	case KindString:
		return derefAny(v.stringValue)
	case KindText:
		return derefAny(v.textValue)
	case KindDate:
		return derefAny(v.dateValue)
	case KindDateTime:
		return derefAny(v.datetimeValue)
	case KindEmbeddedRelation, KindForeignRelation:
		if v.relation == nil {
			return nil
		}
		return v.relation
	default:
		return nil
	}
}

// Set routes input to the slot selected by the attribute's storage kind.
func (v *Value) Set(input any) error {
	switch v.Kind() {
	case KindBool:
		return v.SetBoolValue(input)
	case KindInteger:
		return v.SetIntegerValue(input)
	case KindDecimal:
		return v.SetDecimalValue(input)
	case KindString:
		return v.SetStringValue(input)
	case KindText:
		return v.SetTextValue(input)
	case KindDate:
		return v.SetDateValue(input)
	case KindDateTime:
		return v.SetDateTimeValue(input)
	case KindEmbeddedRelation, KindForeignRelation:
		if input == nil {
			return v.SetRelation(nil)
		}
		target, ok := input.(*Data)
		if !ok {
			return &InvalidValueError{Attribute: v.attributeCode, Kind: v.Kind(), Input: input, Reason: "relations accept *Data only"}
		}
		return v.SetRelation(target)
	default:
		if input == nil {
			return nil
		}
		return &InvalidValueError{Attribute: v.attributeCode, Kind: v.Kind(), Input: input, Reason: "attribute has no value slot"}
	}
}

// IsEmpty reports whether no slot is populated.
func (v *Value) IsEmpty() bool { return len(v.populatedSlots()) == 0 }

// ContextKeys lists the context keys declared by the value's context variant.
func (v *Value) ContextKeys() []string { return v.context.Keys() }

// Context returns every declared key with its value; unset keys map to nil.
func (v *Value) Context() map[string]any {
	keys := v.context.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = v.context.Get(k)
	}
	return out
}

// ContextRecord exposes the variant for typed access (e.g. *ScopedContext).
func (v *Value) ContextRecord() ContextRecord { return v.context }

// ContextValue reads one context key.
func (v *Value) ContextValue(key string) (any, error) {
	if err := v.checkContextKey(key); err != nil {
		return nil, err
	}
	return v.context.Get(key), nil
}

// SetContextValue writes one context key; an undeclared key fails before any mutation.
func (v *Value) SetContextValue(key string, value any) error {
	if err := v.checkContextKey(key); err != nil {
		return err
	}
	if err := v.context.Set(key, value); err != nil {
		return &InvalidValueError{Attribute: v.attributeCode, Kind: v.Kind(), Input: value, Reason: "context " + key, Err: err}
	}
	return nil
}

// SetContext clears every context key, then writes the provided ones in key
// order. Keys written before a failing key stay written.
func (v *Value) SetContext(values map[string]any) error {
	v.context.Clear()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := v.SetContextValue(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// ClearContext unsets every context key.
func (v *Value) ClearContext() { v.context.Clear() }

// MatchesContext reports whether the value's populated context equals the
// populated entries of other.
func (v *Value) MatchesContext(other ContextRecord) bool {
	return reflect.DeepEqual(contextSnapshot(v.context), contextSnapshot(other))
}

// Clone copies the value without its identity. Embedded relations are deep
// copied, foreign relations keep pointing at the same entity.
func (v *Value) Clone() *Value {
	return v.cloneWith(make(map[*Data]*Data))
}

func (v *Value) cloneWith(seen map[*Data]*Data) *Value {
	cp := *v
	cp.id = ""
	cp.position = clonePtr(v.position)
	cp.boolValue = clonePtr(v.boolValue)
	cp.integerValue = clonePtr(v.integerValue)
	cp.decimalValue = clonePtr(v.decimalValue)
	cp.dateValue = clonePtr(v.dateValue)
	cp.datetimeValue = clonePtr(v.datetimeValue)
	cp.stringValue = clonePtr(v.stringValue)
	cp.textValue = clonePtr(v.textValue)
	cp.context = v.context.Clone()
	if v.relation != nil && v.Kind() == KindEmbeddedRelation {
		cp.relation = v.relation.cloneWith(seen)
	}
	return &cp
}

func (v *Value) checkContextKey(key string) error {
	keys := v.context.Keys()
	if slices.Contains(keys, key) {
		return nil
	}
	return &ContextKeyError{Key: key, Allowed: keys}
}

func (v *Value) guard(slot StorageKind, input any) error {
	if v.Kind() == slot {
		return nil
	}
	return &InvalidValueError{Attribute: v.attributeCode, Kind: v.Kind(), Input: input, Reason: "slot " + string(slot) + " is not active for this attribute"}
}

func (v *Value) invalid(input any, err error) error {
	return &InvalidValueError{Attribute: v.attributeCode, Kind: v.Kind(), Input: input, Err: err}
}

func (v *Value) populatedSlots() []StorageKind {
	var out []StorageKind
	if v.boolValue != nil {
		out = append(out, KindBool)
	}
	if v.integerValue != nil {
		out = append(out, KindInteger)
	}
	if v.decimalValue != nil {
		out = append(out, KindDecimal)
	}
	if v.stringValue != nil {
		out = append(out, KindString)
	}
	if v.textValue != nil {
		out = append(out, KindText)
	}
	if v.dateValue != nil {
		out = append(out, KindDate)
	}
	if v.datetimeValue != nil {
		out = append(out, KindDateTime)
	}
	if v.relation != nil {
		out = append(out, v.Kind())
	}
	return out
}

// parseTemporal accepts time values, Unix timestamps (integer, float or
// numeric string) and the textual layouts understood by spf13/cast.
func parseTemporal(input any) (time.Time, error) {
	switch t := input.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, errors.New("nil time")
		}
		return *t, nil
	case float64:
		return fromUnixFloat(t)
	case float32:
		return fromUnixFloat(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, errors.New("empty string")
		}
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
		parsed, err := cast.ToTimeE(s)
		if err != nil {
			return time.Time{}, err
		}
		return parsed, nil
	}
	parsed, err := cast.ToTimeE(input)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

// parseInteger reads strings as base 10, truncating a fractional part, so
// "010" is 10 rather than an octal literal. Other inputs go through cast.
func parseInteger(input any) (int64, error) {
	var s string
	switch t := input.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return cast.ToInt64E(input)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if strings.ContainsAny(s, "xXoObB_") {
		return 0, errors.Newf("%q is not a base 10 number", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse integer %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errors.Newf("%q is out of the integer range", s)
	}
	return int64(f), nil
}

func fromUnixFloat(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, errors.Newf("timestamp %v is not finite", f)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

func derefAny[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
