package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinels wrapped by ConfigurationError so callers can branch with errors.Is.
var (
	ErrMissingFamily      = errors.New("domain: attribute has no family")
	ErrInheritanceCycle   = errors.New("domain: family inheritance cycle")
	ErrNoRepresentation   = errors.New("domain: no underlying representation")
	ErrUnknownParent      = errors.New("domain: unknown parent family")
	ErrDuplicateFamily    = errors.New("domain: duplicate family code")
	ErrDuplicateAttribute = errors.New("domain: duplicate attribute code")
)

// ErrNotFound is returned by value stores when an entity id is unknown.
var ErrNotFound = errors.New("domain: not found")

// ErrUnsavedRelation is returned when a foreign relation points at an entity
// that has never been persisted.
var ErrUnsavedRelation = errors.New("domain: foreign relation target has no id")

// ConfigurationError reports a malformed family graph. It is raised while a
// registry is built and aborts the whole build.
type ConfigurationError struct {
	Family    string
	Attribute string
	Reason    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Family != "" {
		fmt.Fprintf(&b, ": family %q", e.Family)
	}
	if e.Attribute != "" {
		fmt.Fprintf(&b, ": attribute %q", e.Attribute)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ContextKeyError reports access to a context key the value variant does not declare.
type ContextKeyError struct {
	Key     string
	Allowed []string
}

func (e *ContextKeyError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("trying to access non-allowed context key %q (no context keys declared)", e.Key)
	}
	return fmt.Sprintf("trying to access non-allowed context key %q (allowed: %s)", e.Key, strings.Join(e.Allowed, ", "))
}

// InvalidTemporalValueError reports input a date or datetime slot cannot parse.
type InvalidTemporalValueError struct {
	Attribute string
	Kind      StorageKind
	Input     any
	Err       error
}

func (e *InvalidTemporalValueError) Error() string {
	return fmt.Sprintf("attribute %q: invalid %s value %v: %v", e.Attribute, e.Kind, e.Input, e.Err)
}

func (e *InvalidTemporalValueError) Unwrap() error { return e.Err }

// InvalidValueError reports a scalar that cannot be coerced into its slot or a
// write into a slot the attribute does not own.
type InvalidValueError struct {
	Attribute string
	Kind      StorageKind
	Input     any
	Reason    string
	Err       error
}

func (e *InvalidValueError) Error() string {
	msg := fmt.Sprintf("attribute %q (%s): invalid value %v", e.Attribute, e.Kind, e.Input)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// UnknownAttributeError reports a lookup of a code outside a family's effective set.
type UnknownAttributeError struct {
	Family    string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("family %q has no attribute %q", e.Family, e.Attribute)
}
