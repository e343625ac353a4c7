package domain

import (
	"maps"
	"slices"

	"github.com/spf13/cast"
)

// ContextKey names a context dimension such as a locale or a channel.
type ContextKey string

// Context keys understood by ScopedContext.
const (
	ContextLocale  ContextKey = "locale"
	ContextChannel ContextKey = "channel"
)

// ContextRecord is the context sub-record of a value. The key set is fixed by
// the concrete variant and does not depend on the attribute. Callers go through
// Value, which rejects undeclared keys before any mutation reaches the record.
type ContextRecord interface {
	// Keys lists the declared context keys in sorted order.
	Keys() []string
	// Get returns the stored value for a declared key, nil when unset.
	Get(key string) any
	// Set stores a value for a declared key; nil clears it.
	Set(key string, value any) error
	// Clear unsets every key.
	Clear()
	// Clone returns an independent copy.
	Clone() ContextRecord
}

// NoContext is the base variant: it declares no keys.
type NoContext struct{}

func (NoContext) Keys() []string { return nil }
func (NoContext) Get(string) any { return nil }
func (NoContext) Set(string, any) error { return nil }
func (NoContext) Clear() {}
func (NoContext) Clone() ContextRecord { return NoContext{} }

// ScopedContext qualifies values by locale and channel with typed accessors.
type ScopedContext struct {
	locale  string
	channel string
}

// NewScopedContext returns an empty locale/channel context.
func NewScopedContext() *ScopedContext { return &ScopedContext{} }

// Locale returns the locale, empty when unset.
func (c *ScopedContext) Locale() string { return c.locale }

// SetLocale stores the locale.
func (c *ScopedContext) SetLocale(locale string) { c.locale = locale }

// Channel returns the channel, empty when unset.
func (c *ScopedContext) Channel() string { return c.channel }

// SetChannel stores the channel.
func (c *ScopedContext) SetChannel(channel string) { c.channel = channel }

func (c *ScopedContext) Keys() []string {
	return []string{string(ContextChannel), string(ContextLocale)}
}

func (c *ScopedContext) Get(key string) any {
	var v string
	switch ContextKey(key) {
	case ContextLocale:
		v = c.locale
	case ContextChannel:
		v = c.channel
	}
	if v == "" {
		return nil
	}
	return v
}

func (c *ScopedContext) Set(key string, value any) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	switch ContextKey(key) {
	case ContextLocale:
		c.locale = s
	case ContextChannel:
		c.channel = s
	}
	return nil
}

func (c *ScopedContext) Clear() {
	c.locale = ""
	c.channel = ""
}

func (c *ScopedContext) Clone() ContextRecord {
	cp := *c
	return &cp
}

// KeyedContext is a map-backed variant whose key set is declared up front.
// Values are kept in their string form so that a context survives a round
// trip through a store unchanged.
type KeyedContext struct {
	keys   []string
	values map[string]any
}

// NewKeyedContext declares the allowed keys of a map-backed context.
func NewKeyedContext(keys ...string) *KeyedContext {
	declared := slices.Clone(keys)
	slices.Sort(declared)
	return &KeyedContext{keys: slices.Compact(declared)}
}

func (c *KeyedContext) Keys() []string { return slices.Clone(c.keys) }

func (c *KeyedContext) Get(key string) any {
	if c.values == nil {
		return nil
	}
	return c.values[key]
}

func (c *KeyedContext) Set(key string, value any) error {
	if value == nil {
		delete(c.values, key)
		return nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	if c.values == nil {
		c.values = make(map[string]any, len(c.keys))
	}
	c.values[key] = s
	return nil
}

func (c *KeyedContext) Clear() { c.values = nil }

func (c *KeyedContext) Clone() ContextRecord {
	return &KeyedContext{keys: slices.Clone(c.keys), values: maps.Clone(c.values)}
}

// contextSnapshot returns the non-nil entries of a record.
func contextSnapshot(rec ContextRecord) map[string]any {
	out := make(map[string]any)
	for _, k := range rec.Keys() {
		if v := rec.Get(k); v != nil {
			out[k] = v
		}
	}
	return out
}
