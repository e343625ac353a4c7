package domain

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// DataRow is the persisted form of an entity.
type DataRow struct {
	ID         string `json:"id" yaml:"id"`
	FamilyCode string `json:"family_code" yaml:"family_code"`
}

// ValueRow is the persisted form of a value record: one row per (owner,
// attribute, context) and, for collections, per element.
type ValueRow struct {
	ID            string         `json:"id" yaml:"id"`
	DataID        string         `json:"data_id" yaml:"data_id"`
	AttributeCode string         `json:"attribute_code" yaml:"attribute_code"`
	FamilyCode    string         `json:"family_code" yaml:"family_code"`
	Position      *int           `json:"position,omitempty" yaml:"position,omitempty"`
	Bool          *bool          `json:"bool_value,omitempty" yaml:"bool_value,omitempty"`
	Integer       *int64         `json:"integer_value,omitempty" yaml:"integer_value,omitempty"`
	Decimal       *float64       `json:"decimal_value,omitempty" yaml:"decimal_value,omitempty"`
	Date          *time.Time     `json:"date_value,omitempty" yaml:"date_value,omitempty"`
	DateTime      *time.Time     `json:"datetime_value,omitempty" yaml:"datetime_value,omitempty"`
	String        *string        `json:"string_value,omitempty" yaml:"string_value,omitempty"`
	Text          *string        `json:"text_value,omitempty" yaml:"text_value,omitempty"`
	RelationID    string         `json:"data_value_id,omitempty" yaml:"data_value_id,omitempty"`
	Embedded      bool           `json:"embedded,omitempty" yaml:"embedded,omitempty"`
	Context       map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
}

// Snapshot groups one entity row with its value rows.
type Snapshot struct {
	Data   DataRow
	Values []ValueRow
}

// ValueFilter narrows Values results; empty fields match everything.
type ValueFilter struct {
	DataID        string
	FamilyCode    string
	AttributeCode string
}

// Matches reports whether row passes the filter.
func (f ValueFilter) Matches(row ValueRow) bool {
	if f.DataID != "" && row.DataID != f.DataID {
		return false
	}
	if f.FamilyCode != "" && row.FamilyCode != f.FamilyCode {
		return false
	}
	if f.AttributeCode != "" && row.AttributeCode != f.AttributeCode {
		return false
	}
	return true
}

// ValueStore persists entities and their value records.
type ValueStore interface {
	// SaveData assigns missing ids and stores d together with its embedded
	// relation targets, replacing previously stored values.
	SaveData(ctx context.Context, d *Data) error
	// LoadData rebuilds an entity graph against reg.
	LoadData(ctx context.Context, reg *Registry, id string) (*Data, error)
	// DeleteData removes an entity, its values and its embedded targets.
	// Foreign references to it are cleared.
	DeleteData(ctx context.Context, id string) (bool, error)
	// Values lists stored rows ordered by data id, attribute code and position.
	Values(ctx context.Context, filter ValueFilter) ([]ValueRow, error)
	// Close releases the underlying resources.
	Close() error
}

// Flatten assigns ids through newID where missing and returns a snapshot for
// d followed by one for every embedded relation target reachable from it.
// Foreign targets must already carry an id.
func Flatten(d *Data, newID func() string) ([]Snapshot, error) {
	var out []Snapshot
	visited := make(map[*Data]struct{})
	var walk func(*Data) error
	walk = func(cur *Data) error {
		if _, seen := visited[cur]; seen {
			return nil
		}
		visited[cur] = struct{}{}
		if cur.id == "" {
			cur.id = newID()
		}
		snap := Snapshot{Data: DataRow{ID: cur.id, FamilyCode: cur.family.code}}
		var embedded []*Data
		for _, v := range cur.Values() {
			if v.IsEmpty() {
				continue
			}
			if v.id == "" {
				v.id = newID()
			}
			row := v.row(cur.id)
			if v.relation != nil {
				if v.Kind() == KindEmbeddedRelation {
					if v.relation.id == "" {
						v.relation.id = newID()
					}
					row.Embedded = true
					embedded = append(embedded, v.relation)
				} else if v.relation.id == "" {
					return errors.Wrapf(ErrUnsavedRelation, "family %q attribute %q", cur.family.code, v.attributeCode)
				}
				row.RelationID = v.relation.id
			}
			snap.Values = append(snap.Values, row)
		}
		out = append(out, snap)
		for _, target := range embedded {
			if err := walk(target); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(d); err != nil {
		return nil, err
	}
	return out, nil
}

// RowSource fetches the stored rows of one entity. It returns ErrNotFound
// (possibly wrapped) for unknown ids.
type RowSource func(ctx context.Context, id string) (DataRow, []ValueRow, error)

// Hydrate rebuilds the entity id and every entity it references. Entities
// reached more than once, including through cycles, are materialized once.
func Hydrate(ctx context.Context, reg *Registry, id string, fetch RowSource) (*Data, error) {
	loaded := make(map[string]*Data)
	var load func(string) (*Data, error)
	load = func(id string) (*Data, error) {
		if d, ok := loaded[id]; ok {
			return d, nil
		}
		dataRow, rows, err := fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		d, err := reg.NewData(dataRow.FamilyCode)
		if err != nil {
			return nil, err
		}
		d.id = dataRow.ID
		loaded[id] = d
		for _, row := range rows {
			v, err := restoreValue(reg, d, row)
			if err != nil {
				return nil, err
			}
			if row.RelationID != "" {
				target, err := load(row.RelationID)
				if err != nil {
					return nil, errors.Wrapf(err, "load relation %s.%s", d.family.code, row.AttributeCode)
				}
				v.relation = target
			}
			d.adopt(v)
		}
		return d, nil
	}
	return load(id)
}

func (v *Value) row(dataID string) ValueRow {
	return ValueRow{
		ID:            v.id,
		DataID:        dataID,
		AttributeCode: v.attributeCode,
		FamilyCode:    v.familyCode,
		Position:      clonePtr(v.position),
		Bool:          clonePtr(v.boolValue),
		Integer:       clonePtr(v.integerValue),
		Decimal:       clonePtr(v.decimalValue),
		Date:          clonePtr(v.dateValue),
		DateTime:      clonePtr(v.datetimeValue),
		String:        clonePtr(v.stringValue),
		Text:          clonePtr(v.textValue),
		Context:       contextSnapshot(v.context),
	}
}

func restoreValue(reg *Registry, d *Data, row ValueRow) (*Value, error) {
	attr, ok := d.family.EffectiveAttribute(row.AttributeCode)
	if !ok {
		return nil, &UnknownAttributeError{Family: d.family.code, Attribute: row.AttributeCode}
	}
	v, err := NewValue(d, attr, reg.NewContext())
	if err != nil {
		return nil, err
	}
	if err := v.SetContext(row.Context); err != nil {
		return nil, err
	}
	v.id = row.ID
	v.position = clonePtr(row.Position)
	v.boolValue = clonePtr(row.Bool)
	v.integerValue = clonePtr(row.Integer)
	v.decimalValue = clonePtr(row.Decimal)
	v.dateValue = clonePtr(row.Date)
	v.datetimeValue = clonePtr(row.DateTime)
	v.stringValue = clonePtr(row.String)
	v.textValue = clonePtr(row.Text)
	return v, nil
}
