// Package registry loads family registries from json, yaml or toml documents.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"eavcore/internal/catalog"
	"eavcore/pkg/domain"
)

// Document is the on-disk registry description. Families keep document order,
// which becomes the registry's stable iteration order.
type Document struct {
	Context        ContextSpec            `json:"context" yaml:"context" toml:"context"`
	AttributeTypes []domain.AttributeType `json:"attribute_types" yaml:"attribute_types" toml:"attribute_types"`
	Associations   []AssociationSpec      `json:"associations" yaml:"associations" toml:"associations"`
	Families       []FamilySpec           `json:"families" yaml:"families" toml:"families"`
	// Attributes declared outside a family block; Family names the owner.
	Attributes []AttributeSpec `json:"attributes" yaml:"attributes" toml:"attributes"`
}

// ContextSpec selects the context variant values are created with.
type ContextSpec struct {
	Variant string   `json:"variant" yaml:"variant" toml:"variant"`
	Keys    []string `json:"keys" yaml:"keys" toml:"keys"`
}

// AssociationSpec maps a relation column of a value type onto its target.
type AssociationSpec struct {
	ValueType    string `json:"value_type" yaml:"value_type" toml:"value_type"`
	DatabaseType string `json:"database_type" yaml:"database_type" toml:"database_type"`
	Target       string `json:"target" yaml:"target" toml:"target"`
}

// FamilySpec is one family block.
type FamilySpec struct {
	Code       string          `json:"code" yaml:"code" toml:"code"`
	Parent     string          `json:"parent" yaml:"parent" toml:"parent"`
	DataType   string          `json:"data_type" yaml:"data_type" toml:"data_type"`
	ValueType  string          `json:"value_type" yaml:"value_type" toml:"value_type"`
	Attributes []AttributeSpec `json:"attributes" yaml:"attributes" toml:"attributes"`
}

// AttributeSpec is one attribute entry.
type AttributeSpec struct {
	Code       string         `json:"code" yaml:"code" toml:"code"`
	Family     string         `json:"family,omitempty" yaml:"family,omitempty" toml:"family"`
	Type       string         `json:"type" yaml:"type" toml:"type"`
	Collection bool           `json:"collection" yaml:"collection" toml:"collection"`
	Options    map[string]any `json:"options" yaml:"options" toml:"options"`
}

// Validate reports every structural problem at once, sorted. Semantic checks
// (parents, cycles, types, representations) happen in Build.
func (d *Document) Validate() error {
	var errs []string
	if len(d.Families) == 0 {
		errs = append(errs, "families section must not be empty")
	}
	for i, f := range d.Families {
		if strings.TrimSpace(f.Code) == "" {
			errs = append(errs, fmt.Sprintf("families[%d] must declare a code", i))
			continue
		}
		for j, a := range f.Attributes {
			errs = append(errs, attributeProblems(fmt.Sprintf("family %q attributes[%d]", f.Code, j), a)...)
			if a.Family != "" && a.Family != f.Code {
				errs = append(errs, fmt.Sprintf("family %q attributes[%d] names family %q", f.Code, j, a.Family))
			}
		}
	}
	for i, a := range d.Attributes {
		label := fmt.Sprintf("attributes[%d]", i)
		errs = append(errs, attributeProblems(label, a)...)
		if strings.TrimSpace(a.Family) == "" {
			errs = append(errs, label+" must name its family")
		}
	}
	for i, t := range d.AttributeTypes {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Sprintf("attribute_types[%d] must declare a name", i))
		}
	}
	for i, a := range d.Associations {
		if a.ValueType == "" || a.DatabaseType == "" || a.Target == "" {
			errs = append(errs, fmt.Sprintf("associations[%d] requires value_type, database_type and target", i))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return errors.Newf("registry document invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func attributeProblems(label string, a AttributeSpec) []string {
	var errs []string
	if strings.TrimSpace(a.Code) == "" {
		errs = append(errs, label+" must declare a code")
	}
	if strings.TrimSpace(a.Type) == "" {
		errs = append(errs, label+" must declare a type")
	}
	return errs
}

// Build validates the document and turns it into a registry.
func (d *Document) Build() (*domain.Registry, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	b := domain.NewRegistryBuilder(nil)
	for _, t := range d.AttributeTypes {
		b.RegisterType(t)
	}
	b.WithContext(domain.ContextVariant(strings.ToLower(strings.TrimSpace(d.Context.Variant))), d.Context.Keys...)
	for _, f := range d.Families {
		spec := domain.FamilySpec{
			Code:      f.Code,
			Parent:    f.Parent,
			DataType:  f.DataType,
			ValueType: f.ValueType,
		}
		for _, a := range f.Attributes {
			spec.Attributes = append(spec.Attributes, a.domainSpec())
		}
		b.AddFamily(spec)
	}
	for _, a := range d.Attributes {
		b.AddAttribute(a.Family, a.domainSpec())
	}
	return b.Build()
}

// AssociationTable returns the association section as a catalog mapper.
func (d *Document) AssociationTable() catalog.StaticAssociations {
	table := catalog.StaticAssociations{}
	for _, a := range d.Associations {
		table.Add(a.ValueType, a.DatabaseType, a.Target)
	}
	return table
}

func (a AttributeSpec) domainSpec() domain.AttributeSpec {
	return domain.AttributeSpec{
		Code:       a.Code,
		Type:       a.Type,
		Collection: a.Collection,
		Options:    a.Options,
	}
}
