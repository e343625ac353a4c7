package render

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"eavcore/internal/accessors"
)

type jsonRenderer struct{}

func (jsonRenderer) Format() string    { return FormatJSON }
func (jsonRenderer) Extension() string { return "json" }

func (jsonRenderer) Render(unit accessors.Unit) ([]byte, error) {
	data, err := json.MarshalIndent(unit, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s as json", unit.FamilyCode)
	}
	return append(data, '\n'), nil
}

type yamlRenderer struct{}

func (yamlRenderer) Format() string    { return FormatYAML }
func (yamlRenderer) Extension() string { return "yaml" }

func (yamlRenderer) Render(unit accessors.Unit) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(unit); err != nil {
		return nil, errors.Wrapf(err, "encode %s as yaml", unit.FamilyCode)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrapf(err, "encode %s as yaml", unit.FamilyCode)
	}
	return buf.Bytes(), nil
}
