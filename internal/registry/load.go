package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"eavcore/internal/catalog"
	"eavcore/pkg/domain"
)

// Format names a document encoding.
type Format string

// Supported document formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.Newf("registry: cannot infer format of %q (want .json, .yaml, .yml or .toml)", path)
	}
}

// Decode parses raw in the given format.
func Decode(raw []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "parse registry json")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "parse registry yaml")
		}
	case FormatTOML:
		md, err := toml.Decode(string(raw), &doc)
		if err != nil {
			return nil, errors.Wrap(err, "parse registry toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 && !onlyOptions(undecoded) {
			return nil, errors.Newf("parse registry toml: unknown keys %v", undecoded)
		}
	default:
		return nil, errors.Newf("registry: unsupported format %q", format)
	}
	return &doc, nil
}

// onlyOptions reports whether every undecoded key sits below an options table,
// whose free-form content BurntSushi/toml may report as undecoded.
func onlyOptions(keys []toml.Key) bool {
	for _, k := range keys {
		if !strings.Contains(k.String(), ".options") {
			return false
		}
	}
	return true
}

// LoadDocument reads and decodes a registry file.
func LoadDocument(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // the registry path is operator-provided configuration.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read registry")
	}
	return Decode(raw, format)
}

// Loaded bundles a built registry with its association table.
type Loaded struct {
	Registry     *domain.Registry
	Associations catalog.StaticAssociations
	Document     *Document
}

// Load reads, validates and builds the registry at path.
func Load(path string) (*Loaded, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	reg, err := doc.Build()
	if err != nil {
		return nil, err
	}
	return &Loaded{Registry: reg, Associations: doc.AssociationTable(), Document: doc}, nil
}
