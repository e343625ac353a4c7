// Package render turns accessor units into files. Every renderer is
// deterministic: the same unit always yields the same bytes.
package render

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"eavcore/internal/accessors"
)

// Supported formats.
const (
	FormatGo       = "go"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// DefaultPackage is the Go package name used when none is configured.
const DefaultPackage = "eavaccessors"

// Renderer formats one unit.
type Renderer interface {
	Format() string
	Extension() string
	Render(unit accessors.Unit) ([]byte, error)
}

// Options tune renderers; unused fields are ignored by formats that do not need them.
type Options struct {
	Package string
}

type factory func(Options) Renderer

var factories = map[string]factory{
	FormatGo:       func(o Options) Renderer { return goRenderer{pkg: o.Package} },
	FormatMarkdown: func(Options) Renderer { return markdownRenderer{} },
	FormatJSON:     func(Options) Renderer { return jsonRenderer{} },
	FormatYAML:     func(Options) Renderer { return yamlRenderer{} },
}

// New returns the renderer for format. Matching is case-insensitive and "md"
// and "yml" are accepted as aliases.
func New(format string, opts Options) (Renderer, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	switch name {
	case "md":
		name = FormatMarkdown
	case "yml":
		name = FormatYAML
	case "":
		name = FormatGo
	}
	f, ok := factories[name]
	if !ok {
		return nil, errors.Newf("render: unknown format %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	if strings.TrimSpace(opts.Package) == "" {
		opts.Package = DefaultPackage
	}
	return f(opts), nil
}

// Formats lists supported format names.
func Formats() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
