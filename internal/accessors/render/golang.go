package render

import (
	"fmt"
	"go/format"
	"strings"

	"github.com/cockroachdb/errors"

	"eavcore/internal/accessors"
	"eavcore/internal/catalog"
)

type goRenderer struct {
	pkg string
}

func (goRenderer) Format() string    { return FormatGo }
func (goRenderer) Extension() string { return "go" }

// Render emits one interface per family. Parents are named in the doc comment
// rather than embedded: a redeclared attribute changes the setter's return
// type, which an embedded parent would turn into a duplicate method.
func (r goRenderer) Render(unit accessors.Unit) ([]byte, error) {
	var b strings.Builder
	b.WriteString("// Code generated by eavcore warmup. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", r.pkg)
	if usesTime(unit) {
		b.WriteString("import \"time\"\n\n")
	}

	name := toCamel(unit.FamilyCode)
	if unit.ExtendsFamily {
		fmt.Fprintf(&b, "// %s extends %s; inherited accessors are declared there.\n", name, toCamel(unit.Extends))
	} else {
		fmt.Fprintf(&b, "// %s is backed by %s.\n", name, unit.Extends)
	}
	fmt.Fprintf(&b, "type %s interface {\n", name)
	methods := make(map[string]string, len(unit.Declarations))
	for i, d := range unit.Declarations {
		method := toCamel(d.Name)
		if prev, dup := methods[method]; dup {
			return nil, errors.Newf("render %s: accessors %s and %s both map to Go method %s", unit.FamilyCode, prev, d.Name, method)
		}
		methods[method] = d.Name
		if i > 0 {
			b.WriteString("\n")
		}
		writeMethod(&b, name, d)
	}
	b.WriteString("}\n")

	formatted, err := format.Source([]byte(b.String()))
	if err != nil {
		return nil, errors.Wrapf(err, "format generated code for %s", unit.FamilyCode)
	}
	return formatted, nil
}

func writeMethod(b *strings.Builder, family string, d accessors.Declaration) {
	method := toCamel(d.Name)
	goType := goTypeFor(d.Type)
	switch d.Kind {
	case accessors.KindGet:
		fmt.Fprintf(b, "\t// %s returns %s (%s).\n", method, d.AttributeCode, d.TypeString())
		fmt.Fprintf(b, "\t%s(context map[string]any) %s\n", method, goType)
	default:
		fmt.Fprintf(b, "\t// %s %s %s (%s).\n", method, verb(d.Kind), d.AttributeCode, d.TypeString())
		fmt.Fprintf(b, "\t%s(value %s, context map[string]any) %s\n", method, goType, family)
	}
}

func verb(kind accessors.Kind) string {
	switch kind {
	case accessors.KindAdd:
		return "appends to"
	case accessors.KindRemove:
		return "removes from"
	default:
		return "assigns"
	}
}

// goTypeFor maps documented types onto Go. Single family unions name the
// generated interface; association targets live outside the package and
// degrade to any.
func goTypeFor(t catalog.AccessorType) string {
	var elem string
	switch t.Shape {
	case catalog.ShapeArray:
		return "[]any"
	case catalog.ShapeScalar:
		elem = goScalar(t.Names[0])
	case catalog.ShapeTemporal:
		elem = "time.Time"
	case catalog.ShapeFamilies:
		if len(t.Names) == 1 {
			elem = toCamel(t.Names[0])
		} else {
			elem = "any"
		}
	default:
		elem = "any"
	}
	if t.Collection {
		return "[]" + elem
	}
	return elem
}

func goScalar(name string) string {
	switch name {
	case catalog.TypeInteger:
		return "int64"
	case catalog.TypeDouble:
		return "float64"
	case catalog.TypeBool:
		return "bool"
	default:
		return "string"
	}
}

func usesTime(unit accessors.Unit) bool {
	for _, d := range unit.Declarations {
		if d.Type.Shape == catalog.ShapeTemporal {
			return true
		}
	}
	return false
}

// toCamel keeps the first letter of each segment upper-cased and applies the
// usual Go initialisms.
func toCamel(input string) string {
	if input == "" {
		return ""
	}
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.' || r == '\\' || r == '/'
	})
	for i, p := range parts {
		parts[i] = applyInitialisms(accessors.UpperFirst(p))
	}
	return strings.Join(parts, "")
}

func applyInitialisms(part string) string {
	switch strings.ToLower(part) {
	case "id":
		return "ID"
	case "ids":
		return "IDs"
	case "url":
		return "URL"
	case "uuid":
		return "UUID"
	case "sku":
		return "SKU"
	default:
		return part
	}
}
