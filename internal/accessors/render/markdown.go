package render

import (
	"fmt"
	"strings"

	"eavcore/internal/accessors"
)

type markdownRenderer struct{}

func (markdownRenderer) Format() string    { return FormatMarkdown }
func (markdownRenderer) Extension() string { return "md" }

func (markdownRenderer) Render(unit accessors.Unit) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", unit.FamilyCode)
	if unit.ExtendsFamily {
		fmt.Fprintf(&b, "Extends family `%s` (data type `%s`).\n\n", unit.Extends, unit.DataType)
	} else {
		fmt.Fprintf(&b, "Backed by data type `%s`.\n\n", unit.Extends)
	}
	if len(unit.Declarations) == 0 {
		b.WriteString("_No accessors declared on this family._\n")
		return []byte(b.String()), nil
	}
	b.WriteString("| Accessor | Kind | Attribute | Type | Returns |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, d := range unit.Declarations {
		fmt.Fprintf(&b, "| `%s(%s)` | %s | `%s` | `%s` | `%s` |\n",
			d.Name, params(d), d.Kind, d.AttributeCode, escapePipes(d.TypeString()), escapePipes(d.ReturnType))
	}
	return []byte(b.String()), nil
}

func params(d accessors.Declaration) string {
	var p []string
	if d.Kind != accessors.KindGet {
		p = append(p, "value")
	}
	if d.HasContext {
		p = append(p, "context")
	}
	return strings.Join(p, ", ")
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
