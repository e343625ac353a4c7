// Package introspect answers whether a Go data type already implements an
// accessor. It backs accessors.MethodChecker with go/packages type information.
package introspect

import (
	"context"
	"go/types"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/go/packages"
)

// Oracle is an immutable index of method names per data type. Method names
// compare case-insensitively, so "getTitle" matches a Go method GetTitle.
type Oracle struct {
	methods map[string]map[string]struct{}
}

// Static builds an oracle from a literal table; keys are data type names.
func Static(table map[string][]string) *Oracle {
	o := &Oracle{methods: make(map[string]map[string]struct{}, len(table))}
	for typ, methods := range table {
		for _, m := range methods {
			o.add(typ, m)
		}
	}
	return o
}

// Load type-checks the packages matching patterns (relative to dir) and
// indexes the pointer method set of every named type they declare. Types are
// registered under both their bare name and their package-qualified name.
func Load(ctx context.Context, dir string, patterns ...string) (*Oracle, error) {
	if len(patterns) == 0 {
		return Static(nil), nil
	}
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    packages.NeedName | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "load packages")
	}
	var problems []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			problems = append(problems, e.Error())
		}
	})
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, errors.Newf("introspect %s: %s", strings.Join(patterns, " "), strings.Join(problems, "; "))
	}

	o := Static(nil)
	for _, p := range pkgs {
		if p.Types == nil {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || tn.IsAlias() {
				continue
			}
			named, ok := tn.Type().(*types.Named)
			if !ok {
				continue
			}
			set := types.NewMethodSet(types.NewPointer(named))
			qualified := p.PkgPath + "." + name
			o.ensure(name)
			o.ensure(qualified)
			for i := 0; i < set.Len(); i++ {
				method := set.At(i).Obj().Name()
				o.add(name, method)
				o.add(qualified, method)
			}
		}
	}
	return o, nil
}

// HasMethod implements accessors.MethodChecker. Unknown data types have no methods.
func (o *Oracle) HasMethod(dataType, method string) bool {
	set, ok := o.methods[dataType]
	if !ok {
		return false
	}
	_, ok = set[strings.ToLower(method)]
	return ok
}

// Types lists the indexed data type names.
func (o *Oracle) Types() []string {
	out := make([]string, 0, len(o.methods))
	for t := range o.methods {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (o *Oracle) ensure(typ string) {
	if _, ok := o.methods[typ]; !ok {
		o.methods[typ] = make(map[string]struct{})
	}
}

func (o *Oracle) add(typ, method string) {
	o.ensure(typ)
	o.methods[typ][strings.ToLower(method)] = struct{}{}
}
