package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eavcore/internal/accessors"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the registry and report configuration errors",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := a.loadRegistry()
			if err != nil {
				return err
			}
			families := loaded.Registry.Families()
			attrs := 0
			for _, f := range families {
				attrs += len(f.Attributes())
			}
			_, err = fmt.Fprintf(a.stdout, "registry %s is valid: %d families, %d attributes\n",
				a.cfg.Registry.Path, len(families), attrs)
			return err
		},
	}
}

type attributeView struct {
	Code       string `yaml:"code"`
	Type       string `yaml:"type"`
	Kind       string `yaml:"kind"`
	Collection bool   `yaml:"collection,omitempty"`
	DeclaredBy string `yaml:"declared_by"`
	Inherited  bool   `yaml:"inherited,omitempty"`
}

type familyView struct {
	Family       string                 `yaml:"family"`
	Parent       string                 `yaml:"parent,omitempty"`
	DataType     string                 `yaml:"data_type"`
	ValueType    string                 `yaml:"value_type"`
	Attributes   []attributeView        `yaml:"attributes"`
	Declarations []accessors.Declaration `yaml:"declarations"`
}

func (a *app) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <family>",
		Short: "Print a family's effective attributes and required accessors as YAML",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := a.loadRegistry()
			if err != nil {
				return err
			}
			family, ok := loaded.Registry.Family(args[0])
			if !ok {
				return usage(errors.WithHint(errors.Newf("unknown family %q", args[0]), "run validate to list the registry families"))
			}
			gen, err := a.generator(cmd.Context(), loaded)
			if err != nil {
				return err
			}
			view := familyView{
				Family:       family.Code(),
				DataType:     family.DataType(),
				ValueType:    family.ValueType(),
				Declarations: gen.Unit(family).Declarations,
			}
			if p := family.Parent(); p != nil {
				view.Parent = p.Code()
			}
			for _, attr := range family.EffectiveAttributes() {
				view.Attributes = append(view.Attributes, attributeView{
					Code:       attr.Code(),
					Type:       attr.Type().Name,
					Kind:       string(attr.Kind()),
					Collection: attr.Collection(),
					DeclaredBy: attr.Family().Code(),
					Inherited:  family.IsInherited(attr),
				})
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
