package main

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eavcore/internal/core"
	"eavcore/pkg/domain"
)

func (a *app) storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the value store",
	}
	pf := cmd.PersistentFlags()
	pf.String("storage", "", "storage driver (memory, sqlite, postgres)")
	pf.String("sqlite-path", "", "sqlite database file")
	pf.String("postgres-dsn", "", "postgres connection string")
	cmd.AddCommand(a.storeInitCmd(), a.storeShowCmd())
	return cmd
}

func (a *app) storeInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Open the configured store and apply its schema",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := core.OpenValueStore(cmd.Context(), a.storeConfig())
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return errors.Wrap(err, "close store")
			}
			_, err = fmt.Fprintf(a.stdout, "store ready (driver %s)\n", a.cfg.Storage.Driver)
			return err
		},
	}
}

type valueView struct {
	Attribute string         `yaml:"attribute"`
	Position  *int           `yaml:"position,omitempty"`
	Context   map[string]any `yaml:"context,omitempty"`
	Value     any            `yaml:"value"`
}

type dataView struct {
	ID     string      `yaml:"id"`
	Family string      `yaml:"family"`
	Values []valueView `yaml:"values"`
}

type relationView struct {
	ID     string `yaml:"id"`
	Family string `yaml:"family"`
}

func viewOf(d *domain.Data) dataView {
	out := dataView{ID: d.ID(), Family: d.Family().Code(), Values: []valueView{}}
	for _, v := range d.Values() {
		vv := valueView{Attribute: v.AttributeCode()}
		for k, cv := range v.Context() {
			if cv == nil {
				continue
			}
			if vv.Context == nil {
				vv.Context = make(map[string]any)
			}
			vv.Context[k] = cv
		}
		if pos, ok := v.Position(); ok {
			vv.Position = &pos
		}
		switch val := v.Get().(type) {
		case *domain.Data:
			vv.Value = relationView{ID: val.ID(), Family: val.Family().Code()}
		case time.Time:
			if v.Kind() == domain.KindDate {
				vv.Value = val.Format(time.DateOnly)
			} else {
				vv.Value = val.Format(time.RFC3339Nano)
			}
		default:
			vv.Value = val
		}
		out.Values = append(out.Values, vv)
	}
	return out
}

func (a *app) storeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Load an entity with its values and print it as YAML",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			loaded, err := a.loadRegistry()
			if err != nil {
				return err
			}
			store, err := core.OpenValueStore(cmd.Context(), a.storeConfig())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); cerr != nil && err == nil {
					err = errors.Wrap(cerr, "close store")
				}
			}()
			data, err := store.LoadData(cmd.Context(), loaded.Registry, args[0])
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return errors.WithHint(err, "check the id and the storage settings")
				}
				return err
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(viewOf(data)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
