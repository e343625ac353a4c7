package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"eavcore/internal/accessors"
	"eavcore/internal/catalog"
	"eavcore/internal/config"
	"eavcore/internal/core"
	"eavcore/internal/introspect"
	"eavcore/internal/logger"
	"eavcore/internal/output"
	"eavcore/internal/registry"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"registry":         "registry.path",
	"format":           "render.format",
	"package":          "render.package",
	"output":           "output.driver",
	"out-dir":          "output.fs_root",
	"prefix":           "output.prefix",
	"storage":          "storage.driver",
	"sqlite-path":      "storage.sqlite_path",
	"postgres-dsn":     "storage.postgres_dsn",
	"log-level":        "log.level",
	"log-json":         "log.json",
	"metrics-textfile": "metrics.textfile",
}

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configFile string
	envFile    string
	cfg        *config.Config
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "eav-warmup",
		Short: "Generate accessor contracts for an EAV family registry",
		Long: `eav-warmup loads a family registry (json, yaml or toml), derives the
accessors every family requires and writes one unit per family to the
configured output sink.

Settings come from defaults, an optional .env file, an optional --config
file and EAVCORE_* environment variables; flags override all of them.

Examples:
  eav-warmup validate --registry library.yaml
  eav-warmup warmup --format markdown --out-dir docs/accessors
  eav-warmup describe Book
  eav-warmup store init --storage sqlite`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usage(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (any format viper reads)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	pf.String("registry", "", "registry document path")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "emit JSON logs")

	root.AddCommand(a.warmupCmd(), a.validateCmd(), a.describeCmd(), a.storeCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(config.Options{ConfigFile: a.configFile, EnvFile: a.envFile})
	if err != nil {
		return usage(err)
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return usage(bindErr)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return usage(err)
	}
	if err := logger.InitializeTo(a.stderr, cfg.Log.JSON, cfg.Log.Level); err != nil {
		return usage(err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) loadRegistry() (*registry.Loaded, error) {
	loaded, err := registry.Load(a.cfg.Registry.Path)
	if err != nil {
		return nil, usage(err)
	}
	return loaded, nil
}

// generator wires the association table and, when patterns are configured,
// the go/packages method oracle.
func (a *app) generator(ctx context.Context, loaded *registry.Loaded) (*accessors.Generator, error) {
	cat := catalog.New(loaded.Associations)
	if len(a.cfg.Introspect.Patterns) == 0 {
		return accessors.NewGenerator(cat, nil), nil
	}
	oracle, err := introspect.Load(ctx, a.cfg.Introspect.Dir, a.cfg.Introspect.Patterns...)
	if err != nil {
		return nil, err
	}
	return accessors.NewGenerator(cat, oracle), nil
}

func (a *app) outputConfig() output.Config {
	o := a.cfg.Output
	return output.Config{
		Driver: output.Driver(o.Driver),
		FSRoot: o.FSRoot,
		S3: output.S3Config{
			Bucket:    o.S3.Bucket,
			Region:    o.S3.Region,
			Endpoint:  o.S3.Endpoint,
			PathStyle: o.S3.PathStyle,
		},
	}
}

func (a *app) storeConfig() core.StoreConfig {
	s := a.cfg.Storage
	return core.StoreConfig{Driver: core.StorageDriver(s.Driver), SQLitePath: s.SQLitePath, PostgresDSN: s.PostgresDSN}
}

// exactArgs reports arity problems as usage errors.
func exactArgs(n int) cobra.PositionalArgs {
	check := cobra.ExactArgs(n)
	return func(cmd *cobra.Command, args []string) error { return usage(check(cmd, args)) }
}
