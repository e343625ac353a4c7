// Package config loads eavcore settings from defaults, an optional .env
// file, an optional config file and EAVCORE_* environment variables, in
// increasing order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"eavcore/internal/accessors/render"
)

// EnvPrefix prefixes every environment override, e.g. EAVCORE_OUTPUT_DRIVER.
const EnvPrefix = "EAVCORE"

// Config is the resolved configuration.
type Config struct {
	Registry   RegistryConfig   `mapstructure:"registry"`
	Render     RenderConfig     `mapstructure:"render"`
	Output     OutputConfig     `mapstructure:"output"`
	Introspect IntrospectConfig `mapstructure:"introspect"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type RenderConfig struct {
	Format  string `mapstructure:"format"`
	Package string `mapstructure:"package"`
}

type OutputConfig struct {
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	Prefix string   `mapstructure:"prefix"`
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// IntrospectConfig lists go/packages patterns whose types back the
// native-method check. Empty disables introspection.
type IntrospectConfig struct {
	Dir      string   `mapstructure:"dir"`
	Patterns []string `mapstructure:"patterns"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// MetricsConfig names a node-exporter textfile the warm-up metrics are
// written to. Empty disables the export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is read when set; its extension selects the format.
	ConfigFile string
	// EnvFile defaults to ".env"; a missing default file is ignored.
	EnvFile string
}

// SetDefaults registers every key so environment overrides resolve during
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", "registry.yaml")
	v.SetDefault("render.format", render.FormatGo)
	v.SetDefault("render.package", render.DefaultPackage)
	v.SetDefault("output.driver", "fs")
	v.SetDefault("output.fs_root", "./generated")
	v.SetDefault("output.prefix", "")
	v.SetDefault("output.s3.bucket", "")
	v.SetDefault("output.s3.region", "us-east-1")
	v.SetDefault("output.s3.endpoint", "")
	v.SetDefault("output.s3.path_style", false)
	v.SetDefault("introspect.dir", ".")
	v.SetDefault("introspect.patterns", []string{})
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.sqlite_path", "eavcore.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.textfile", "")
}

// NewViper builds the layered viper instance.
func NewViper(opts Options) (*viper.Viper, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", opts.ConfigFile)
		}
	}
	return v, nil
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is NewViper followed by FromViper.
func Load(opts Options) (*Config, error) {
	v, err := NewViper(opts)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return errors.Wrapf(err, "env file %s", path)
		}
		return nil
	}
	// Variables already in the environment win over the file.
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load env file %s", path)
	}
	return nil
}

// Validate rejects unknown driver and format names.
func (c *Config) Validate() error {
	var problems []string
	if _, err := render.New(c.Render.Format, render.Options{Package: c.Render.Package}); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.Output.Driver) {
	case "fs", "memory":
	case "s3":
		if c.Output.S3.Bucket == "" {
			problems = append(problems, "output.s3.bucket is required when output.driver is s3")
		}
	default:
		problems = append(problems, "unknown output.driver "+quote(c.Output.Driver))
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			problems = append(problems, "storage.postgres_dsn is required when storage.driver is postgres")
		}
	default:
		problems = append(problems, "unknown storage.driver "+quote(c.Storage.Driver))
	}
	if len(problems) > 0 {
		return errors.WithHint(errors.Newf("invalid configuration: %s", strings.Join(problems, "; ")),
			"set the value in the config file or through an "+EnvPrefix+"_* environment variable")
	}
	return nil
}

func quote(s string) string { return `"` + s + `"` }
