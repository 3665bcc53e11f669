// Package config decodes validate-corpus settings from viper into a typed
// Config and adapts them into loader and validator options.
package config

import (
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/report"
	"github.com/jingkaihe/corpuscheck/pkg/telemetry"
	"github.com/jingkaihe/corpuscheck/pkg/validate"
)

const (
	// EnvPrefix is prepended to every environment variable, so CORPUS_ROOT sets root
	EnvPrefix = "CORPUS"
	// FileName is the config file name searched for without its extension
	FileName = ".validate-corpus"
	// DefaultDebounce is the quiet period before watch mode re-validates
	DefaultDebounce = 300 * time.Millisecond
)

// Config holds every setting of a validation run
type Config struct {
	Root        string        `mapstructure:"root"`
	Include     []string      `mapstructure:"include"`
	Exclude     []string      `mapstructure:"exclude"`
	Workers     int           `mapstructure:"workers"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	ReadRetries int           `mapstructure:"read_retries"`
	LinkIgnore  []string      `mapstructure:"link_ignore"`

	Checks  ChecksConfig  `mapstructure:"checks"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ChecksConfig toggles the opt-in validation rules
type ChecksConfig struct {
	Cycles         bool `mapstructure:"cycles"`
	DuplicateNames bool `mapstructure:"duplicate_names"`
}

// OutputConfig selects the report format and an optional JSON report file
type OutputConfig struct {
	Format string `mapstructure:"format"`
	JSON   string `mapstructure:"json"`
	Quiet  bool   `mapstructure:"quiet"`
}

// LogConfig configures the logrus logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("include", corpus.DefaultInclude)
	v.SetDefault("exclude", corpus.DefaultExclude)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("read_timeout", corpus.DefaultReadTimeout)
	v.SetDefault("read_retries", corpus.DefaultReadRetries)
	v.SetDefault("link_ignore", []string{})
	v.SetDefault("checks.cycles", false)
	v.SetDefault("checks.duplicate_names", false)
	v.SetDefault("output.format", string(report.FormatTable))
	v.SetDefault("output.json", "")
	v.SetDefault("output.quiet", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "fmt")
	v.SetDefault("watch.debounce", DefaultDebounce)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

// NewViper returns a viper instance with defaults, the CORPUS environment
// prefix and the config file search paths set up. A missing config file is
// not an error; an explicit configFile must exist.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file '%s'", configFile)
		}
		return v, nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	return v, nil
}

// Load decodes the merged settings of v into a Config. Durations accept Go
// duration strings and list settings accept comma-separated strings, as
// environment variables do.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			trimSliceHook,
		),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config decoder")
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	return &cfg, nil
}

// trimSliceHook drops whitespace around comma-separated list items
func trimSliceHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Slice {
		return data, nil
	}
	items, ok := data.([]string)
	if !ok {
		return data, nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.Root) == "" {
		result = multierror.Append(result, errors.New("root cannot be empty"))
	}
	if len(c.Include) == 0 {
		result = multierror.Append(result, errors.New("at least one include pattern must be specified"))
	}
	for _, p := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			result = multierror.Append(result, errors.Errorf("invalid glob pattern '%s'", p))
		}
	}
	if _, err := validate.CompileIgnore(c.LinkIgnore); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Workers < 1 {
		result = multierror.Append(result, errors.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.ReadTimeout < 0 {
		result = multierror.Append(result, errors.Errorf("read timeout cannot be negative: %s", c.ReadTimeout))
	}
	if c.ReadRetries < 1 {
		result = multierror.Append(result, errors.Errorf("read retries must be at least 1, got %d", c.ReadRetries))
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, errors.Errorf("invalid log level '%s'", c.Log.Level))
	}
	if !contains(logger.ValidFormats, c.Log.Format) {
		result = multierror.Append(result, errors.Errorf("invalid log format '%s', expected one of %s", c.Log.Format, strings.Join(logger.ValidFormats, ", ")))
	}
	if c.Watch.Debounce < 0 {
		result = multierror.Append(result, errors.Errorf("debounce cannot be negative: %s", c.Watch.Debounce))
	}
	if c.Tracing.Enabled {
		if !contains(telemetry.ValidSamplers, c.Tracing.Sampler) {
			result = multierror.Append(result, errors.Errorf("invalid tracing sampler '%s', expected one of %s", c.Tracing.Sampler, strings.Join(telemetry.ValidSamplers, ", ")))
		}
		if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
			result = multierror.Append(result, errors.Errorf("tracing ratio must be between 0 and 1, got %g", c.Tracing.Ratio))
		}
	}

	return result.ErrorOrNil()
}

// Format returns the parsed output format, falling back to the table format
func (c *Config) Format() report.Format {
	f, err := report.ParseFormat(c.Output.Format)
	if err != nil {
		return report.FormatTable
	}
	return f
}

// LoaderOptions adapts the config into corpus loader options
func (c *Config) LoaderOptions() []corpus.Option {
	return []corpus.Option{
		corpus.WithInclude(c.Include...),
		corpus.WithExclude(c.Exclude...),
		corpus.WithWorkers(c.Workers),
		corpus.WithReadTimeout(c.ReadTimeout),
		corpus.WithReadRetries(c.ReadRetries),
	}
}

// ValidatorOptions adapts the config into validator options
func (c *Config) ValidatorOptions() []validate.Option {
	return []validate.Option{
		validate.WithLinkIgnore(c.LinkIgnore...),
		validate.WithCycleCheck(c.Checks.Cycles),
		validate.WithDuplicateNameCheck(c.Checks.DuplicateNames),
	}
}

// Telemetry adapts the tracing settings into a telemetry config
func (c *Config) Telemetry(serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    "validate-corpus",
		ServiceVersion: serviceVersion,
		SamplerType:    c.Tracing.Sampler,
		SamplerRatio:   c.Tracing.Ratio,
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
