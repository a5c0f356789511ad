package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-flowise/client"
	"github.com/goliatone/go-flowise/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvEndpoint = "FLOWISE_API_ENDPOINT"
	EnvAPIKey   = "FLOWISE_API_KEY"
	EnvTimeout  = "FLOWISE_TIMEOUT"
	EnvLogLevel = "FLOWISE_LOG_LEVEL"
)

const (
	ErrCodeConfigRead    = "CONFIG_READ"
	ErrCodeConfigParse   = "CONFIG_PARSE"
	ErrCodeConfigInvalid = "CONFIG_INVALID"
)

var (
	ErrConfigRead = errors.New("config file could not be read", errors.CategoryBadInput).
			WithTextCode(ErrCodeConfigRead)
	ErrConfigParse = errors.New("config file could not be parsed", errors.CategoryBadInput).
			WithTextCode(ErrCodeConfigParse)
	ErrConfigInvalid = errors.New("invalid configuration", errors.CategoryValidation).
				WithTextCode(ErrCodeConfigInvalid)
)

// Config is the process configuration.
type Config struct {
	Flowise FlowiseConfig `json:"flowise" yaml:"flowise"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
	Log     LogConfig     `json:"log" yaml:"log"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
}

// FlowiseConfig points at the platform API.
type FlowiseConfig struct {
	Endpoint   string        `json:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" validate:"min=0"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
}

// CatalogConfig controls the node schema cache. Refresh is a cron
// expression; empty disables scheduled refreshes.
type CatalogConfig struct {
	Refresh string        `json:"refresh" yaml:"refresh"`
	TTL     time.Duration `json:"ttl" yaml:"ttl" validate:"min=0"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=console json"`
}

type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
	CORS bool   `json:"cors" yaml:"cors"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Flowise: FlowiseConfig{
			Timeout:    client.DefaultTimeout,
			MaxRetries: client.DefaultMaxRetries,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg, err := Read(path, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read is Load without validation, for callers that layer flags on top
// before validating.
func Read(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, raise(ErrConfigRead, fmt.Sprintf("config file %s could not be read: %v", path, err),
				map[string]any{"path": path})
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML or JSON over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	// yaml accepts JSON as well
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, raise(ErrConfigParse, "config file could not be parsed: "+err.Error(), nil)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvEndpoint); ok && strings.TrimSpace(v) != "" {
		c.Flowise.Endpoint = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Flowise.APIKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		timeout, err := parseTimeout(v)
		if err != nil {
			return raise(ErrConfigInvalid, fmt.Sprintf("%s: %v", EnvTimeout, err),
				map[string]any{"env": EnvTimeout, "value": v})
		}
		c.Flowise.Timeout = timeout
	}
	return nil
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

var configValidator = validator.New()

// Validate checks field ranges.
func (c Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return raise(ErrConfigInvalid, err.Error(), nil)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Namespace())
	}
	return raise(ErrConfigInvalid, "invalid configuration: "+strings.Join(fields, ", "),
		map[string]any{"fields": fields})
}

// HasRemote reports whether a platform endpoint is configured.
func (c Config) HasRemote() bool {
	return c.Flowise.Endpoint != ""
}

// ClientOptions translates the platform section into client options.
func (c Config) ClientOptions(logger logging.Logger) []client.Option {
	opts := []client.Option{
		client.WithTimeout(c.Flowise.Timeout),
		client.WithMaxRetries(c.Flowise.MaxRetries),
		client.WithLogger(logger),
	}
	if c.Flowise.APIKey != "" {
		opts = append(opts, client.WithAPIKey(c.Flowise.APIKey))
	}
	return opts
}

// LoggerOptions translates the log section into logging options.
func (c Config) LoggerOptions() logging.Options {
	return logging.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
	}
}

func raise(base *errors.Error, message string, metadata map[string]any) *errors.Error {
	err := base.Clone()
	if message != "" {
		err.Message = message
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}
