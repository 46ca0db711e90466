// Package config resolves the check configuration from the command line,
// an optional YAML file and CHECK_JENKINS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nmslite/check-jenkins-queue/internal/models"
)

// Build variables, injected at compile time
var (
	Version = "dev"
	Program = "check_jenkins_queue"
)

const DefaultTimeoutSeconds = 10

// Requests for informational output. Each one ends the run with UNKNOWN.
var (
	ErrHelp    = errors.New("help requested")
	ErrVersion = errors.New("version requested")
	ErrManual  = errors.New("manual requested")
)

// Config is the resolved, immutable configuration of a single run
type Config struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int           `yaml:"timeout_seconds" validate:"gt=0"`
	ProxyURL       string        `yaml:"proxy" validate:"omitempty,url"`
	NoProxy        bool          `yaml:"noproxy"`
	Username       string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Warning        *int          `yaml:"warning" validate:"omitempty,gte=0"`
	Critical       *int          `yaml:"critical" validate:"omitempty,gte=0"`
	NoPerfdata     bool          `yaml:"noperfdata"`
	Debug          bool          `yaml:"debug"`
	Logging        LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// UsageError reports a command line that cannot be turned into a Config
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return "usage error: " + e.Reason
}

var validate = validator.New()

// Load builds the Config for args (without the program name).
// Precedence is flags, then environment, then the file named by --config.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet(Program, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	var (
		configPath string
		flags      Config
		timeout    int
		warning    int
		critical   int
		help       bool
		version    bool
		manual     bool
	)
	fs.StringVar(&configPath, "config", "", "")
	fs.BoolVarP(&flags.Debug, "debug", "d", false, "")
	fs.IntVarP(&timeout, "timeout", "t", DefaultTimeoutSeconds, "")
	fs.StringVar(&flags.ProxyURL, "proxy", "", "")
	fs.BoolVar(&flags.NoProxy, "noproxy", false, "")
	fs.StringVarP(&flags.Username, "user", "u", "", "")
	fs.StringVarP(&flags.Password, "password", "p", "", "")
	fs.BoolVar(&flags.NoPerfdata, "noperfdata", false, "")
	fs.IntVarP(&warning, "warning", "w", models.UnsetThreshold, "")
	fs.IntVarP(&critical, "critical", "c", models.UnsetThreshold, "")
	fs.BoolVarP(&version, "version", "v", false, "")
	fs.BoolVarP(&help, "help", "h", false, "")
	fs.BoolVar(&manual, "man", false, "")

	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{Reason: err.Error()}
	}

	switch {
	case help:
		return nil, ErrHelp
	case version:
		return nil, ErrVersion
	case manual:
		return nil, ErrManual
	}

	if fs.NArg() > 1 {
		return nil, &UsageError{Reason: fmt.Sprintf("expected exactly one base URL, got %d arguments", fs.NArg())}
	}

	cfg := &Config{TimeoutSeconds: DefaultTimeoutSeconds}
	if configPath != "" {
		if err := loadFile(configPath, cfg); err != nil {
			return nil, &UsageError{Reason: err.Error()}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, &UsageError{Reason: err.Error()}
	}

	if fs.NArg() == 1 {
		cfg.BaseURL = fs.Arg(0)
	}
	if cfg.BaseURL == "" {
		return nil, &UsageError{Reason: "missing base URL"}
	}

	applyFlags(fs, cfg, &flags, timeout, warning, critical)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, &UsageError{Reason: err.Error()}
	}

	return cfg, nil
}

// loadFile reads a YAML configuration file into cfg
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnvOverrides checks for environment variables with CHECK_JENKINS_ prefix
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CHECK_JENKINS_USER"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("CHECK_JENKINS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("CHECK_JENKINS_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHECK_JENKINS_TIMEOUT %q: %w", v, err)
		}
		cfg.TimeoutSeconds = n
	}
	return nil
}

// applyFlags copies the flags set on the command line over cfg
func applyFlags(fs *pflag.FlagSet, cfg, flags *Config, timeout, warning, critical int) {
	if fs.Changed("debug") {
		cfg.Debug = flags.Debug
	}
	if fs.Changed("timeout") {
		cfg.TimeoutSeconds = timeout
	}
	if fs.Changed("proxy") {
		cfg.ProxyURL = flags.ProxyURL
	}
	if fs.Changed("noproxy") {
		cfg.NoProxy = flags.NoProxy
	}
	if fs.Changed("user") {
		cfg.Username = flags.Username
	}
	if fs.Changed("password") {
		cfg.Password = flags.Password
	}
	if fs.Changed("noperfdata") {
		cfg.NoPerfdata = flags.NoPerfdata
	}
	if fs.Changed("warning") {
		cfg.Warning = models.ThresholdFromSentinel(warning)
	}
	if fs.Changed("critical") {
		cfg.Critical = models.ThresholdFromSentinel(critical)
	}
}

// normalize maps the -1 sentinel read from a file to unset and strips
// trailing slashes from the base URL
func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Warning != nil {
		c.Warning = models.ThresholdFromSentinel(*c.Warning)
	}
	if c.Critical != nil {
		c.Critical = models.ThresholdFromSentinel(*c.Critical)
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// Validate checks the resolved values and returns field-level messages
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		messages = append(messages, formatValidationMessage(e))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

// formatValidationMessage creates human-readable error messages
func formatValidationMessage(e validator.FieldError) string {
	field := optionName(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", field, e.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more (use -1 to disable)", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

// optionName maps struct fields to the option a user would have typed
func optionName(field string) string {
	switch field {
	case "BaseURL":
		return "base URL"
	case "TimeoutSeconds":
		return "timeout"
	case "ProxyURL":
		return "proxy"
	case "Level":
		return "logging level"
	case "Format":
		return "logging format"
	default:
		return strings.ToLower(field)
	}
}

// GetTimeout returns the request timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Thresholds returns the configured warning and critical bounds
func (c *Config) Thresholds() models.Thresholds {
	return models.Thresholds{Warning: c.Warning, Critical: c.Critical}
}

// PerfdataEnabled reports whether performance data is appended to the output
func (c *Config) PerfdataEnabled() bool {
	return !c.NoPerfdata
}

// HasCredentials reports whether both basic auth values are present
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
