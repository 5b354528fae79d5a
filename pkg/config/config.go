package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/offlinefirst/action-observer/pkg/input"
)

const DefaultFileName = "config.yaml"

// EnvPrefix namespaces environment overrides, e.g. OBSERVER_LOGGING_LEVEL.
const EnvPrefix = "OBSERVER"

// Backend selection values for observer.backend.
const (
	BackendAuto      = "auto"
	BackendNative    = "native"
	BackendSynthetic = "synthetic"
)

// Config captures the user-adjustable knobs for the observer.
type Config struct {
	Paths         PathsConfig         `mapstructure:"paths"`
	Observer      ObserverConfig      `mapstructure:"observer"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `mapstructure:"-"`
}

// PathsConfig controls filesystem locations for the log and raw media.
type PathsConfig struct {
	DataDir string `mapstructure:"data_dir"`
	RawDir  string `mapstructure:"raw_dir"`
	LogFile string `mapstructure:"log_file"`
}

// ObserverConfig tunes the capture pipeline.
type ObserverConfig struct {
	DebounceMS     int    `mapstructure:"debounce_ms"`
	PollIntervalMS int    `mapstructure:"poll_interval_ms"`
	PollTimeoutMS  int    `mapstructure:"poll_timeout_ms"`
	JoinTimeoutMS  int    `mapstructure:"join_timeout_ms"`
	PushToTalkKey  string `mapstructure:"push_to_talk_key"`
	RegionSize     int    `mapstructure:"region_size"`
	ImageFormat    string `mapstructure:"image_format"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Backend        string `mapstructure:"backend"`
}

// PrivacyConfig controls masking of typed text before it is logged.
type PrivacyConfig struct {
	RedactEmails   bool     `mapstructure:"redact_emails"`
	RedactPatterns []string `mapstructure:"redact_patterns"`
}

// NotificationsConfig toggles desktop notifications.
type NotificationsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			DataDir: "data",
			RawDir:  filepath.Join("data", "raw"),
			LogFile: filepath.Join("data", "observer_log.jsonl"),
		},
		Observer: ObserverConfig{
			DebounceMS:     1500,
			PollIntervalMS: 1000,
			PollTimeoutMS:  500,
			JoinTimeoutMS:  3000,
			PushToTalkKey:  "ctrl_r",
			RegionSize:     100,
			ImageFormat:    "png",
			SampleRate:     16000,
			Backend:        BackendAuto,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Source: "<defaults>",
	}
}

func defaultValues(d Config) map[string]any {
	return map[string]any{
		"paths.data_dir":            d.Paths.DataDir,
		"paths.raw_dir":             d.Paths.RawDir,
		"paths.log_file":            d.Paths.LogFile,
		"observer.debounce_ms":      d.Observer.DebounceMS,
		"observer.poll_interval_ms": d.Observer.PollIntervalMS,
		"observer.poll_timeout_ms":  d.Observer.PollTimeoutMS,
		"observer.join_timeout_ms":  d.Observer.JoinTimeoutMS,
		"observer.push_to_talk_key": d.Observer.PushToTalkKey,
		"observer.region_size":      d.Observer.RegionSize,
		"observer.image_format":     d.Observer.ImageFormat,
		"observer.sample_rate":      d.Observer.SampleRate,
		"observer.backend":          d.Observer.Backend,
		"privacy.redact_emails":     d.Privacy.RedactEmails,
		"privacy.redact_patterns":   d.Privacy.RedactPatterns,
		"notifications.enabled":     d.Notifications.Enabled,
		"logging.level":             d.Logging.Level,
		"logging.format":            d.Logging.Format,
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates a missing file.
// Environment variables prefixed with OBSERVER_ override both.
func Load(path string) (Config, error) {
	cfg := Default()
	defaults := defaultValues(cfg)

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	_, statErr := os.Stat(candidate)
	switch {
	case statErr == nil:
		v.SetConfigFile(candidate)
		if filepath.Ext(candidate) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", candidate, err)
		}
		if err := rejectUnknownKeys(v.AllKeys(), defaults); err != nil {
			return cfg, err
		}
		cfg.Source = candidate
	case errors.Is(statErr, os.ErrNotExist):
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	default:
		return cfg, fmt.Errorf("open config file %q: %w", candidate, statErr)
	}

	source := cfg.Source
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = source
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func rejectUnknownKeys(keys []string, known map[string]any) error {
	var unknown []string
	for _, key := range keys {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown key %q", unknown[0])
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.RawDir) == "" {
		return errors.New("paths.raw_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogFile) == "" {
		return errors.New("paths.log_file must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	o := c.Observer
	if o.DebounceMS <= 0 {
		return errors.New("observer.debounce_ms must be positive")
	}
	if o.PollIntervalMS <= 0 {
		return errors.New("observer.poll_interval_ms must be positive")
	}
	if o.PollTimeoutMS <= 0 {
		return errors.New("observer.poll_timeout_ms must be positive")
	}
	if o.JoinTimeoutMS <= 0 {
		return errors.New("observer.join_timeout_ms must be positive")
	}
	if o.RegionSize <= 0 {
		return errors.New("observer.region_size must be positive")
	}
	if o.SampleRate <= 0 {
		return errors.New("observer.sample_rate must be positive")
	}
	if _, err := input.ParseKey(o.PushToTalkKey); err != nil {
		return fmt.Errorf("observer.push_to_talk_key: %w", err)
	}
	switch o.ImageFormat {
	case "png", "jpeg":
	default:
		return fmt.Errorf("observer.image_format: unsupported format %q", o.ImageFormat)
	}
	switch o.Backend {
	case BackendAuto, BackendNative, BackendSynthetic:
	default:
		return fmt.Errorf("observer.backend: unsupported backend %q", o.Backend)
	}
	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.DataDir = cleanPath(c.Paths.DataDir, defaults.Paths.DataDir)
	c.Paths.RawDir = cleanPath(c.Paths.RawDir, defaults.Paths.RawDir)
	c.Paths.LogFile = cleanPath(c.Paths.LogFile, defaults.Paths.LogFile)

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	c.Observer.ImageFormat = strings.ToLower(strings.TrimSpace(c.Observer.ImageFormat))
	if c.Observer.ImageFormat == "jpg" {
		c.Observer.ImageFormat = "jpeg"
	}
	c.Observer.Backend = strings.ToLower(strings.TrimSpace(c.Observer.Backend))
	if c.Observer.Backend == "" {
		c.Observer.Backend = defaults.Observer.Backend
	}
	c.Observer.PushToTalkKey = strings.TrimSpace(c.Observer.PushToTalkKey)
	if c.Observer.PushToTalkKey == "" {
		c.Observer.PushToTalkKey = defaults.Observer.PushToTalkKey
	}

	patterns := c.Privacy.RedactPatterns[:0]
	for _, p := range c.Privacy.RedactPatterns {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	if len(patterns) == 0 {
		patterns = nil
	}
	c.Privacy.RedactPatterns = patterns
}

func cleanPath(value, fallback string) string {
	cleaned := filepath.Clean(strings.TrimSpace(value))
	if cleaned == "." || cleaned == "" {
		return fallback
	}
	return cleaned
}

// Debounce returns the idle window that closes a typing run.
func (o ObserverConfig) Debounce() time.Duration {
	return time.Duration(o.DebounceMS) * time.Millisecond
}

// PollInterval returns how often the controller checks for a stop request.
func (o ObserverConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// PollTimeout bounds each consumer wait on a queue.
func (o ObserverConfig) PollTimeout() time.Duration {
	return time.Duration(o.PollTimeoutMS) * time.Millisecond
}

// JoinTimeout bounds each worker join at shutdown.
func (o ObserverConfig) JoinTimeout() time.Duration {
	return time.Duration(o.JoinTimeoutMS) * time.Millisecond
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
// "auto" picks console output on a terminal and JSON otherwise.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	case "", "auto":
		return "auto", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
