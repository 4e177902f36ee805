// ABOUTME: Configuration loading and parsing for tdsession
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "TDSESSION_CONFIG"

// ErrUnknownProfile is returned by Resolve for a profile the file does not define.
var ErrUnknownProfile = errors.New("unknown profile")

// Config represents the complete tdsession configuration
type Config struct {
	DefaultProfile string                   `yaml:"default_profile" toml:"default_profile"`
	Profiles       map[string]ProfileConfig `yaml:"profiles" toml:"profiles"`
	Session        SessionConfig            `yaml:"session" toml:"session"`
	Logging        LoggingConfig            `yaml:"logging" toml:"logging"`
	Triage         TriageConfig             `yaml:"triage" toml:"triage"`
	Metrics        MetricsConfig            `yaml:"metrics" toml:"metrics"`
	Bridge         BridgeConfig             `yaml:"bridge" toml:"bridge"`
	Sink           SinkConfig               `yaml:"sink" toml:"sink"`

	// dir is the directory of the loaded file; relative paths resolve against it.
	dir string
}

// ProfileConfig holds one account's engine parameters and credentials.
// Pointer fields distinguish "unset" from false so defaults can apply.
type ProfileConfig struct {
	Test    bool   `yaml:"test" toml:"test"`
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	APIID   int    `yaml:"api_id" toml:"api_id"`
	APIHash string `yaml:"api_hash" toml:"api_hash"`

	LanguageCode       string `yaml:"language_code" toml:"language_code"`
	DeviceModel        string `yaml:"device_model" toml:"device_model"`
	SystemVersion      string `yaml:"system_version" toml:"system_version"`
	ApplicationVersion string `yaml:"application_version" toml:"application_version"`

	UseFileDB         bool  `yaml:"use_file_db" toml:"use_file_db"`
	UseFileGC         *bool `yaml:"use_file_gc" toml:"use_file_gc"`
	FileReadableNames *bool `yaml:"file_readable_names" toml:"file_readable_names"`
	UseSecretChats    bool  `yaml:"use_secret_chats" toml:"use_secret_chats"`
	UseChatInfoDB     *bool `yaml:"use_chat_info_db" toml:"use_chat_info_db"`
	UseMessageDB      bool  `yaml:"use_message_db" toml:"use_message_db"`

	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key"`

	// Engine log, applied at session start.
	LogName        string `yaml:"log_name" toml:"log_name"`
	LogMaxFileSize int64  `yaml:"log_max_file_size" toml:"log_max_file_size"`
	Verbosity      *int   `yaml:"verbosity" toml:"verbosity"`

	// Credentials; usually ${VAR} references.
	Token    string `yaml:"token" toml:"token"`
	Phone    string `yaml:"phone" toml:"phone"`
	Password string `yaml:"password" toml:"password"`
}

// SessionConfig holds worker and timing tunables shared by all profiles
type SessionConfig struct {
	Workers    int `yaml:"workers" toml:"workers"`
	MaxRetries int `yaml:"max_retries" toml:"max_retries"`
	QueueSize  int `yaml:"queue_size" toml:"queue_size"`

	WaitTimeout time.Duration `yaml:"-" toml:"-"`
	PollTimeout time.Duration `yaml:"-" toml:"-"`
	StopTimeout time.Duration `yaml:"-" toml:"-"`
	LateTTL     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	WaitTimeoutRaw string `yaml:"wait_timeout" toml:"wait_timeout"`
	PollTimeoutRaw string `yaml:"poll_timeout" toml:"poll_timeout"`
	StopTimeoutRaw string `yaml:"stop_timeout" toml:"stop_timeout"`
	LateTTLRaw     string `yaml:"late_ttl" toml:"late_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// TriageConfig holds the unknown-error store configuration
type TriageConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
	Driver  string `yaml:"driver" toml:"driver"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

// BridgeConfig selects a remote engine. Remote is the dial target used by
// run and execute; Listen is the address bridge serve binds.
type BridgeConfig struct {
	Remote string `yaml:"remote" toml:"remote"`
	Listen string `yaml:"listen" toml:"listen"`
}

// SinkConfig holds optional update sinks
type SinkConfig struct {
	Redis RedisSinkConfig `yaml:"redis" toml:"redis"`
}

// RedisSinkConfig holds the Redis stream sink configuration
type RedisSinkConfig struct {
	Enabled  bool     `yaml:"enabled" toml:"enabled"`
	Addr     string   `yaml:"addr" toml:"addr"`
	Password string   `yaml:"password" toml:"password"`
	DB       int      `yaml:"db" toml:"db"`
	Stream   string   `yaml:"stream" toml:"stream"`
	MaxLen   int64    `yaml:"max_len" toml:"max_len"`
	Types    []string `yaml:"types" toml:"types"`
}

// DefaultPath returns the config location when no --config flag is given:
// $TDSESSION_CONFIG, else $XDG_CONFIG_HOME/tdsession/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "tdsession", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tdsession", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.dir = abs
	}
	return &cfg, nil
}

var envVar = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVar.FindStringSubmatch(match)[1])
	})
}

var (
	logLevels  = []string{"", "debug", "info", "warn", "error"}
	logFormats = []string{"", "text", "json"}
)

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			return fmt.Errorf("default_profile %q is not defined in profiles", c.DefaultProfile)
		}
	}

	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p := c.Profiles[name]
		if p.APIID <= 0 {
			return fmt.Errorf("profiles.%s.api_id is required", name)
		}
		if p.APIHash == "" {
			return fmt.Errorf("profiles.%s.api_hash is required", name)
		}
		if p.Token != "" && p.Phone != "" {
			return fmt.Errorf("profiles.%s: token and phone are mutually exclusive", name)
		}
	}

	if c.Session.Workers < 0 {
		return fmt.Errorf("session.workers must not be negative")
	}
	if c.Session.MaxRetries < 0 {
		return fmt.Errorf("session.max_retries must not be negative")
	}
	if c.Session.QueueSize < 0 {
		return fmt.Errorf("session.queue_size must not be negative")
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	if c.Triage.Enabled && c.Triage.Path == "" {
		return fmt.Errorf("triage.path is required when triage is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Sink.Redis.Enabled {
		if c.Sink.Redis.Addr == "" {
			return fmt.Errorf("sink.redis.addr is required when the redis sink is enabled")
		}
		if c.Sink.Redis.Stream == "" {
			return fmt.Errorf("sink.redis.stream is required when the redis sink is enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"wait_timeout", cfg.Session.WaitTimeoutRaw, &cfg.Session.WaitTimeout},
		{"poll_timeout", cfg.Session.PollTimeoutRaw, &cfg.Session.PollTimeout},
		{"stop_timeout", cfg.Session.StopTimeoutRaw, &cfg.Session.StopTimeout},
		{"late_ttl", cfg.Session.LateTTLRaw, &cfg.Session.LateTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
