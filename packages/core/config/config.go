package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the control configuration
type Config struct {
	Output      string            `yaml:"output,omitempty" json:"output,omitempty"`         // console, json, junit, tap, table
	OutputFile  string            `yaml:"outputFile,omitempty" json:"outputFile,omitempty"` // Write reporter output here instead of stdout
	NoColor     *bool             `yaml:"noColor,omitempty" json:"noColor,omitempty"`
	Verbose     *bool             `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	LogLevel    string            `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	LogFormat   string            `yaml:"logFormat,omitempty" json:"logFormat,omitempty"`
	Language    string            `yaml:"language,omitempty" json:"language,omitempty"` // Collation used to order contexts
	Watch       *WatchConfig      `yaml:"watch,omitempty" json:"watch,omitempty"`
	Metrics     *MetricsConfig    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Notify      *NotifyConfig     `yaml:"notify,omitempty" json:"notify,omitempty"`
	EnvFile     string            `yaml:"envFile,omitempty" json:"envFile,omitempty"`         // Dotenv file exported before the run
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"` // Exported before the run, after EnvFile
}

// WatchConfig configures re-running on file changes
type WatchConfig struct {
	Paths    []string `yaml:"paths,omitempty" json:"paths,omitempty"`
	Debounce int      `yaml:"debounce,omitempty" json:"debounce,omitempty"` // milliseconds
}

// MetricsConfig configures metrics export after a run
type MetricsConfig struct {
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json, prometheus, datadog
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// NotifyConfig configures run notifications
type NotifyConfig struct {
	Services     []string `yaml:"services,omitempty" json:"services,omitempty"` // slack, teams
	On           string   `yaml:"on,omitempty" json:"on,omitempty"`             // always, failure, success, recovery
	SlackWebhook string   `yaml:"slackWebhook,omitempty" json:"slackWebhook,omitempty"`
	SlackChannel string   `yaml:"slackChannel,omitempty" json:"slackChannel,omitempty"`
	TeamsWebhook string   `yaml:"teamsWebhook,omitempty" json:"teamsWebhook,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".control.yml",
	".control.yaml",
	"control.yml",
	".control.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	if err := Validate(data); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Output != "" {
		result.Output = other.Output
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}
	if other.Language != "" {
		result.Language = other.Language
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}

	// Boolean flags - only override if explicitly set in other config
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}

	if other.Watch != nil {
		w := result.watch()
		if len(other.Watch.Paths) > 0 {
			w.Paths = other.Watch.Paths
		}
		if other.Watch.Debounce > 0 {
			w.Debounce = other.Watch.Debounce
		}
		result.Watch = &w
	}

	if other.Metrics != nil {
		m := MetricsConfig{}
		if result.Metrics != nil {
			m = *result.Metrics
		}
		if other.Metrics.Format != "" {
			m.Format = other.Metrics.Format
		}
		if other.Metrics.File != "" {
			m.File = other.Metrics.File
		}
		result.Metrics = &m
	}

	if other.Notify != nil {
		n := NotifyConfig{}
		if result.Notify != nil {
			n = *result.Notify
		}
		if len(other.Notify.Services) > 0 {
			n.Services = other.Notify.Services
		}
		if other.Notify.On != "" {
			n.On = other.Notify.On
		}
		if other.Notify.SlackWebhook != "" {
			n.SlackWebhook = other.Notify.SlackWebhook
		}
		if other.Notify.SlackChannel != "" {
			n.SlackChannel = other.Notify.SlackChannel
		}
		if other.Notify.TeamsWebhook != "" {
			n.TeamsWebhook = other.Notify.TeamsWebhook
		}
		result.Notify = &n
	}

	if len(other.Environment) > 0 {
		env := make(map[string]string, len(result.Environment)+len(other.Environment))
		for k, v := range result.Environment {
			env[k] = v
		}
		for k, v := range other.Environment {
			env[k] = v
		}
		result.Environment = env
	}

	return &result
}

func (c *Config) watch() WatchConfig {
	if c.Watch == nil {
		return WatchConfig{}
	}
	return *c.Watch
}

// ApplyEnvironment exports the env file and then the configured environment
// into the process environment. Env file entries never replace variables that
// are already set; Environment entries always do.
func (c *Config) ApplyEnvironment() error {
	if c.EnvFile != "" {
		vars, err := ReadEnvFile(c.EnvFile)
		if err != nil {
			return err
		}
		for k, v := range vars {
			if _, set := os.LookupEnv(k); set {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return errors.Wrapf(err, "setting %s", k)
			}
		}
	}

	for k, v := range c.Environment {
		if err := os.Setenv(k, v); err != nil {
			return errors.Wrapf(err, "setting %s", k)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a file. Files ending in .json are
// written as JSON, everything else as YAML.
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(c)
		data = buf.Bytes()
	}
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	return os.WriteFile(path, data, 0644)
}
