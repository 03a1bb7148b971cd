package config

import "github.com/abdul-hamid-achik/control/packages/logging"

const (
	// DefaultWatchDebounce is the quiet period, in milliseconds, before a
	// watched change triggers a new run.
	DefaultWatchDebounce = 300
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Output:    "console",
		NoColor:   BoolPtr(false),
		Verbose:   BoolPtr(false),
		LogLevel:  logging.LevelWarn,
		LogFormat: logging.FormatText,
		Watch: &WatchConfig{
			Paths:    []string{"."},
			Debounce: DefaultWatchDebounce,
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	w := c.watch()
	return c.Output == defaults.Output &&
		c.OutputFile == "" &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.LogLevel == defaults.LogLevel &&
		c.LogFormat == defaults.LogFormat &&
		c.Language == "" &&
		c.EnvFile == "" &&
		len(w.Paths) == 1 && w.Paths[0] == "." &&
		w.Debounce == DefaultWatchDebounce &&
		c.Metrics == nil &&
		c.Notify == nil &&
		len(c.Environment) == 0
}
