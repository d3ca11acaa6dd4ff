// Package config loads the engine's ambient settings — logger backend and
// the per-MetaClass query cache capacity — through spf13/viper, the same
// config-file/env/default layering the teacher repo's config package uses,
// trimmed to the sections this engine actually has (SPEC_FULL §2).
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Logger mirrors the teacher config's Logger section: backend file path,
// level, and lumberjack rotation knobs.
type Logger struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"maxsize"`
	MaxBackups int    `mapstructure:"maxbackups"`
	MaxAgeDays int    `mapstructure:"maxage"`
}

func (l *Logger) setDefault() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = 100
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 5
	}
	if l.MaxAgeDays == 0 {
		l.MaxAgeDays = 28
	}
}

// Engine is the engine's one runtime knob outside the schema itself: the
// LRU capacity each MetaClass's query cache is constructed with
// (spec.md §4.7, SPEC_FULL §2).
type Engine struct {
	QueryCacheSize int `mapstructure:"querycachesize"`
}

func (e *Engine) setDefault() {
	if e.QueryCacheSize == 0 {
		e.QueryCacheSize = 256
	}
}

// Config is the engine's full settings tree.
type Config struct {
	Logger `mapstructure:"logger"`
	Engine `mapstructure:"engine"`
}

func (c *Config) setDefault() {
	c.Logger.setDefault()
	c.Engine.setDefault()
}

var (
	// App holds the most recently loaded configuration. Init populates it;
	// callers that never call Init get the zero Config with defaults
	// applied, matching the teacher config package's "usable before Init"
	// contract.
	App = func() *Config {
		c := new(Config)
		c.setDefault()
		return c
	}()

	configFile = ""
	configName = "config"
	configType = "yaml"
)

// SetConfigFile pins an exact config file path, bypassing name/type/path
// search.
func SetConfigFile(file string) { configFile = file }

// Init loads configuration from (in viper's precedence order) environment
// variables, a config file, and the engine's built-in defaults, into App.
// A missing config file is not an error: defaults alone are a valid
// configuration.
func Init(paths ...string) error {
	cv := viper.New()
	cv.AutomaticEnv()
	cv.AllowEmptyEnv(true)
	cv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper knows about; binding each one makes
	// the environment overlay apply even when no config file sets it.
	for _, key := range []string{"logger.file", "logger.level", "logger.maxsize",
		"logger.maxbackups", "logger.maxage", "engine.querycachesize"} {
		_ = cv.BindEnv(key)
	}

	App = new(Config)
	App.setDefault()

	if configFile != "" {
		cv.SetConfigFile(configFile)
	} else {
		cv.SetConfigName(configName)
		cv.SetConfigType(configType)
	}
	cv.AddConfigPath(".")
	for _, p := range paths {
		cv.AddConfigPath(p)
	}

	if err := cv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, statErr := os.Stat(configFile); configFile == "" || statErr != nil {
				return errors.Wrap(err, "config: read config file")
			}
		}
	}
	if err := cv.Unmarshal(App); err != nil {
		return errors.Wrap(err, "config: unmarshal")
	}
	App.setDefault()
	return nil
}
