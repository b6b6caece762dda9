package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const CONFIGS_DIR_NAME = ".config"
const TRICKLE_CONFIG_DIR_NAME = "trickle"
const CONFIG_FILE_NAME = "config"
const CONFIG_FILE_EXT = "yml"
const ENV_PREFIX = "TRICKLE"

// DEFAULT_BACKLOG is the number of pending connections the listening socket queues.
const DEFAULT_BACKLOG = 10

type Config struct {
	Port        int    `mapstructure:"port"`
	Rate        int64  `mapstructure:"rate"`
	Backlog     int    `mapstructure:"backlog"`
	Root        string `mapstructure:"root"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	Verbose     bool   `mapstructure:"verbose"`
	Progress    bool   `mapstructure:"progress"`
}

func GetDefault() Config {
	return Config{
		Port:        0,
		Rate:        0,
		Backlog:     DEFAULT_BACKLOG,
		Root:        "",
		MetricsAddr: "",
		Verbose:     false,
		Progress:    false,
	}
}

func (config Config) Map() map[string]any {
	m := map[string]any{}
	for _, field := range structs.Fields(config) {
		key := field.Tag("mapstructure")
		value := field.Value()
		m[key] = value
	}
	return m
}

func (config Config) Yaml() []byte {
	var builder strings.Builder
	for k, v := range config.Map() {
		builder.WriteString(fmt.Sprintf("%s: %v", k, v))
		builder.WriteRune('\n')
	}
	return []byte(builder.String())
}

// ValidateServer checks the settings the server needs before any network activity.
func (config Config) ValidateServer() error {
	switch {
	case config.Port < 1 || config.Port > 65535:
		return errors.Errorf("port %d is out of range", config.Port)
	case config.Rate <= 0:
		return errors.Errorf("rate %d must be a positive number of bytes per second", config.Rate)
	case config.Backlog <= 0:
		return errors.Errorf("backlog %d must be positive", config.Backlog)
	}
	return nil
}

func IsDefault(v *viper.Viper, key string) bool {
	defaults := GetDefault().Map()
	return v.Get(key) == defaults[key]
}

// Path returns the directory the config file is looked up in: $HOME/.config/trickle.
func Path() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, CONFIGS_DIR_NAME, TRICKLE_CONFIG_DIR_NAME), nil
}

// Init initializes the viper config. `config.yml` is read from $HOME/.config/trickle
// when present, and TRICKLE_* environment variables override it.
// NOTE: The precedence levels of viper are the following: flags -> env -> config file -> defaults.
func Init(v *viper.Viper) error {
	for k, val := range GetDefault().Map() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(ENV_PREFIX)
	v.AutomaticEnv()

	configPath, err := Path()
	if err != nil {
		return err
	}
	v.AddConfigPath(configPath)
	v.SetConfigName(CONFIG_FILE_NAME)
	v.SetConfigType(CONFIG_FILE_EXT)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("could not read config file: %w", err)
	}
	return nil
}

// Load unmarshals the current viper state into a Config.
func Load(v *viper.Viper) (Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return config, nil
}
