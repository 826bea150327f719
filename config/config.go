package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhoover/coderoom/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultLogLevel       = "INFO"
	defaultCacheSize      = 128
	defaultSaveDebounce   = time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultSweepSpec      = "@every 10s"
	defaultExecutionURL   = "https://ce.judge0.com"
)

// Config is the global configuration object which is filled via the configuration file
type Config struct {
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	EditorConfig      EditorConfig      `mapstructure:"editor"`
	BrokerConfig      BrokerConfig      `mapstructure:"broker"`
	ExecutionConfig   ExecutionConfig   `mapstructure:"execution"`
	LogLevel          string            `mapstructure:"log_level"`
}

// PersistenceConfig selects the storage backend. Type is one of "sqlite",
// "postgres", "buntdb", "mongo" or "memory" (empty means memory). The choice is
// made once at startup; an unreachable backend degrades to memory, there is no
// runtime failover.
type PersistenceConfig struct {
	Type      string      `mapstructure:"type"`
	DSN       string      `mapstructure:"dsn"`
	CacheSize int         `mapstructure:"cache_size"`
	Mongo     MongoConfig `mapstructure:"mongo"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// EditorConfig configures document handling. SaveDebounce is the quiet period
// after the last save-document event before content is written to the store.
type EditorConfig struct {
	SaveDebounce time.Duration `mapstructure:"save_debounce"`
}

// BrokerConfig configures the file-request broker. RequestTimeout bounds how
// long a forwarded file request may stay unanswered before the requester gets
// an error, SweepSpec is the cron spec of the expiry sweep.
type BrokerConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SweepSpec      string        `mapstructure:"sweep_spec"`
}

// ExecutionConfig configures the external code execution service.
type ExecutionConfig struct {
	URL string `mapstructure:"url"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("log-level", "l", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", defaultLogLevel)
	viper.SetDefault("persistence.cache_size", defaultCacheSize)
	viper.SetDefault("editor.save_debounce", defaultSaveDebounce)
	viper.SetDefault("broker.request_timeout", defaultRequestTimeout)
	viper.SetDefault("broker.sweep_spec", defaultSweepSpec)
	viper.SetDefault("execution.url", defaultExecutionURL)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("CODEROOM")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}
