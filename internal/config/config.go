// Package config defines the data structures related to configuration and
// includes functions for loading, parsing and validating the config.
package config

import (
	"fmt"
	"io"
	"time"

	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/validation"
	"github.com/spf13/viper"
)

// DateTimeLayout is the format expected for schedule start dates and is also
// the due date output format.
const DateTimeLayout = constants.DateTimeLayout

// Configuration holds all configuration for loan-formulas.
type Configuration struct {
	Logging  LoggingConfig     `yaml:"logging,omitempty"`
	Output   OutputConfig      `yaml:"output,omitempty"`
	Catalog  CatalogConfig     `yaml:"catalog,omitempty"`
	Formulas []formula.Formula `yaml:"formulas,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, xlsx, pdf
}

// CatalogConfig selects where formulas are read from.
type CatalogConfig struct {
	Source      string      `yaml:"source,omitempty"`      // memory, postgres
	DatabaseURL string      `yaml:"databaseURL,omitempty"` // also DATABASE_URL
	AutoMigrate bool        `yaml:"autoMigrate,omitempty"` // create tables on start
	Redis       RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig enables the formula cache when Address is set.
type RedisConfig struct {
	Address  string        `yaml:"address,omitempty"` // also REDIS_ADDR
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"` // e.g. 5m
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("catalog.source", constants.CatalogSourceMemory)
	v.SetDefault("catalog.redis.ttl", time.Duration(constants.DefaultCacheTTLSeconds)*time.Second)

	_ = v.BindEnv("catalog.databaseURL", "DATABASE_URL")
	_ = v.BindEnv("catalog.redis.address", "REDIS_ADDR")
	_ = v.BindEnv("catalog.redis.password", "REDIS_PASSWORD")
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	v.SetConfigType("yml")

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %s", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	err := v.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, fmt.Sprintf("Output format: %v", err))
	}

	switch c.Catalog.Source {
	case constants.CatalogSourceMemory:
		if len(c.Formulas) == 0 {
			warnings = append(warnings, "Memory catalog has no formulas configured")
		}
	case constants.CatalogSourcePostgres:
		if c.Catalog.DatabaseURL == "" {
			warnings = append(warnings, "Postgres catalog selected but no databaseURL or DATABASE_URL is set")
		}
		if len(c.Formulas) > 0 {
			warnings = append(warnings, "Formulas in the config file are ignored by the postgres catalog")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown catalog source '%s'", c.Catalog.Source))
	}

	if c.Catalog.Redis.Address != "" && c.Catalog.Redis.TTL <= 0 {
		warnings = append(warnings, "Redis cache TTL must be positive; entries will not expire")
	}

	validator := validation.CatalogValidator{Formulas: c.Formulas}
	warnings = append(warnings, validator.ValidateAll()...)

	return warnings
}
