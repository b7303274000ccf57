package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/loan-formulas/internal/config"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string               `yaml:"address"`
	MaxBodySize   string               `yaml:"maxBodySize"`
	ReadTimeout   string               `yaml:"readTimeout"`
	WriteTimeout  string               `yaml:"writeTimeout"`
	Logging       config.LoggingConfig `yaml:"logging"`
	bodySizeBytes int64
	readTimeout   time.Duration
	writeTimeout  time.Duration
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Address:       constants.DefaultServerAddress,
		MaxBodySize:   strconv.FormatInt(constants.DefaultMaxBodySizeBytes, 10),
		ReadTimeout:   defaultReadTimeout.String(),
		WriteTimeout:  defaultWriteTimeout.String(),
		bodySizeBytes: constants.DefaultMaxBodySizeBytes,
		readTimeout:   defaultReadTimeout,
		writeTimeout:  defaultWriteTimeout,
	}
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BodySizeBytes returns the maximum request body size in bytes.
func (c *Config) BodySizeBytes() int64 {
	return c.bodySizeBytes
}

// SetBodySizeBytes overrides the maximum request body size.
func (c *Config) SetBodySizeBytes(size int64) {
	if size > 0 {
		c.bodySizeBytes = size
		c.MaxBodySize = strconv.FormatInt(size, 10)
	}
}

// ReadTimeoutDuration returns the limit for reading a whole request.
func (c *Config) ReadTimeoutDuration() time.Duration {
	return c.readTimeout
}

// WriteTimeoutDuration returns the limit for writing a response.
func (c *Config) WriteTimeoutDuration() time.Duration {
	return c.writeTimeout
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = constants.DefaultServerAddress
	}

	size, err := ParseSize(c.MaxBodySize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxBodySizeBytes
	}
	c.bodySizeBytes = size

	if c.readTimeout, err = parseTimeout("readTimeout", c.ReadTimeout, defaultReadTimeout); err != nil {
		return err
	}
	if c.writeTimeout, err = parseTimeout("writeTimeout", c.WriteTimeout, defaultWriteTimeout); err != nil {
		return err
	}
	return nil
}

func parseTimeout(field, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "1.5MB")
// into bytes. Units are binary multiples.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return constants.DefaultMaxBodySizeBytes, nil
	}

	upper := strings.ToUpper(trimmed)
	idx := len(upper)
	for idx > 0 && !unicode.IsDigit(rune(upper[idx-1])) {
		idx--
	}
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	numPart := strings.TrimSpace(upper[:idx])
	unitPart := strings.TrimSpace(upper[idx:])

	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size value %q", value)
	}

	var multiplier float64
	switch unitPart {
	case "", "B":
		multiplier = 1
	case "K", "KB", "KIB":
		multiplier = 1 << 10
	case "M", "MB", "MIB":
		multiplier = 1 << 20
	case "G", "GB", "GIB":
		multiplier = 1 << 30
	default:
		return 0, fmt.Errorf("unsupported size unit %q", unitPart)
	}

	result := n * multiplier
	if result > math.MaxInt64 {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return int64(result), nil
}
