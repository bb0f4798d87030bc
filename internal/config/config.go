package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported account store backends
const (
	StoreRedis  = "redis"
	StoreBadger = "badger"
	StoreMongo  = "mongodb"
)

// Config holds all application configuration
type Config struct {
	// Chat settings
	SlackToken string `yaml:"slack_token"`

	// Chain client settings
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	ClientPath string        `yaml:"client_path"`

	// Account store settings
	StoreType string `yaml:"store_type"`
	StoreConn string `yaml:"store_conn"`

	// Bot behaviour
	MaxInFlight      int    `yaml:"max_in_flight"`
	PullRequestAward uint64 `yaml:"pull_request_award"`
	ProvisionOnSight bool   `yaml:"provision_on_sight"`

	// Monitoring, disabled when empty
	MetricsAddr string `yaml:"metrics_addr"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Timeout:          2000 * time.Millisecond,
		ClientPath:       "bin/orbs-json-client",
		StoreType:        StoreRedis,
		StoreConn:        "redis://localhost:6379/0",
		MaxInFlight:      8,
		PullRequestAward: 100,
		ProvisionOnSight: true,
	}
}

// LoadFile overrides the current values with the ones present in a YAML file.
// Keys missing from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if token := os.Getenv("SLACK_TOKEN"); token != "" {
		c.SlackToken = token
	}

	if endpoint := os.Getenv("ORBS_API_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}

	if timeout := os.Getenv("TRANSACTION_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			c.Timeout = time.Duration(t) * time.Millisecond
		}
	}

	if clientPath := os.Getenv("ORBS_JSON_CLIENT_PATH"); clientPath != "" {
		c.ClientPath = clientPath
	}

	if storeType := os.Getenv("CHAINBOT_STORE_TYPE"); storeType != "" {
		c.StoreType = strings.ToLower(storeType)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" && c.StoreType == StoreRedis {
		c.StoreConn = redisURL
	}

	if storeConn := os.Getenv("CHAINBOT_STORE_CONN"); storeConn != "" {
		c.StoreConn = storeConn
	}

	if addr := os.Getenv("CHAINBOT_METRICS_ADDR"); addr != "" {
		c.MetricsAddr = addr
	}

	if inFlight := os.Getenv("CHAINBOT_MAX_IN_FLIGHT"); inFlight != "" {
		if n, err := strconv.Atoi(inFlight); err == nil {
			c.MaxInFlight = n
		}
	}

	if award := os.Getenv("CHAINBOT_PULL_REQUEST_AWARD"); award != "" {
		if a, err := strconv.ParseUint(award, 10, 64); err == nil {
			c.PullRequestAward = a
		}
	}

	if onSight := os.Getenv("CHAINBOT_PROVISION_ON_SIGHT"); onSight != "" {
		if b, err := strconv.ParseBool(onSight); err == nil {
			c.ProvisionOnSight = b
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ClientPath == "" {
		return fmt.Errorf("chain client path cannot be empty")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("transaction timeout must be positive, got: %s", c.Timeout)
	}

	switch c.StoreType {
	case StoreRedis, StoreBadger, StoreMongo:
	default:
		return fmt.Errorf("unknown store type %q", c.StoreType)
	}

	if c.StoreConn == "" {
		return fmt.Errorf("store connection cannot be empty")
	}

	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max in flight messages must be positive, got: %d", c.MaxInFlight)
	}

	return nil
}

// ValidateSlack checks the settings only the Slack transport needs
func (c *Config) ValidateSlack() error {
	if c.SlackToken == "" {
		return fmt.Errorf("slack token cannot be empty, set SLACK_TOKEN")
	}
	return nil
}
