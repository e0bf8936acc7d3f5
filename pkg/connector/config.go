// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Defaults applied by PostProcess when a value is missing.
const (
	DefaultListenAddr       = ":5000"
	DefaultWebhookPath      = "/pusher-webhooks"
	DefaultBatchConcurrency = 4
	DefaultHTTPTimeout      = 30
	DefaultBatchTimeout     = 600
)

// Config holds the sync service configuration.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	WebhookPath   string `yaml:"webhook_path"`
	WebhookSecret string `yaml:"webhook_secret"`

	Chatkit ChatkitConfig `yaml:"chatkit"`
	Stream  StreamConfig  `yaml:"stream"`
	Cache   CacheConfig   `yaml:"cache"`

	BatchConcurrency int    `yaml:"batch_concurrency"`
	ScratchDir       string `yaml:"scratch_dir"`
	// HTTPTimeoutSeconds bounds remote calls made by the platform clients.
	HTTPTimeoutSeconds int `yaml:"http_timeout"`
	// BatchTimeoutSeconds is how long a webhook delivery may take to answer,
	// and how long shutdown waits for batches still running.
	BatchTimeoutSeconds int `yaml:"batch_timeout"`

	Logging zeroconfig.Config `yaml:"logging"`
}

// ChatkitConfig holds the source platform credentials.
type ChatkitConfig struct {
	InstanceLocator string `yaml:"instance_locator"`
	Key             string `yaml:"key"`
	BaseURL         string `yaml:"base_url"`
}

// StreamConfig holds the destination platform credentials.
type StreamConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// CacheConfig holds the entity cache capacities.
type CacheConfig struct {
	Rooms int `yaml:"rooms"`
	Users int `yaml:"users"`
}

// ConfigError lists every required setting that is missing. The process must
// not serve traffic with such a config.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// ApplyEnv overrides credentials with the environment variables the service
// has always honoured.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Chatkit.InstanceLocator, "CHATKIT_INSTANCE")
	override(&c.Chatkit.Key, "CHATKIT_KEY")
	override(&c.Stream.APIKey, "STREAM_API_KEY")
	override(&c.Stream.APISecret, "STREAM_API_SECRET")
	override(&c.WebhookSecret, "WEBHOOK_SECRET")
	override(&c.ListenAddr, "SYNC_LISTEN_ADDR")
}

// PostProcess fills in defaults for unset values.
func (c *Config) PostProcess() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.WebhookPath == "" {
		c.WebhookPath = DefaultWebhookPath
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		c.WebhookPath = "/" + c.WebhookPath
	}
	if c.Cache.Rooms <= 0 {
		c.Cache.Rooms = DefaultCacheCapacity
	}
	if c.Cache.Users <= 0 {
		c.Cache.Users = DefaultCacheCapacity
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
	if c.HTTPTimeoutSeconds <= 0 {
		c.HTTPTimeoutSeconds = DefaultHTTPTimeout
	}
	if c.BatchTimeoutSeconds <= 0 {
		c.BatchTimeoutSeconds = DefaultBatchTimeout
	}
}

// Validate reports all missing credentials at once.
func (c *Config) Validate() error {
	var missing []string
	check := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	check(c.Chatkit.InstanceLocator, "chatkit.instance_locator (CHATKIT_INSTANCE)")
	check(c.Chatkit.Key, "chatkit.key (CHATKIT_KEY)")
	check(c.Stream.APIKey, "stream.api_key (STREAM_API_KEY)")
	check(c.Stream.APISecret, "stream.api_secret (STREAM_API_SECRET)")
	check(c.WebhookSecret, "webhook_secret (WEBHOOK_SECRET)")
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Concurrency is the number of batch items processed at once.
func (c *Config) Concurrency() int {
	if c.BatchConcurrency <= 0 {
		return 1
	}
	return c.BatchConcurrency
}

// HTTPTimeout is the timeout for a single remote call.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return DefaultHTTPTimeout * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// BatchTimeout bounds the time spent answering one webhook delivery.
func (c *Config) BatchTimeout() time.Duration {
	if c.BatchTimeoutSeconds <= 0 {
		return DefaultBatchTimeout * time.Second
	}
	return time.Duration(c.BatchTimeoutSeconds) * time.Second
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "listen_addr")
	helper.Copy(up.Str, "webhook_path")
	helper.Copy(up.Str, "webhook_secret")
	helper.Copy(up.Str, "chatkit", "instance_locator")
	helper.Copy(up.Str, "chatkit", "key")
	helper.Copy(up.Str, "chatkit", "base_url")
	helper.Copy(up.Str, "stream", "api_key")
	helper.Copy(up.Str, "stream", "api_secret")
	helper.Copy(up.Str, "stream", "base_url")
	helper.Copy(up.Int, "cache", "rooms")
	helper.Copy(up.Int, "cache", "users")
	helper.Copy(up.Int, "batch_concurrency")
	helper.Copy(up.Str, "scratch_dir")
	helper.Copy(up.Int, "http_timeout")
	helper.Copy(up.Int, "batch_timeout")
	helper.Copy(up.Map, "logging")
}

// Upgrader returns the upgrader that merges an existing config file into the
// current example config.
func Upgrader() up.BaseUpgrader {
	return &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks:         nil,
		Base:           ExampleConfig,
	}
}

// ParseConfig decodes YAML config data, applies environment overrides and
// defaults, and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()
	cfg.PostProcess()
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// LoadConfig reads the config at path, upgrading it to the current format
// (and writing the upgrade back when save is set). A missing file falls back
// to the example config so the service can run from environment variables
// alone.
func LoadConfig(path string, save bool) (*Config, error) {
	data := []byte(ExampleConfig)
	if _, err := os.Stat(path); err == nil {
		data, _, err = up.Do(path, save, Upgrader())
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}
	return ParseConfig(data)
}
