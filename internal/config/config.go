// Package config loads and validates the webhook dispatcher's settings:
// the bind address, the worker pool size, authentication secrets, optional
// TLS material, and the webhook catalogue.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Webhook is one catalogue entry: immutable after load.
type Webhook struct {
	Name              string `mapstructure:"name" validate:"required"`
	Command           string `mapstructure:"command" validate:"required"`
	Cwd               string `mapstructure:"cwd"`
	ModeName          string `mapstructure:"mode"`
	ParallelProcesses int    `mapstructure:"parallel_processes"`

	// Mode is the parsed, validated form of ModeName. Populated by
	// (*Config).normalize, not by viper.
	Mode Mode `mapstructure:"-"`
}

// Config is the process-wide, read-only configuration. Safe to share
// behind a pointer once loaded: nothing mutates it after LoadConfig
// returns.
type Config struct {
	Domain string `mapstructure:"domain" validate:"required"`
	Port   int    `mapstructure:"port" validate:"min=1,max=65535"`
	Workers int   `mapstructure:"workers" validate:"gte=0"`

	Secret             string `mapstructure:"secret"`
	BasicAuthUser      string `mapstructure:"basic_auth_user"`
	BasicAuthPassword  string `mapstructure:"basic_auth_password"`
	BasicAuthAndSecret bool   `mapstructure:"basic_auth_and_secret"`

	SSLCertChain  string `mapstructure:"ssl_cert_chain"`
	SSLPrivateKey string `mapstructure:"ssl_private_key"`

	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"gte=0"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst" validate:"gte=0"`

	Log LogConfig `mapstructure:"log"`

	Webhooks []Webhook `mapstructure:"webhooks"`
}

// LogConfig mirrors pkg/logger.Config; kept here so it round-trips through
// viper with the rest of the document.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SSLEnabled reports whether both halves of the TLS material are present.
// There is deliberately no separate boolean flag for this — presence of
// both paths is the signal, matching the original implementation.
func (c *Config) SSLEnabled() bool {
	return c.SSLCertChain != "" && c.SSLPrivateKey != ""
}

// WebhookByName resolves a catalogue entry by name.
func (c *Config) WebhookByName(name string) (*Webhook, bool) {
	for i := range c.Webhooks {
		if c.Webhooks[i].Name == name {
			return &c.Webhooks[i], true
		}
	}
	return nil, false
}

// DefaultConfigPaths returns the platform-dependent search list from §6,
// in priority order. The first existing path wins.
func DefaultConfigPaths() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		return []string{
			filepath.Join(appData, "webhook_server", "webhook_server.yml"),
			filepath.Join(home, ".config", "webhook_server.yml"),
			"webhook_server.yml",
		}
	case "darwin":
		return []string{
			"/etc/webhook_server.yml",
			filepath.Join(home, "Library", "Application Support", "webhook_server.yml"),
			filepath.Join(home, ".config", "webhook_server.yml"),
			"webhook_server.yml",
		}
	default:
		return []string{
			"/etc/webhook_server.yml",
			filepath.Join(home, ".config", "webhook_server.yml"),
			"webhook_server.yml",
		}
	}
}

// firstExisting returns the first path in paths that exists on disk, or ""
// if none do.
func firstExisting(paths []string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("domain", "127.0.0.1")
	v.SetDefault("port", 8000)
	v.SetDefault("workers", 8)
	v.SetDefault("basic_auth_and_secret", false)
	v.SetDefault("rate_limit_per_minute", 120)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

// LoadConfig loads configuration from the first existing of
// DefaultConfigPaths (or an explicit path, if configPath is non-empty),
// layering environment variable overrides on top, and validates the
// result. explicit config path, if given, must exist.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("webhookd")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	path := configPath
	if path == "" {
		path = firstExisting(DefaultConfigPaths())
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// normalize fills in per-webhook defaults and parses the free-form mode
// string into the closed Mode type. The string form is confined to this
// boundary; everything past it uses Mode.
func (c *Config) normalize() error {
	seen := make(map[string]bool, len(c.Webhooks))
	for i := range c.Webhooks {
		wh := &c.Webhooks[i]
		if seen[wh.Name] {
			return fmt.Errorf("duplicate webhook name %q", wh.Name)
		}
		seen[wh.Name] = true

		mode, ok := ParseMode(wh.ModeName)
		if !ok {
			return fmt.Errorf("webhook %q: invalid mode %q (must be single, deploy or parallel)", wh.Name, wh.ModeName)
		}
		wh.Mode = mode
		wh.ModeName = mode.String()

		if wh.ParallelProcesses <= 0 {
			wh.ParallelProcesses = 8
		}
	}
	return nil
}

// Validate checks structural constraints (via go-playground/validator)
// plus the cross-field rules from §6: basic-auth user/password must come
// as a pair, and basic_auth_and_secret requires all three credentials.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	hasUser := c.BasicAuthUser != ""
	hasPassword := c.BasicAuthPassword != ""
	if hasUser != hasPassword {
		return fmt.Errorf("basic_auth_user and basic_auth_password must be set together")
	}

	if c.BasicAuthAndSecret {
		if c.Secret == "" || !hasUser || !hasPassword {
			return fmt.Errorf("basic_auth_and_secret requires secret, basic_auth_user and basic_auth_password all to be set")
		}
	}

	if c.SSLCertChain != "" && c.SSLPrivateKey == "" {
		return fmt.Errorf("ssl_private_key must be set alongside ssl_cert_chain")
	}
	if c.SSLPrivateKey != "" && c.SSLCertChain == "" {
		return fmt.Errorf("ssl_cert_chain must be set alongside ssl_private_key")
	}

	for _, wh := range c.Webhooks {
		if wh.Mode == ModeParallel && wh.ParallelProcesses <= 0 {
			return fmt.Errorf("webhook %q: parallel_processes must be positive", wh.Name)
		}
	}

	return nil
}
