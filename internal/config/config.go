package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultMailbox = "INBOX"

type Config struct {
	IMAP           IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	Auth           AuthConfig  `mapstructure:"auth" yaml:"auth"`
	Fetch          FetchConfig `mapstructure:"fetch" yaml:"fetch"`
	Log            LogConfig   `mapstructure:"log" yaml:"log"`
	KeyringBackend string      `mapstructure:"keyring_backend" yaml:"keyring_backend,omitempty"`
}

type IMAPConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	TLS                bool   `mapstructure:"tls" yaml:"tls"`
	StartTLS           bool   `mapstructure:"starttls" yaml:"starttls"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

type AuthConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	// PasswordSource records where Password came from (env, config or keyring).
	PasswordSource string `mapstructure:"-" yaml:"-"`
}

type FetchConfig struct {
	Mailbox    string `mapstructure:"mailbox" yaml:"mailbox"`
	Limit      int    `mapstructure:"limit" yaml:"limit"`
	OnlyUnread bool   `mapstructure:"only_unread" yaml:"only_unread"`
	BestEffort bool   `mapstructure:"best_effort" yaml:"best_effort"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func DefaultConfig() Config {
	return Config{
		IMAP: IMAPConfig{
			Port:     993,
			TLS:      true,
			StartTLS: false,
		},
		Fetch: FetchConfig{
			Mailbox: DefaultMailbox,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func Save(cfg Config) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := EnsureDir(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.Auth.Password != "" {
		masked.Auth.Password = "****"
	}
	return masked
}

// setDefaults registers every key so that AutomaticEnv can override keys
// missing from the config file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("imap.host", cfg.IMAP.Host)
	v.SetDefault("imap.port", cfg.IMAP.Port)
	v.SetDefault("imap.tls", cfg.IMAP.TLS)
	v.SetDefault("imap.starttls", cfg.IMAP.StartTLS)
	v.SetDefault("imap.insecure_skip_verify", cfg.IMAP.InsecureSkipVerify)

	v.SetDefault("auth.username", cfg.Auth.Username)
	v.SetDefault("auth.password", cfg.Auth.Password)

	v.SetDefault("fetch.mailbox", cfg.Fetch.Mailbox)
	v.SetDefault("fetch.limit", cfg.Fetch.Limit)
	v.SetDefault("fetch.only_unread", cfg.Fetch.OnlyUnread)
	v.SetDefault("fetch.best_effort", cfg.Fetch.BestEffort)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("keyring_backend", cfg.KeyringBackend)
}

func ValidateIMAP(cfg Config) error {
	if cfg.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if cfg.IMAP.Port <= 0 || cfg.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port must be between 1 and 65535, got %d", cfg.IMAP.Port)
	}
	if cfg.IMAP.TLS && cfg.IMAP.StartTLS {
		return fmt.Errorf("imap.tls and imap.starttls are mutually exclusive")
	}
	if cfg.Auth.Username == "" {
		return fmt.Errorf("auth.username is required")
	}
	if cfg.Auth.Password == "" {
		return fmt.Errorf("auth.password is required (set it in the keyring with `mailfetch auth login`)")
	}
	if cfg.Fetch.Limit < 0 {
		return fmt.Errorf("fetch.limit must not be negative, got %d", cfg.Fetch.Limit)
	}
	return nil
}
