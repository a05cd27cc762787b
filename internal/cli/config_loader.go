package cli

import (
	"errors"
	"log/slog"
	"os"

	"mailfetch/internal/config"
	"mailfetch/internal/imap"
	"mailfetch/internal/logging"
	"mailfetch/internal/secrets"

	"github.com/spf13/cobra"
)

const passwordEnv = "MAILFETCH_AUTH_PASSWORD" //nolint:gosec // env var name, not a credential

// newService is swapped in tests to point the commands at a local server.
var newService = imap.NewService

// loadConfig reads the config file and environment, applies the persistent
// logging flags and resolves the password from env, config or keyring, in
// that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}

	if level := flagString(cmd, "log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format := flagString(cmd, "log-format"); format != "" {
		cfg.Log.Format = format
	}

	if _, ok := os.LookupEnv(passwordEnv); ok {
		cfg.Auth.PasswordSource = "env"
		return cfg, nil
	}

	if cfg.Auth.Password != "" {
		cfg.Auth.PasswordSource = "config"
		return cfg, nil
	}

	if cfg.Auth.Username == "" || cfg.IMAP.Host == "" {
		return cfg, nil
	}

	password, err := secrets.GetPassword(cfg)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return cfg, nil
		}
		return cfg, err
	}

	cfg.Auth.Password = password
	cfg.Auth.PasswordSource = "keyring"
	return cfg, nil
}

// loadIMAPConfig is loadConfig plus the checks every IMAP command needs,
// together with a logger writing to the command's stderr.
func loadIMAPConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	if err := config.ValidateIMAP(cfg); err != nil {
		return cfg, nil, err
	}

	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return cfg, nil, err
	}
	logger.Debug("config loaded",
		"host", cfg.IMAP.Host,
		"port", cfg.IMAP.Port,
		"username", cfg.Auth.Username,
		"password_source", cfg.Auth.PasswordSource,
	)
	return cfg, logger, nil
}

func flagString(cmd *cobra.Command, name string) string {
	flag := cmd.Flag(name)
	if flag == nil {
		return ""
	}
	return flag.Value.String()
}
