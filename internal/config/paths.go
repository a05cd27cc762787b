package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppName = "mailfetch"

	// DirEnv overrides the config directory, mainly for tests and containers.
	DirEnv = "MAILFETCH_CONFIG_DIR"
)

// Dir is $MAILFETCH_CONFIG_DIR, or ~/.config/mailfetch.
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home dir: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return ensure(dir, "config dir")
}

// KeyringDir holds the encrypted entries of the keyring "file" backend.
func KeyringDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "keyring"), nil
}

func EnsureKeyringDir() (string, error) {
	dir, err := KeyringDir()
	if err != nil {
		return "", err
	}
	return ensure(dir, "keyring dir")
}

func ensure(dir, what string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ensure %s: %w", what, err)
	}
	return dir, nil
}
