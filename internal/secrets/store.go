// Package secrets keeps IMAP passwords in the OS keyring, falling back to an
// encrypted file keyring where no system keyring is reachable.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"mailfetch/internal/config"
)

const (
	keyringPasswordEnv = "MAILFETCH_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential
	keyringBackendEnv  = "MAILFETCH_KEYRING_BACKEND"  //nolint:gosec // env var name, not a credential

	backendAuto     = "auto"
	backendKeychain = "keychain"
	backendFile     = "file"

	SourceEnv     = "env"
	SourceConfig  = "config"
	SourceDefault = "default"
)

// keyringOpenTimeout bounds keyring.Open on headless Linux, where D-Bus
// SecretService can hang when gnome-keyring is installed but not running.
const keyringOpenTimeout = 5 * time.Second

var (
	ErrSecretNotFound        = errors.New("secret not found")
	errMissingAccount        = errors.New("missing imap host or username")
	errMissingPassword       = errors.New("missing password")
	errNoTTY                 = errors.New("no TTY available for keyring file backend password prompt")
	errInvalidKeyringBackend = errors.New("invalid keyring backend")
	errKeyringTimeout        = errors.New("keyring connection timed out")

	// test hooks
	openKeyringFunc = openKeyring
	keyringOpenFunc = keyring.Open
)

// Backend is the resolved keyring backend and where the choice came from.
type Backend struct {
	Value  string
	Source string
}

// ResolveBackend picks the backend from the environment, then from the
// configured value, then "auto".
func ResolveBackend(configured string) Backend {
	if v := normalize(os.Getenv(keyringBackendEnv)); v != "" {
		return Backend{Value: v, Source: SourceEnv}
	}
	if v := normalize(configured); v != "" {
		return Backend{Value: v, Source: SourceConfig}
	}
	return Backend{Value: backendAuto, Source: SourceDefault}
}

func (b Backend) allowed() ([]keyring.BackendType, error) {
	switch b.Value {
	case "", backendAuto:
		return nil, nil
	case backendKeychain:
		return []keyring.BackendType{keyring.KeychainBackend}, nil
	case backendFile:
		return []keyring.BackendType{keyring.FileBackend}, nil
	default:
		return nil, fmt.Errorf("%w: %q from %s (expected %s, %s or %s)",
			errInvalidKeyringBackend, b.Value, b.Source, backendAuto, backendKeychain, backendFile)
	}
}

// forceFile reports whether "auto" must be narrowed to the file backend
// because no D-Bus session is available.
func (b Backend) forceFile(goos, dbusAddr string) bool {
	return goos == "linux" && b.Value == backendAuto && dbusAddr == ""
}

func (b Backend) needsTimeout(goos, dbusAddr string) bool {
	return goos == "linux" && b.Value == backendAuto && dbusAddr != ""
}

func filePasswordFunc(password string, passwordSet bool, isTTY bool) keyring.PromptFunc {
	// An empty passphrase set on purpose is valid.
	if passwordSet {
		return keyring.FixedStringPrompt(password)
	}
	if isTTY {
		return keyring.TerminalPrompt
	}
	return func(string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, keyringPasswordEnv)
	}
}

func openKeyring(configured string) (keyring.Keyring, error) {
	dir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, err
	}

	backend := ResolveBackend(configured)
	backends, err := backend.allowed()
	if err != nil {
		return nil, err
	}

	dbusAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if backend.forceFile(runtime.GOOS, dbusAddr) {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	password, passwordSet := os.LookupEnv(keyringPasswordEnv)
	cfg := keyring.Config{
		ServiceName:              config.AppName,
		KeychainTrustApplication: false,
		AllowedBackends:          backends,
		FileDir:                  dir,
		FilePasswordFunc:         filePasswordFunc(password, passwordSet, term.IsTerminal(int(os.Stdin.Fd()))),
	}

	if backend.needsTimeout(runtime.GOOS, dbusAddr) {
		return openWithTimeout(cfg, keyringOpenTimeout)
	}

	ring, err := keyringOpenFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ring, nil
}

func openWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	type result struct {
		ring keyring.Keyring
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		ring, err := keyringOpenFunc(cfg)
		ch <- result{ring, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}
		return res.ring, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v (D-Bus SecretService may be unresponsive); "+
			"set %s=file and %s=<password> to use encrypted file storage instead",
			errKeyringTimeout, timeout, keyringBackendEnv, keyringPasswordEnv)
	}
}

// GetPassword reads the IMAP password of the account configured in cfg.
func GetPassword(cfg config.Config) (string, error) {
	key, err := passwordKey(cfg)
	if err != nil {
		return "", err
	}

	ring, err := openKeyringFunc(cfg.KeyringBackend)
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrSecretNotFound
		}
		return "", wrapKeychainError(fmt.Errorf("read secret: %w", err))
	}
	return string(item.Data), nil
}

func SetPassword(cfg config.Config, password string) error {
	key, err := passwordKey(cfg)
	if err != nil {
		return err
	}
	if password == "" {
		return errMissingPassword
	}

	ring, err := openKeyringFunc(cfg.KeyringBackend)
	if err != nil {
		return err
	}

	item := keyring.Item{Key: key, Data: []byte(password), Label: config.AppName}
	if err := ring.Set(item); err != nil {
		return wrapKeychainError(fmt.Errorf("store secret: %w", err))
	}
	return nil
}

// DeletePassword removes the stored password; a missing entry is not an error.
func DeletePassword(cfg config.Config) error {
	key, err := passwordKey(cfg)
	if err != nil {
		return err
	}

	ring, err := openKeyringFunc(cfg.KeyringBackend)
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return wrapKeychainError(fmt.Errorf("remove secret: %w", err))
	}
	return nil
}

func passwordKey(cfg config.Config) (string, error) {
	user := normalize(cfg.Auth.Username)
	host := normalize(cfg.IMAP.Host)
	if user == "" || host == "" {
		return "", errMissingAccount
	}
	return fmt.Sprintf("imap:password:%s@%s", user, host), nil
}

// wrapKeychainError adds unlock instructions to macOS locked-keychain errors.
func wrapKeychainError(err error) error {
	if err == nil || !isKeychainLocked(err.Error()) {
		return err
	}
	return fmt.Errorf("%w\n\nYour macOS keychain is locked. To unlock it, run:\n  security unlock-keychain ~/Library/Keychains/login.keychain-db", err)
}

func isKeychainLocked(msg string) bool {
	// errSecInteractionNotAllowed (-25308) is what a locked keychain reports.
	return strings.Contains(msg, "-25308") || strings.Contains(strings.ToLower(msg), "user interaction is not allowed")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
