package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "harborseal"

	// APIKeyName is both the keyring entry name and the environment
	// variable consulted before the keyring.
	APIKeyName = "HARBORSEAL_API_KEY"
)

// ErrNotFound indicates that a requested secret was not found in the keyring.
var ErrNotFound = errors.New("secret not found")

// GetSecret retrieves the named secret from the system keyring.
func GetSecret(name string) (string, error) {
	secret, err := keyring.Get(serviceName, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read secret %q: %w", name, err)
	}
	return secret, nil
}

func SetSecret(name, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("secret %q cannot be empty", name)
	}
	if err := keyring.Set(serviceName, name, trimmed); err != nil {
		return fmt.Errorf("store secret %q: %w", name, err)
	}
	return nil
}

func DeleteSecret(name string) error {
	if err := keyring.Delete(serviceName, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete secret %q: %w", name, err)
	}
	return nil
}

// HasSecret reports whether the named secret exists in the keyring.
func HasSecret(name string) (bool, error) {
	_, err := GetSecret(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Convenience helpers for the model-service API key.
func GetAPIKey() (string, error) { return GetSecret(APIKeyName) }

func SetAPIKey(key string) error { return SetSecret(APIKeyName, key) }

func DeleteAPIKey() error { return DeleteSecret(APIKeyName) }

// ResolveAPIKey returns the model-service API key, checking the environment
// first, then the supplied config value, then the OS keyring. Returns an
// empty string when nothing is set.
func ResolveAPIKey(configKey string) string {
	if key := strings.TrimSpace(os.Getenv(APIKeyName)); key != "" {
		return key
	}
	if configKey != "" {
		return configKey
	}
	key, err := GetAPIKey()
	if err != nil {
		return ""
	}
	return key
}
