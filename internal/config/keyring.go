package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "CLAWarden"

	// KeyringForgeTokenItem is the key for the forge API token
	KeyringForgeTokenItem = "forge-token"
)

// KeyringManager stores the forge credential in the OS keychain:
// Keychain Access on macOS, Credential Manager on Windows, Secret Service
// on Linux (requires libsecret).
type KeyringManager struct {
	logger *logrus.Logger
}

// NewKeyringManager creates a keyring manager.
func NewKeyringManager(logger *logrus.Logger) *KeyringManager {
	return &KeyringManager{logger: logger}
}

// SaveForgeToken stores the forge token in the OS keychain.
func (km *KeyringManager) SaveForgeToken(token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringForgeTokenItem, token); err != nil {
		km.logger.WithError(err).Error("failed to save forge token to keychain")
		return fmt.Errorf("save to OS keychain: %w", err)
	}

	km.logger.WithField("service", KeyringService).Info("forge token saved to keychain")
	return nil
}

// GetForgeToken retrieves the forge token, preferring the keychain and
// falling back to the GITHUB_TOKEN environment variable.
func (km *KeyringManager) GetForgeToken() (string, error) {
	token, err := keyring.Get(KeyringService, KeyringForgeTokenItem)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && err != keyring.ErrNotFound {
		km.logger.WithError(err).Debug("keychain lookup failed, trying environment")
	}

	if env := os.Getenv("GITHUB_TOKEN"); env != "" {
		return env, nil
	}

	return "", fmt.Errorf("no forge token in keychain or GITHUB_TOKEN")
}

// DeleteForgeToken removes the stored token.
func (km *KeyringManager) DeleteForgeToken() error {
	err := keyring.Delete(KeyringService, KeyringForgeTokenItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete from OS keychain: %w", err)
	}

	km.logger.Info("forge token removed from keychain")
	return nil
}
