package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvLoader loads environment variables from a .env file so that local
// deployments keep secrets out of the config file.
type EnvLoader struct {
	loaded bool
	path   string
}

// NewEnvLoader creates an environment loader.
func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// Load finds and loads a .env file from the current directory or a parent.
// Missing files are not an error; env vars may be set by the environment.
func (e *EnvLoader) Load() error {
	if e.loaded {
		return nil
	}

	envPath, err := findEnvFile()
	if err != nil {
		return nil
	}
	e.path = envPath

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	e.loaded = true
	return nil
}

// Path returns the path of the loaded .env file, if any.
func (e *EnvLoader) Path() string {
	return e.path
}

// findEnvFile walks up from the working directory looking for a .env file.
func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf(".env not found")
		}
		dir = parent
	}
}
