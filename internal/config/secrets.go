package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Secrets holds credentials kept out of the main config file.
type Secrets struct {
	OpenAIAPIKey string `toml:"OPENAI_API_KEY"`
}

// LoadSecrets reads a TOML secrets file. A missing file yields empty secrets.
func LoadSecrets(path string) (*Secrets, error) {
	var s Secrets
	if path == "" {
		return &s, nil
	}
	if _, err := toml.DecodeFile(expandHome(path), &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &s, nil
		}
		return nil, fmt.Errorf("secrets %s: %w", path, err)
	}
	return &s, nil
}

// APIKey returns the key from the named environment variable, falling back
// to the secrets file.
func (s *Secrets) APIKey(envName string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	if s == nil {
		return ""
	}
	return s.OpenAIAPIKey
}
