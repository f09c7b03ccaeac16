package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AdminToken returns the bearer token protecting admin endpoints.
// The FOOODIS_ADMIN_TOKEN env var wins; otherwise a token is generated once
// and persisted to <dataDir>/admin_token with 0600 permissions.
func AdminToken(dataDir string) (string, error) {
	if t := os.Getenv("FOOODIS_ADMIN_TOKEN"); t != "" {
		return t, nil
	}

	path := filepath.Join(dataDir, "admin_token")
	if data, err := os.ReadFile(path); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token, nil
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating admin token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing admin token: %w", err)
	}
	return token, nil
}
