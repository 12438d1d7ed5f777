package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HomeEnvVar overrides the cache root used for git-hosted scope documents.
const HomeEnvVar = "ENVR_HOME"

// ResolveHome returns $ENVR_HOME, falling back to ~/.envr.
func ResolveHome() (string, error) {
	if env := strings.TrimSpace(os.Getenv(HomeEnvVar)); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", HomeEnvVar, err)
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".envr"), nil
}
