package config

import (
	"os"
	"path/filepath"
)

// FindWorkspaceRoot walks up from the working directory looking for a .maml
// directory, then a go.mod. Falls back to the working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findWorkspaceRootFrom(dir), nil
}

func findWorkspaceRootFrom(dir string) string {
	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, WorkspaceDir)); err == nil {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return originalDir
}
