package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	BaseDir   string
	DBPath    string
	CoversDir string
}

func ResolvePaths(appSlug string) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}

	return ResolvePathsIn(filepath.Join(configDir, appSlug))
}

func ResolvePathsIn(baseDir string) (Paths, error) {
	coversDir := filepath.Join(baseDir, "covers")
	dbPath := filepath.Join(baseDir, "library.db")

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create data dir: %w", err)
	}

	if err := os.MkdirAll(coversDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create covers dir: %w", err)
	}

	return Paths{
		BaseDir:   baseDir,
		DBPath:    dbPath,
		CoversDir: coversDir,
	}, nil
}
