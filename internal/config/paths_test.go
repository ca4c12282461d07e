package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathsIn(t *testing.T) {
	t.Parallel()

	baseDir := filepath.Join(t.TempDir(), "aria")
	paths, err := ResolvePathsIn(baseDir)
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.BaseDir != baseDir {
		t.Fatalf("base dir = %q, want %q", paths.BaseDir, baseDir)
	}
	if paths.DBPath != filepath.Join(baseDir, "library.db") {
		t.Fatalf("db path = %q", paths.DBPath)
	}
	if paths.CoversDir != filepath.Join(baseDir, "covers") {
		t.Fatalf("covers dir = %q", paths.CoversDir)
	}

	for _, dir := range []string{paths.BaseDir, paths.CoversDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
}
