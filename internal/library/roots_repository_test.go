package library

import (
	"context"
	"errors"
	"testing"
)

func TestRootRepository(t *testing.T) {
	t.Parallel()

	database := newCatalogForTest(t)
	repo := NewRootRepository(database)
	ctx := context.Background()

	if err := repo.Add(ctx, "/music/flac"); err != nil {
		t.Fatalf("add root: %v", err)
	}
	// Re-adding the same path is a no-op.
	if err := repo.Add(ctx, "/music/flac/"); err != nil {
		t.Fatalf("re-add root: %v", err)
	}
	if err := repo.Add(ctx, "/music/archive"); err != nil {
		t.Fatalf("add second root: %v", err)
	}

	roots, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list roots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("roots = %v, want 2 entries", roots)
	}
	if roots[0] != "/music/archive" || roots[1] != "/music/flac" {
		t.Fatalf("roots out of order: %v", roots)
	}

	if err := repo.Remove(ctx, "/music/flac"); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	if err := repo.Remove(ctx, "/music/flac"); !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("second remove err = %v, want ErrRootNotFound", err)
	}

	if err := repo.Add(ctx, "   "); err == nil {
		t.Fatalf("expected error for blank root path")
	}
}
