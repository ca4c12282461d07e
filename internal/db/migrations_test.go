package db

import (
	"path/filepath"
	"testing"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "library.db")

	database, err := Bootstrap(dbPath)
	if err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}

	var applied int
	if err := database.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied == 0 {
		t.Fatalf("no migrations recorded")
	}
	database.Close()

	reopened, err := Bootstrap(dbPath)
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	defer reopened.Close()

	var appliedAgain int
	if err := reopened.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&appliedAgain); err != nil {
		t.Fatalf("recount migrations: %v", err)
	}
	if appliedAgain != applied {
		t.Fatalf("migrations reapplied: %d -> %d", applied, appliedAgain)
	}

	tables := []string{
		"artists", "albums", "tracks", "track_artists", "album_artists",
		"library_roots", "playlists", "playlist_tracks", "scan_found",
	}
	for _, table := range tables {
		var count int
		if err := reopened.QueryRow("SELECT COUNT(1) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("query table %s: %v", table, err)
		}
	}
}

func TestArtistNameUniquenessIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	database, err := Bootstrap(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(
		"INSERT INTO artists(id, name) VALUES (?, ?)",
		"id-1",
		"Foo",
	); err != nil {
		t.Fatalf("insert Foo: %v", err)
	}

	result, err := database.Exec(
		"INSERT OR IGNORE INTO artists(id, name) VALUES (?, ?)",
		"id-2",
		"foo",
	)
	if err != nil {
		t.Fatalf("insert foo: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("rows affected: %v", err)
	}
	if affected != 0 {
		t.Fatalf("case variant insert affected %d rows, want 0", affected)
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(1) FROM artists").Scan(&count); err != nil {
		t.Fatalf("count artists: %v", err)
	}
	if count != 1 {
		t.Fatalf("artist rows = %d, want 1", count)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	t.Parallel()

	database, err := Bootstrap(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer database.Close()

	var enabled int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("read foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d, want 1", enabled)
	}
}
