package scanner

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"aria/internal/coverart"
	"aria/internal/db"
	"aria/internal/library"
)

func newScanServiceForTest(t *testing.T) (*Service, *sql.DB, string, *atomic.Int64) {
	t.Helper()

	dir := t.TempDir()
	database, err := db.Bootstrap(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatalf("bootstrap db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	covers, err := coverart.NewStore(filepath.Join(dir, "covers"))
	if err != nil {
		t.Fatalf("new cover store: %v", err)
	}

	root := filepath.Join(dir, "music")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("create music root: %v", err)
	}

	roots := library.NewRootRepository(database)
	if err := roots.Add(context.Background(), root); err != nil {
		t.Fatalf("add root: %v", err)
	}

	service := NewService(database, roots, covers)

	var extracted atomic.Int64
	service.extract = func(path string) (Metadata, error) {
		extracted.Add(1)
		return metadataFromStem(path), nil
	}

	return service, database, root, &extracted
}

// metadataFromStem fakes tag extraction from an
// "Artist - Album - Title" file name so scan tests need no real audio.
func metadataFromStem(path string) Metadata {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, " - ")

	metadata := Metadata{
		Title:       stem,
		Artists:     []string{library.UnknownArtistName},
		Album:       library.UnknownAlbumTitle,
		DurationSec: 180,
	}
	if len(parts) == 3 {
		metadata.Artists = SplitArtists(parts[0])
		metadata.Album = parts[1]
		metadata.Title = parts[2]
	}

	return metadata
}

func writeAudioFile(t *testing.T, root string, name string) string {
	t.Helper()

	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	t.Helper()

	var count int
	if err := database.QueryRow("SELECT COUNT(1) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}

	return count
}

func TestScanIndexesLibrary(t *testing.T) {
	t.Parallel()

	service, database, root, _ := newScanServiceForTest(t)

	writeAudioFile(t, root, "Artist X - Album One - Song A.mp3")
	writeAudioFile(t, root, "Artist X - Album One - Song B.flac")
	collab := writeAudioFile(t, root, "Artist X & Artist Y - Album One - Song C.ogg")
	writeAudioFile(t, root, "notes.txt")

	if err := service.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if got := countRows(t, database, "tracks"); got != 3 {
		t.Fatalf("tracks = %d, want 3", got)
	}
	if got := countRows(t, database, "artists"); got != 2 {
		t.Fatalf("artists = %d, want 2", got)
	}
	if got := countRows(t, database, "albums"); got != 1 {
		t.Fatalf("albums = %d, want 1", got)
	}

	var trackID string
	if err := database.QueryRow(
		"SELECT id FROM tracks WHERE path = ?",
		filepath.Clean(collab),
	).Scan(&trackID); err != nil {
		t.Fatalf("find collab track: %v", err)
	}

	var linked int
	if err := database.QueryRow(
		"SELECT COUNT(1) FROM track_artists WHERE track_id = ?",
		trackID,
	).Scan(&linked); err != nil {
		t.Fatalf("count track artists: %v", err)
	}
	if linked != 2 {
		t.Fatalf("collab track linked to %d artists, want 2", linked)
	}

	status := service.GetStatus()
	if status.Running {
		t.Fatalf("expected scan to be finished")
	}
	if status.LastFilesSeen != 3 {
		t.Fatalf("files seen = %d, want 3", status.LastFilesSeen)
	}
	if status.LastIndexed != 3 {
		t.Fatalf("indexed = %d, want 3", status.LastIndexed)
	}
}

func TestRescanSkipsUnchangedFiles(t *testing.T) {
	t.Parallel()

	service, database, root, extracted := newScanServiceForTest(t)

	path := writeAudioFile(t, root, "Artist X - Album One - Song A.mp3")
	writeAudioFile(t, root, "Artist X - Album One - Song B.mp3")

	ctx := context.Background()
	if err := service.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	var firstID string
	if err := database.QueryRow(
		"SELECT id FROM tracks WHERE path = ?",
		filepath.Clean(path),
	).Scan(&firstID); err != nil {
		t.Fatalf("find track after first scan: %v", err)
	}

	afterFirst := extracted.Load()
	if afterFirst != 2 {
		t.Fatalf("extractions after first scan = %d, want 2", afterFirst)
	}

	if err := service.Scan(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if got := extracted.Load(); got != afterFirst {
		t.Fatalf("unchanged files were re-extracted: %d -> %d", afterFirst, got)
	}
	if got := countRows(t, database, "tracks"); got != 2 {
		t.Fatalf("tracks after rescan = %d, want 2", got)
	}

	var secondID string
	if err := database.QueryRow(
		"SELECT id FROM tracks WHERE path = ?",
		filepath.Clean(path),
	).Scan(&secondID); err != nil {
		t.Fatalf("find track after second scan: %v", err)
	}
	if firstID != secondID {
		t.Fatalf("track id changed across rescans: %q vs %q", firstID, secondID)
	}
}

func TestScanRemovesDeletedTracks(t *testing.T) {
	t.Parallel()

	service, database, root, _ := newScanServiceForTest(t)

	keep := writeAudioFile(t, root, "Artist X - Album One - Song A.mp3")
	remove := writeAudioFile(t, root, "Artist X - Album One - Song B.mp3")

	ctx := context.Background()
	if err := service.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if got := countRows(t, database, "tracks"); got != 2 {
		t.Fatalf("tracks after first scan = %d, want 2", got)
	}

	if err := os.Remove(remove); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	if err := service.Scan(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if got := countRows(t, database, "tracks"); got != 1 {
		t.Fatalf("tracks after deletion = %d, want 1", got)
	}

	var remaining string
	if err := database.QueryRow("SELECT path FROM tracks").Scan(&remaining); err != nil {
		t.Fatalf("read remaining track: %v", err)
	}
	if remaining != filepath.Clean(keep) {
		t.Fatalf("remaining track = %q, want %q", remaining, filepath.Clean(keep))
	}
}

func TestScanTreatsRenameAsDeleteAndInsert(t *testing.T) {
	t.Parallel()

	service, database, root, _ := newScanServiceForTest(t)

	oldPath := writeAudioFile(t, root, "Artist X - Album One - Song A.mp3")
	newPath := filepath.Join(root, "Artist X - Album One - Song A (remaster).mp3")

	ctx := context.Background()
	if err := service.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename file: %v", err)
	}

	if err := service.Scan(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if got := countRows(t, database, "tracks"); got != 1 {
		t.Fatalf("tracks after rename = %d, want 1", got)
	}

	var path string
	if err := database.QueryRow("SELECT path FROM tracks").Scan(&path); err != nil {
		t.Fatalf("read track path: %v", err)
	}
	if path != filepath.Clean(newPath) {
		t.Fatalf("track path = %q, want %q", path, filepath.Clean(newPath))
	}
}

func TestScanWithoutRootsCompletes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	database, err := db.Bootstrap(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatalf("bootstrap db: %v", err)
	}
	defer database.Close()

	covers, err := coverart.NewStore(filepath.Join(dir, "covers"))
	if err != nil {
		t.Fatalf("new cover store: %v", err)
	}

	service := NewService(database, library.NewRootRepository(database), covers)
	if err := service.Scan(context.Background()); err != nil {
		t.Fatalf("scan with no roots: %v", err)
	}
}
