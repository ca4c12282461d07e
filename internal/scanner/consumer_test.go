package scanner

import (
	"context"
	"path/filepath"
	"testing"

	"aria/internal/coverart"
	"aria/internal/db"
)

func TestFlushTracksCountsOnlyCommittedBatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	database, err := db.Bootstrap(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatalf("bootstrap db: %v", err)
	}

	covers, err := coverart.NewStore(filepath.Join(dir, "covers"))
	if err != nil {
		t.Fatalf("new cover store: %v", err)
	}

	ctx := context.Background()
	resolver := NewResolver(database, covers)
	artistID, err := resolver.ResolveArtist(ctx, "Artist A")
	if err != nil {
		t.Fatalf("resolve artist: %v", err)
	}
	albumID, err := resolver.ResolveAlbum(ctx, "Album", artistID, []string{artistID}, nil)
	if err != nil {
		t.Fatalf("resolve album: %v", err)
	}

	consumer := newScanConsumer(database, resolver)
	consumer.pendingTracks = append(consumer.pendingTracks, pendingTrack{
		path:      "/music/song.mp3",
		metadata:  Metadata{Title: "Song"},
		artistIDs: []string{artistID},
		albumID:   albumID,
		mtime:     1,
	})

	consumer.flushTracks(ctx)
	if consumer.indexed != 1 {
		t.Fatalf("indexed after committed flush = %d, want 1", consumer.indexed)
	}

	// A batch that cannot even begin its transaction must not count.
	database.Close()
	consumer.pendingTracks = append(consumer.pendingTracks, pendingTrack{
		path:      "/music/other.mp3",
		metadata:  Metadata{Title: "Other"},
		artistIDs: []string{artistID},
		albumID:   albumID,
		mtime:     1,
	})

	consumer.flushTracks(ctx)
	if consumer.indexed != 1 {
		t.Fatalf("indexed after failed flush = %d, want 1", consumer.indexed)
	}
	if len(consumer.pendingTracks) != 0 {
		t.Fatalf("pending tracks not cleared after failed flush")
	}
}
