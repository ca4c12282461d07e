package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"aria/internal/library"
)

// scanConsumer is the single writer for a scan run. It receives
// classified files from the walk, resolves artists and albums, and
// commits catalog writes in batched transactions. A failed batch is
// logged and dropped; the scan carries on with the next one.
type scanConsumer struct {
	db       *sql.DB
	resolver *Resolver

	pendingTracks []pendingTrack
	pendingFound  []string
	indexed       int
}

type pendingTrack struct {
	path      string
	metadata  Metadata
	artistIDs []string
	albumID   string
	mtime     int64
}

func newScanConsumer(database *sql.DB, resolver *Resolver) *scanConsumer {
	return &scanConsumer{
		db:            database,
		resolver:      resolver,
		pendingTracks: make([]pendingTrack, 0, trackBatchSize),
		pendingFound:  make([]string, 0, foundBatchSize),
	}
}

func (c *scanConsumer) run(ctx context.Context, results <-chan scanResult) {
	for result := range results {
		if result.metadata == nil {
			c.pendingFound = append(c.pendingFound, result.path)
			if len(c.pendingFound) >= foundBatchSize {
				c.flushFound(ctx)
			}
			continue
		}

		c.process(ctx, result)
	}

	c.flushTracks(ctx)
	c.flushFound(ctx)
}

func (c *scanConsumer) process(ctx context.Context, result scanResult) {
	metadata := *result.metadata

	artistIDs := make([]string, 0, len(metadata.Artists))
	for _, name := range metadata.Artists {
		id, err := c.resolver.ResolveArtist(ctx, name)
		if err != nil {
			log.Error().Err(err).Str("artist", name).Msg("failed to resolve artist")
			continue
		}
		artistIDs = append(artistIDs, id)
	}

	if len(artistIDs) == 0 {
		id, err := c.resolver.ResolveArtist(ctx, library.UnknownArtistName)
		if err != nil {
			log.Error().Err(err).Str("path", result.path).Msg("failed to resolve fallback artist")
			return
		}
		artistIDs = append(artistIDs, id)
	}

	albumArtistName := strings.TrimSpace(metadata.AlbumArtist)
	if albumArtistName == "" && len(metadata.Artists) > 0 {
		albumArtistName = metadata.Artists[0]
	}
	if albumArtistName == "" {
		albumArtistName = library.UnknownArtistName
	}

	albumArtistID, err := c.resolver.ResolveArtist(ctx, albumArtistName)
	if err != nil {
		albumArtistID = artistIDs[0]
	}

	albumTitle := strings.TrimSpace(metadata.Album)
	if albumTitle == "" {
		albumTitle = library.UnknownAlbumTitle
	}

	albumID, err := c.resolver.ResolveAlbum(ctx, albumTitle, albumArtistID, artistIDs, metadata.Cover)
	if err != nil {
		log.Error().Err(err).Str("album", albumTitle).Msg("failed to resolve album")
		return
	}

	c.pendingFound = append(c.pendingFound, result.path)
	c.pendingTracks = append(c.pendingTracks, pendingTrack{
		path:      result.path,
		metadata:  metadata,
		artistIDs: artistIDs,
		albumID:   albumID,
		mtime:     result.mtime,
	})

	if len(c.pendingTracks) >= trackBatchSize {
		c.flushTracks(ctx)
	}
	if len(c.pendingFound) >= foundBatchSize {
		c.flushFound(ctx)
	}
}

func (c *scanConsumer) flushTracks(ctx context.Context) {
	if len(c.pendingTracks) == 0 {
		return
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin track batch")
		c.pendingTracks = c.pendingTracks[:0]
		return
	}

	succeeded := 0
	for _, pending := range c.pendingTracks {
		if err := upsertTrack(ctx, tx, pending); err != nil {
			log.Error().Err(err).Str("path", pending.path).Msg("failed to upsert track")
			continue
		}
		succeeded++
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("failed to commit track batch")
	} else {
		c.indexed += succeeded
	}
	c.pendingTracks = c.pendingTracks[:0]
}

func (c *scanConsumer) flushFound(ctx context.Context) {
	if len(c.pendingFound) == 0 {
		return
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin found batch")
		c.pendingFound = c.pendingFound[:0]
		return
	}

	for _, path := range c.pendingFound {
		if _, err := tx.ExecContext(
			ctx,
			"INSERT OR IGNORE INTO scan_found(path) VALUES (?)",
			path,
		); err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to mark path as found")
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("failed to commit found batch")
	}
	c.pendingFound = c.pendingFound[:0]
}

// upsertTrack inserts or refreshes one track row by path and rebuilds
// its artist links. The existing row id survives updates so playback
// references stay valid across rescans.
func upsertTrack(ctx context.Context, tx *sql.Tx, pending pendingTrack) error {
	metadata := pending.metadata

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO tracks(
			id,
			path,
			title,
			artist_id,
			album_id,
			duration_sec,
			track_number,
			disc_number,
			year,
			genre,
			bitrate,
			mtime
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			artist_id = excluded.artist_id,
			album_id = excluded.album_id,
			duration_sec = excluded.duration_sec,
			track_number = excluded.track_number,
			disc_number = excluded.disc_number,
			year = excluded.year,
			genre = excluded.genre,
			bitrate = excluded.bitrate,
			mtime = excluded.mtime`,
		uuid.NewString(),
		pending.path,
		metadata.Title,
		pending.artistIDs[0],
		pending.albumID,
		metadata.DurationSec,
		nullableInt(metadata.TrackNumber),
		nullableInt(metadata.DiscNumber),
		nullableInt(metadata.Year),
		nullableString(metadata.Genre),
		nullableInt(metadata.Bitrate),
		pending.mtime,
	); err != nil {
		return fmt.Errorf("upsert track row: %w", err)
	}

	var trackID string
	if err := tx.QueryRowContext(
		ctx,
		"SELECT id FROM tracks WHERE path = ?",
		pending.path,
	).Scan(&trackID); err != nil {
		return fmt.Errorf("read track id: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		"DELETE FROM track_artists WHERE track_id = ?",
		trackID,
	); err != nil {
		return fmt.Errorf("clear track artists: %w", err)
	}

	for _, artistID := range pending.artistIDs {
		if _, err := tx.ExecContext(
			ctx,
			"INSERT OR IGNORE INTO track_artists(track_id, artist_id) VALUES (?, ?)",
			trackID,
			artistID,
		); err != nil {
			return fmt.Errorf("link track artist: %w", err)
		}
	}

	return nil
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableString(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	return trimmed
}
