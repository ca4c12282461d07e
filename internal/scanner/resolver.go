package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"aria/internal/coverart"
)

// Resolver maps artist names and album keys to stable catalog ids,
// creating entities on first sight. Lookups race against concurrent
// writers, so creation is an optimistic INSERT OR IGNORE followed by a
// re-select when another writer won.
type Resolver struct {
	db     *sql.DB
	covers *coverart.Store

	artistCache map[string]string
	albumCache  map[string]string
}

func NewResolver(database *sql.DB, covers *coverart.Store) *Resolver {
	return &Resolver{
		db:          database,
		covers:      covers,
		artistCache: make(map[string]string),
		albumCache:  make(map[string]string),
	}
}

// ResolveArtist returns the id for an artist name, inserting the artist
// when it does not exist yet. Names are matched case-insensitively.
func (r *Resolver) ResolveArtist(ctx context.Context, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("artist name is empty")
	}

	cacheKey := strings.ToLower(trimmed)
	if id, ok := r.artistCache[cacheKey]; ok {
		return id, nil
	}

	var id string
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id FROM artists WHERE name = ? COLLATE NOCASE",
		trimmed,
	).Scan(&id)
	if err == nil {
		r.artistCache[cacheKey] = id
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup artist %q: %w", trimmed, err)
	}

	newID := uuid.NewString()
	result, err := r.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO artists(id, name) VALUES (?, ?)",
		newID,
		trimmed,
	)
	if err != nil {
		return "", fmt.Errorf("insert artist %q: %w", trimmed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("read inserted artist count: %w", err)
	}
	if rowsAffected > 0 {
		r.artistCache[cacheKey] = newID
		return newID, nil
	}

	// A concurrent writer inserted the same name first; take its id.
	if err := r.db.QueryRowContext(
		ctx,
		"SELECT id FROM artists WHERE name = ? COLLATE NOCASE",
		trimmed,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("reselect artist %q: %w", trimmed, err)
	}

	r.artistCache[cacheKey] = id
	return id, nil
}

// ResolveAlbum returns the id for (title, primary artist), inserting the
// album when absent, and links every contributing artist to it. Cover
// art is persisted once on first sight; a failed write leaves the album
// without art.
func (r *Resolver) ResolveAlbum(
	ctx context.Context,
	title string,
	primaryArtistID string,
	allArtistIDs []string,
	cover *CoverImage,
) (string, error) {
	cacheKey := primaryArtistID + "::" + title
	if id, ok := r.albumCache[cacheKey]; ok {
		if err := r.linkAlbumArtists(ctx, id, allArtistIDs); err != nil {
			return "", err
		}
		return id, nil
	}

	albumID, err := r.resolveAlbumID(ctx, title, primaryArtistID, cover)
	if err != nil {
		return "", err
	}

	if err := r.linkAlbumArtists(ctx, albumID, allArtistIDs); err != nil {
		return "", err
	}

	r.albumCache[cacheKey] = albumID
	return albumID, nil
}

func (r *Resolver) resolveAlbumID(
	ctx context.Context,
	title string,
	primaryArtistID string,
	cover *CoverImage,
) (string, error) {
	var id string
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id FROM albums WHERE title = ? AND artist_id = ?",
		title,
		primaryArtistID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup album %q: %w", title, err)
	}

	var coverFilename any
	if cover != nil && r.covers != nil {
		filename, saveErr := r.covers.Save(cover.Data, cover.MIME)
		if saveErr != nil {
			log.Warn().Err(saveErr).Str("album", title).Msg("failed to save cover art")
		} else {
			coverFilename = filename
		}
	}

	newID := uuid.NewString()
	result, err := r.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO albums(id, title, artist_id, cover_art) VALUES (?, ?, ?, ?)",
		newID,
		title,
		primaryArtistID,
		coverFilename,
	)
	if err != nil {
		return "", fmt.Errorf("insert album %q: %w", title, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("read inserted album count: %w", err)
	}
	if rowsAffected > 0 {
		return newID, nil
	}

	if err := r.db.QueryRowContext(
		ctx,
		"SELECT id FROM albums WHERE title = ? AND artist_id = ?",
		title,
		primaryArtistID,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("reselect album %q: %w", title, err)
	}

	return id, nil
}

func (r *Resolver) linkAlbumArtists(ctx context.Context, albumID string, artistIDs []string) error {
	for _, artistID := range artistIDs {
		if _, err := r.db.ExecContext(
			ctx,
			"INSERT OR IGNORE INTO album_artists(album_id, artist_id) VALUES (?, ?)",
			albumID,
			artistID,
		); err != nil {
			return fmt.Errorf("link album artist: %w", err)
		}
	}

	return nil
}
