package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrPlaylistNotFound = errors.New("playlist not found")

type PlaylistRepository struct {
	db *sql.DB
}

func NewPlaylistRepository(database *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: database}
}

func (r *PlaylistRepository) Create(ctx context.Context, name string) (Playlist, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Playlist{}, errors.New("playlist name is required")
	}

	id := uuid.NewString()
	if _, err := r.db.ExecContext(
		ctx,
		"INSERT INTO playlists(id, name) VALUES (?, ?)",
		id,
		trimmed,
	); err != nil {
		return Playlist{}, fmt.Errorf("insert playlist: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *PlaylistRepository) GetByID(ctx context.Context, id string) (Playlist, error) {
	var playlist Playlist
	var coverArt sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT
			p.id,
			p.name,
			p.owner,
			p.cover_art,
			(SELECT COUNT(1) FROM playlist_tracks WHERE playlist_id = p.id),
			p.created_at
		FROM playlists p
		WHERE p.id = ?`,
		id,
	).Scan(
		&playlist.ID,
		&playlist.Name,
		&playlist.Owner,
		&coverArt,
		&playlist.TrackCount,
		&playlist.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Playlist{}, ErrPlaylistNotFound
		}
		return Playlist{}, fmt.Errorf("get playlist %s: %w", id, err)
	}

	playlist.CoverArt = nullableString(coverArt)
	return playlist, nil
}

func (r *PlaylistRepository) List(ctx context.Context) ([]Playlist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			p.id,
			p.name,
			p.owner,
			p.cover_art,
			(SELECT COUNT(1) FROM playlist_tracks WHERE playlist_id = p.id),
			p.created_at
		FROM playlists p
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]Playlist, 0)
	for rows.Next() {
		var playlist Playlist
		var coverArt sql.NullString
		if err := rows.Scan(
			&playlist.ID,
			&playlist.Name,
			&playlist.Owner,
			&coverArt,
			&playlist.TrackCount,
			&playlist.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan playlist row: %w", err)
		}
		playlist.CoverArt = nullableString(coverArt)
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist rows: %w", err)
	}

	return playlists, nil
}

func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete playlist %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted playlist count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPlaylistNotFound
	}

	return nil
}

func (r *PlaylistRepository) AddTrack(ctx context.Context, playlistID string, trackID string) error {
	var maxPosition sql.NullInt64
	if err := r.db.QueryRowContext(
		ctx,
		"SELECT MAX(position) FROM playlist_tracks WHERE playlist_id = ?",
		playlistID,
	).Scan(&maxPosition); err != nil {
		return fmt.Errorf("read playlist position %s: %w", playlistID, err)
	}

	if _, err := r.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO playlist_tracks(playlist_id, track_id, position) VALUES (?, ?, ?)",
		playlistID,
		trackID,
		maxPosition.Int64+1,
	); err != nil {
		return fmt.Errorf("add track to playlist %s: %w", playlistID, err)
	}

	return nil
}

func (r *PlaylistRepository) RemoveTrack(ctx context.Context, playlistID string, trackID string) error {
	if _, err := r.db.ExecContext(
		ctx,
		"DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?",
		playlistID,
		trackID,
	); err != nil {
		return fmt.Errorf("remove track from playlist %s: %w", playlistID, err)
	}

	return nil
}

func (r *PlaylistRepository) Tracks(ctx context.Context, playlistID string) ([]Track, error) {
	query := `
	SELECT
		t.id,
		t.path,
		t.title,
		COALESCE(t.artist_id, '') AS artist_id,
		COALESCE(a.name, '') AS artist_name,
		COALESCE(t.album_id, '') AS album_id,
		COALESCE(al.title, '') AS album_title,
		COALESCE(t.duration_sec, 0) AS duration_sec,
		t.track_number,
		t.disc_number,
		t.year,
		t.genre,
		t.bitrate,
		t.play_count,
		t.liked
	FROM playlist_tracks pt
	JOIN tracks t ON pt.track_id = t.id
	LEFT JOIN artists a ON t.artist_id = a.id
	LEFT JOIN albums al ON t.album_id = al.id
	WHERE pt.playlist_id = ?
	ORDER BY pt.position ASC`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list playlist tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}
