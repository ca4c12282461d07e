package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrArtistNotFound = errors.New("artist not found")

var ErrAlbumNotFound = errors.New("album not found")

var ErrTrackNotFound = errors.New("track not found")

const searchResultLimit = 20

const trackSelect = `
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
	FROM tracks t
	LEFT JOIN artists a ON t.artist_id = a.id
	LEFT JOIN albums al ON t.album_id = al.id`

const albumSelect = `
	SELECT
		al.id,
		al.title,
		COALESCE(al.artist_id, '') AS artist_id,
		COALESCE(ar.name, '') AS artist_name,
		al.cover_art,
		al.year,
		(SELECT COUNT(1) FROM tracks WHERE album_id = al.id) AS track_count
	FROM albums al
	LEFT JOIN artists ar ON al.artist_id = ar.id`

type BrowseRepository struct {
	db *sql.DB
}

func NewBrowseRepository(database *sql.DB) *BrowseRepository {
	return &BrowseRepository{db: database}
}

func (r *BrowseRepository) GetArtist(ctx context.Context, id string) (Artist, error) {
	var artist Artist
	var bio sql.NullString
	var imageURL sql.NullString
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, name, bio, image_url FROM artists WHERE id = ?",
		id,
	).Scan(&artist.ID, &artist.Name, &bio, &imageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artist{}, ErrArtistNotFound
		}
		return Artist{}, fmt.Errorf("get artist %s: %w", id, err)
	}

	artist.Bio = nullableString(bio)
	artist.ImageURL = nullableString(imageURL)
	return artist, nil
}

func (r *BrowseRepository) GetAlbum(ctx context.Context, id string) (Album, error) {
	row := r.db.QueryRowContext(ctx, albumSelect+" WHERE al.id = ?", id)
	album, err := scanAlbum(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Album{}, ErrAlbumNotFound
		}
		return Album{}, fmt.Errorf("get album %s: %w", id, err)
	}

	return album, nil
}

func (r *BrowseRepository) GetTrack(ctx context.Context, id string) (Track, error) {
	row := r.db.QueryRowContext(ctx, trackSelect+" WHERE t.id = ?", id)
	track, err := scanTrack(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Track{}, ErrTrackNotFound
		}
		return Track{}, fmt.Errorf("get track %s: %w", id, err)
	}

	return track, nil
}

func (r *BrowseRepository) ArtistAlbums(ctx context.Context, artistID string) ([]Album, error) {
	query := albumSelect + `
	JOIN album_artists aa ON al.id = aa.album_id
	WHERE aa.artist_id = ?
	ORDER BY al.year DESC, al.title COLLATE NOCASE`

	rows, err := r.db.QueryContext(ctx, query, artistID)
	if err != nil {
		return nil, fmt.Errorf("list artist albums: %w", err)
	}
	defer rows.Close()

	return collectAlbums(rows)
}

func (r *BrowseRepository) AlbumTracks(ctx context.Context, albumID string) ([]Track, error) {
	query := trackSelect + `
	WHERE t.album_id = ?
	ORDER BY t.disc_number ASC, t.track_number ASC, t.title COLLATE NOCASE`

	rows, err := r.db.QueryContext(ctx, query, albumID)
	if err != nil {
		return nil, fmt.Errorf("list album tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

func (r *BrowseRepository) RecentAlbums(ctx context.Context, limit int) ([]Album, error) {
	rows, err := r.db.QueryContext(
		ctx,
		albumSelect+" ORDER BY al.created_at DESC LIMIT ?",
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent albums: %w", err)
	}
	defer rows.Close()

	return collectAlbums(rows)
}

func (r *BrowseRepository) RandomAlbums(ctx context.Context, limit int) ([]Album, error) {
	rows, err := r.db.QueryContext(
		ctx,
		albumSelect+" ORDER BY RANDOM() LIMIT ?",
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list random albums: %w", err)
	}
	defer rows.Close()

	return collectAlbums(rows)
}

func (r *BrowseRepository) MostPlayedTracks(ctx context.Context, limit int) ([]Track, error) {
	query := trackSelect + `
	WHERE t.play_count > 0
	ORDER BY t.play_count DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list most played tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

func (r *BrowseRepository) FavoriteTracks(ctx context.Context) ([]Track, error) {
	query := trackSelect + `
	WHERE t.liked = 1
	ORDER BY t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list favorite tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

func (r *BrowseRepository) Genres(ctx context.Context) ([]Genre, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT genre, COUNT(1) AS track_count
		FROM tracks
		WHERE genre IS NOT NULL AND genre != ''
		GROUP BY genre
		ORDER BY track_count DESC, genre COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	genres := make([]Genre, 0)
	for rows.Next() {
		var genre Genre
		if err := rows.Scan(&genre.Name, &genre.TrackCount); err != nil {
			return nil, fmt.Errorf("scan genre row: %w", err)
		}
		genres = append(genres, genre)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genre rows: %w", err)
	}

	return genres, nil
}

func (r *BrowseRepository) GenreTracks(ctx context.Context, genre string) ([]Track, error) {
	query := trackSelect + `
	WHERE t.genre = ?
	ORDER BY t.play_count DESC, t.title COLLATE NOCASE`

	rows, err := r.db.QueryContext(ctx, query, genre)
	if err != nil {
		return nil, fmt.Errorf("list genre tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

func (r *BrowseRepository) Search(ctx context.Context, term string) (SearchResult, error) {
	pattern := makeSearchPattern(term)
	result := SearchResult{
		Tracks:  make([]Track, 0),
		Albums:  make([]Album, 0),
		Artists: make([]Artist, 0),
	}
	if pattern == "" {
		return result, nil
	}

	trackQuery := trackSelect + `
	WHERE LOWER(t.title) LIKE ? OR LOWER(a.name) LIKE ?
	ORDER BY t.title COLLATE NOCASE LIMIT ?`

	trackRows, err := r.db.QueryContext(ctx, trackQuery, pattern, pattern, searchResultLimit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search tracks: %w", err)
	}
	defer trackRows.Close()

	if result.Tracks, err = collectTracks(trackRows); err != nil {
		return SearchResult{}, err
	}

	albumQuery := albumSelect + `
	WHERE LOWER(al.title) LIKE ? OR LOWER(ar.name) LIKE ?
	ORDER BY al.title COLLATE NOCASE LIMIT ?`

	albumRows, err := r.db.QueryContext(ctx, albumQuery, pattern, pattern, searchResultLimit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search albums: %w", err)
	}
	defer albumRows.Close()

	if result.Albums, err = collectAlbums(albumRows); err != nil {
		return SearchResult{}, err
	}

	artistRows, err := r.db.QueryContext(
		ctx,
		`SELECT id, name, bio, image_url FROM artists
		 WHERE LOWER(name) LIKE ?
		 ORDER BY name COLLATE NOCASE LIMIT ?`,
		pattern,
		searchResultLimit,
	)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search artists: %w", err)
	}
	defer artistRows.Close()

	for artistRows.Next() {
		var artist Artist
		var bio sql.NullString
		var imageURL sql.NullString
		if err := artistRows.Scan(&artist.ID, &artist.Name, &bio, &imageURL); err != nil {
			return SearchResult{}, fmt.Errorf("scan artist row: %w", err)
		}
		artist.Bio = nullableString(bio)
		artist.ImageURL = nullableString(imageURL)
		result.Artists = append(result.Artists, artist)
	}

	if err := artistRows.Err(); err != nil {
		return SearchResult{}, fmt.Errorf("iterate artist rows: %w", err)
	}

	return result, nil
}

func (r *BrowseRepository) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM artists),
			(SELECT COUNT(1) FROM albums),
			(SELECT COUNT(1) FROM tracks),
			(SELECT COALESCE(SUM(duration_sec), 0) FROM tracks),
			(SELECT CAST(COALESCE(AVG(bitrate), 0) AS INTEGER) FROM tracks WHERE bitrate IS NOT NULL)
	`).Scan(
		&stats.ArtistCount,
		&stats.AlbumCount,
		&stats.TrackCount,
		&stats.TotalDuration,
		&stats.AverageBitrate,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("read library stats: %w", err)
	}

	return stats, nil
}

func (r *BrowseRepository) SetTrackLiked(ctx context.Context, id string, liked bool) error {
	likedInt := 0
	if liked {
		likedInt = 1
	}

	result, err := r.db.ExecContext(
		ctx,
		"UPDATE tracks SET liked = ? WHERE id = ?",
		likedInt,
		id,
	)
	if err != nil {
		return fmt.Errorf("update track liked %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read liked track count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTrackNotFound
	}

	return nil
}

func (r *BrowseRepository) IncrementPlayCount(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(
		ctx,
		"UPDATE tracks SET play_count = play_count + 1 WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("increment play count %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read played track count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTrackNotFound
	}

	return nil
}

func (r *BrowseRepository) TrackPath(ctx context.Context, id string) (string, error) {
	var path string
	err := r.db.QueryRowContext(ctx, "SELECT path FROM tracks WHERE id = ?", id).Scan(&path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTrackNotFound
		}
		return "", fmt.Errorf("get track path %s: %w", id, err)
	}

	return path, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (Track, error) {
	var track Track
	var trackNumber sql.NullInt64
	var discNumber sql.NullInt64
	var year sql.NullInt64
	var genre sql.NullString
	var bitrate sql.NullInt64
	var likedInt int

	err := row.Scan(
		&track.ID,
		&track.Path,
		&track.Title,
		&track.ArtistID,
		&track.ArtistName,
		&track.AlbumID,
		&track.AlbumTitle,
		&track.DurationSec,
		&trackNumber,
		&discNumber,
		&year,
		&genre,
		&bitrate,
		&track.PlayCount,
		&likedInt,
	)
	if err != nil {
		return Track{}, err
	}

	track.TrackNumber = nullableInt(trackNumber)
	track.DiscNumber = nullableInt(discNumber)
	track.Year = nullableInt(year)
	track.Genre = nullableString(genre)
	track.Bitrate = nullableInt(bitrate)
	track.Liked = likedInt == 1
	return track, nil
}

func scanAlbum(row rowScanner) (Album, error) {
	var album Album
	var coverArt sql.NullString
	var year sql.NullInt64

	err := row.Scan(
		&album.ID,
		&album.Title,
		&album.ArtistID,
		&album.ArtistName,
		&coverArt,
		&year,
		&album.TrackCount,
	)
	if err != nil {
		return Album{}, err
	}

	album.CoverArt = nullableString(coverArt)
	album.Year = nullableInt(year)
	return album, nil
}

func collectTracks(rows *sql.Rows) ([]Track, error) {
	tracks := make([]Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track rows: %w", err)
	}

	return tracks, nil
}

func collectAlbums(rows *sql.Rows) ([]Album, error) {
	albums := make([]Album, 0)
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scan album row: %w", err)
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album rows: %w", err)
	}

	return albums, nil
}

func makeSearchPattern(term string) string {
	trimmed := strings.ToLower(strings.TrimSpace(term))
	if trimmed == "" {
		return ""
	}

	return "%" + trimmed + "%"
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 24
	}
	if limit > 200 {
		return 200
	}

	return limit
}

func nullableInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}

	converted := int(value.Int64)
	return &converted
}

func nullableString(value sql.NullString) *string {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil
	}

	return &value.String
}
