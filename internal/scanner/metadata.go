package scanner

import (
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.senan.xyz/taglib"

	"aria/internal/library"
)

var leadingIntegerPattern = regexp.MustCompile(`\d+`)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// artistDelimiters are checked in this order; each occurrence collapses
// to a single separator before splitting.
var artistDelimiters = []string{" feat. ", " ft. ", " & ", " / ", ", "}

type CoverImage struct {
	Data []byte
	MIME string
}

// Metadata is one audio file's normalized tag record.
type Metadata struct {
	Title       string
	Artists     []string
	AlbumArtist string
	Album       string
	DurationSec int
	TrackNumber *int
	DiscNumber  *int
	Year        *int
	Genre       string
	Bitrate     *int
	Cover       *CoverImage
}

// ParseFile reads the file's tags into a Metadata record. A file whose
// container cannot be decoded at all is a parse error; missing
// individual fields are not.
func ParseFile(path string) (Metadata, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read tags %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	metadata := Metadata{
		Title:   stem,
		Artists: []string{library.UnknownArtistName},
		Album:   library.UnknownAlbumTitle,
	}

	if value := firstTagValue(tags, taglib.Title, "TITLE"); value != "" {
		metadata.Title = value
	}
	if value := firstTagValue(tags, taglib.Artist, "ARTIST"); value != "" {
		if artists := SplitArtists(value); len(artists) > 0 {
			metadata.Artists = artists
		}
	}
	if value := firstTagValue(tags, taglib.AlbumArtist, "ALBUMARTIST"); value != "" {
		metadata.AlbumArtist = value
	}
	if value := firstTagValue(tags, taglib.Album, "ALBUM"); value != "" {
		metadata.Album = value
	}
	if value := firstTagValue(tags, taglib.Genre, "GENRE"); value != "" {
		metadata.Genre = value
	}

	metadata.TrackNumber = parseNumericTag(firstTagValue(tags, taglib.TrackNumber, "TRACKNUMBER", "TRCK"))
	metadata.DiscNumber = parseNumericTag(firstTagValue(tags, taglib.DiscNumber, "DISCNUMBER", "TPOS"))
	metadata.Year = parseYearTag(firstTagValue(tags, taglib.Date, "DATE", "YEAR", "ORIGINALDATE", "RELEASEDATE"))

	if properties, propErr := taglib.ReadProperties(path); propErr == nil {
		if seconds := int(properties.Length.Seconds()); seconds > 0 {
			metadata.DurationSec = seconds
		}
		if properties.Bitrate > 0 {
			bitrate := int(properties.Bitrate)
			metadata.Bitrate = &bitrate
		}
	}

	if image, imageErr := taglib.ReadImage(path); imageErr == nil && len(image) > 0 {
		metadata.Cover = &CoverImage{
			Data: image,
			MIME: http.DetectContentType(image),
		}
	}

	if len(metadata.Artists) == 1 && metadata.Artists[0] == library.UnknownArtistName {
		applyFilenameFallback(&metadata, stem)
	}

	return metadata, nil
}

// applyFilenameFallback infers artist/album/title from an
// "Artist - Album - Title" or "Artist - Title" file name when tags
// carry no usable artist.
func applyFilenameFallback(metadata *Metadata, stem string) {
	parts := strings.Split(stem, " - ")
	switch len(parts) {
	case 3:
		if artists := SplitArtists(parts[0]); len(artists) > 0 {
			metadata.Artists = artists
		}
		if album := strings.TrimSpace(parts[1]); album != "" {
			metadata.Album = album
		}
		if title := strings.TrimSpace(parts[2]); title != "" {
			metadata.Title = title
		}
	case 2:
		if artists := SplitArtists(parts[0]); len(artists) > 0 {
			metadata.Artists = artists
		}
		if title := strings.TrimSpace(parts[1]); title != "" {
			metadata.Title = title
		}
	}
}

// SplitArtists breaks a raw artist tag into individual artist names.
func SplitArtists(raw string) []string {
	for _, delimiter := range artistDelimiters {
		raw = strings.ReplaceAll(raw, delimiter, ";")
	}

	parts := strings.Split(raw, ";")
	artists := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			artists = append(artists, trimmed)
		}
	}

	return artists
}

func firstTagValue(tags map[string][]string, keys ...string) string {
	for _, key := range keys {
		values, ok := tags[key]
		if !ok {
			continue
		}
		for _, value := range values {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}

func parseNumericTag(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	match := leadingIntegerPattern.FindString(trimmed)
	if match == "" {
		return nil
	}

	parsed, err := strconv.Atoi(match)
	if err != nil || parsed <= 0 {
		return nil
	}

	return &parsed
}

func parseYearTag(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	match := yearPattern.FindString(trimmed)
	if match == "" {
		if fallback := parseNumericTag(trimmed); fallback != nil {
			if *fallback >= 1000 && *fallback <= 3000 {
				return fallback
			}
		}
		return nil
	}

	parsed, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}

	return &parsed
}
