package library

// UnknownArtistName is the sentinel artist used when tags carry no
// usable artist at all.
const UnknownArtistName = "Unknown Artist"

const UnknownAlbumTitle = "Unknown Album"

type Artist struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Bio      *string `json:"bio,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

type Album struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	ArtistID   string  `json:"artistId"`
	ArtistName string  `json:"artistName"`
	CoverArt   *string `json:"coverArt,omitempty"`
	Year       *int    `json:"year,omitempty"`
	TrackCount int     `json:"trackCount"`
}

type Track struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	Title       string  `json:"title"`
	ArtistID    string  `json:"artistId"`
	ArtistName  string  `json:"artistName"`
	AlbumID     string  `json:"albumId"`
	AlbumTitle  string  `json:"albumTitle"`
	DurationSec int     `json:"durationSec"`
	TrackNumber *int    `json:"trackNumber,omitempty"`
	DiscNumber  *int    `json:"discNumber,omitempty"`
	Year        *int    `json:"year,omitempty"`
	Genre       *string `json:"genre,omitempty"`
	Bitrate     *int    `json:"bitrate,omitempty"`
	PlayCount   int     `json:"playCount"`
	Liked       bool    `json:"liked"`
}

type Genre struct {
	Name       string `json:"name"`
	TrackCount int    `json:"trackCount"`
}

type Playlist struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Owner      string  `json:"owner"`
	CoverArt   *string `json:"coverArt,omitempty"`
	TrackCount int     `json:"trackCount"`
	CreatedAt  string  `json:"createdAt"`
}

type SearchResult struct {
	Tracks  []Track  `json:"tracks"`
	Albums  []Album  `json:"albums"`
	Artists []Artist `json:"artists"`
}

type Stats struct {
	ArtistCount    int `json:"artistCount"`
	AlbumCount     int `json:"albumCount"`
	TrackCount     int `json:"trackCount"`
	TotalDuration  int `json:"totalDurationSec"`
	AverageBitrate int `json:"averageBitrate"`
}
