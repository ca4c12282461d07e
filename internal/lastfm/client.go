package lastfm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"aria/internal/library"
)

const apiRoot = "https://ws.audioscrobbler.com/2.0/"

// enrichConcurrency caps concurrent artist lookups per run.
const enrichConcurrency = 20

const maxAttempts = 3

// maxRateLimitWaits bounds how often a single lookup sits out a 429
// before giving up, so a throttled API cannot stall a synchronous scan
// indefinitely.
const maxRateLimitWaits = 3

var errRateLimited = errors.New("last.fm rate limited")

type Image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type Bio struct {
	Summary string `json:"summary"`
	Content string `json:"content"`
}

type ArtistInfo struct {
	Name  string  `json:"name"`
	URL   string  `json:"url"`
	Image []Image `json:"image"`
	Bio   *Bio    `json:"bio"`
}

type artistInfoResponse struct {
	Artist *ArtistInfo `json:"artist"`
}

// Client fetches artist metadata from the Last.fm API. It is used as a
// post-scan enrichment step to backfill artist bios and images; it
// never participates in the scan itself.
type Client struct {
	db      *sql.DB
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter

	baseURL       string
	retryDelay    time.Duration
	rateLimitWait time.Duration
}

func NewClient(database *sql.DB, apiKey string) *Client {
	return &Client{
		db:            database,
		apiKey:        strings.TrimSpace(apiKey),
		http:          &http.Client{Timeout: 15 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(5), 1),
		baseURL:       apiRoot,
		retryDelay:    500 * time.Millisecond,
		rateLimitWait: 5 * time.Second,
	}
}

// EnrichArtists backfills bio and image for every artist still missing
// either, skipping the unknown-artist sentinel. Individual failures are
// logged; the run keeps going.
func (c *Client) EnrichArtists(ctx context.Context) error {
	if c.apiKey == "" {
		return nil
	}

	rows, err := c.db.QueryContext(
		ctx,
		"SELECT id, name FROM artists WHERE bio IS NULL OR image_url IS NULL",
	)
	if err != nil {
		return fmt.Errorf("list artists to enrich: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id   string
		name string
	}

	candidates := make([]candidate, 0)
	for rows.Next() {
		var entry candidate
		if err := rows.Scan(&entry.id, &entry.name); err != nil {
			return fmt.Errorf("scan artist row: %w", err)
		}
		if entry.name == library.UnknownArtistName {
			continue
		}
		candidates = append(candidates, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate artist rows: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(enrichConcurrency)

	for _, entry := range candidates {
		group.Go(func() error {
			info, err := c.fetchArtistInfo(groupCtx, entry.name)
			if err != nil {
				log.Warn().Err(err).Str("artist", entry.name).Msg("failed to fetch artist info")
				return nil
			}

			bio, imageURL := pickBioAndImage(info)
			if bio == nil && imageURL == nil {
				return nil
			}

			if _, err := c.db.ExecContext(
				groupCtx,
				`UPDATE artists
				 SET bio = COALESCE(?, bio), image_url = COALESCE(?, image_url)
				 WHERE id = ?`,
				bio,
				imageURL,
				entry.id,
			); err != nil {
				log.Warn().Err(err).Str("artist", entry.name).Msg("failed to store artist info")
			}

			return nil
		})
	}

	return group.Wait()
}

func (c *Client) fetchArtistInfo(ctx context.Context, name string) (*ArtistInfo, error) {
	var lastErr error
	rateLimitWaits := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		info, err := c.getArtistInfo(ctx, name)
		if err == nil {
			return info, nil
		}
		lastErr = err

		if errors.Is(err, errRateLimited) {
			rateLimitWaits++
			if rateLimitWaits > maxRateLimitWaits {
				return nil, lastErr
			}
			select {
			case <-time.After(c.rateLimitWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			attempt--
			continue
		}

		select {
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (c *Client) getArtistInfo(ctx context.Context, name string) (*ArtistInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("method", "artist.getInfo")
	query.Set("artist", name)
	query.Set("api_key", c.apiKey)
	query.Set("format", "json")
	query.Set("autocorrect", "1")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build artist info request: %w", err)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send artist info request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("last.fm api error %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload artistInfoResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode artist info response: %w", err)
	}
	if payload.Artist == nil {
		return nil, errors.New("artist info missing from response")
	}

	return payload.Artist, nil
}

func pickBioAndImage(info *ArtistInfo) (any, any) {
	var bio any
	if info.Bio != nil && strings.TrimSpace(info.Bio.Content) != "" {
		bio = info.Bio.Content
	}

	var imageURL any
	for _, image := range info.Image {
		if image.Size == "mega" && image.URL != "" {
			imageURL = image.URL
			break
		}
	}
	if imageURL == nil {
		for i := len(info.Image) - 1; i >= 0; i-- {
			if info.Image[i].URL != "" {
				imageURL = info.Image[i].URL
				break
			}
		}
	}

	return bio, imageURL
}
