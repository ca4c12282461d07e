package lastfm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newClientForTest(t *testing.T, serverURL string) *Client {
	t.Helper()

	client := NewClient(nil, "test-key")
	client.baseURL = serverURL
	client.retryDelay = time.Millisecond
	client.rateLimitWait = time.Millisecond
	return client
}

func TestFetchArtistInfoStopsAfterPersistentRateLimit(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newClientForTest(t, server.URL)
	if _, err := client.fetchArtistInfo(context.Background(), "Anyone"); err == nil {
		t.Fatalf("expected error for persistent rate limiting")
	}

	// The first request plus one per allowed wait, then the lookup
	// gives up instead of looping forever.
	if got := requests.Load(); got != maxRateLimitWaits+1 {
		t.Fatalf("requests = %d, want %d", got, maxRateLimitWaits+1)
	}
}

func TestFetchArtistInfoRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"artist":{"name":"Can","bio":{"content":"Krautrock."}}}`))
	}))
	defer server.Close()

	client := newClientForTest(t, server.URL)
	info, err := client.fetchArtistInfo(context.Background(), "Can")
	if err != nil {
		t.Fatalf("fetch artist info: %v", err)
	}
	if info.Name != "Can" {
		t.Fatalf("artist name = %q, want Can", info.Name)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
}

func TestPickBioAndImage(t *testing.T) {
	t.Parallel()

	info := &ArtistInfo{
		Name: "Boards of Canada",
		Bio:  &Bio{Content: "Scottish electronic duo."},
		Image: []Image{
			{URL: "small.jpg", Size: "small"},
			{URL: "mega.jpg", Size: "mega"},
			{URL: "huge.jpg", Size: ""},
		},
	}

	bio, imageURL := pickBioAndImage(info)
	if bio != any("Scottish electronic duo.") {
		t.Fatalf("bio = %v, want content string", bio)
	}
	if imageURL != any("mega.jpg") {
		t.Fatalf("image = %v, want mega.jpg", imageURL)
	}
}

func TestPickBioAndImageFallsBackToLastImage(t *testing.T) {
	t.Parallel()

	info := &ArtistInfo{
		Image: []Image{
			{URL: "small.jpg", Size: "small"},
			{URL: "large.jpg", Size: "large"},
			{URL: "", Size: "mega"},
		},
	}

	bio, imageURL := pickBioAndImage(info)
	if bio != nil {
		t.Fatalf("bio = %v, want nil for blank content", bio)
	}
	if imageURL != any("large.jpg") {
		t.Fatalf("image = %v, want large.jpg", imageURL)
	}
}

func TestPickBioAndImageEmpty(t *testing.T) {
	t.Parallel()

	bio, imageURL := pickBioAndImage(&ArtistInfo{})
	if bio != nil || imageURL != nil {
		t.Fatalf("expected nil bio and image, got %v, %v", bio, imageURL)
	}
}
