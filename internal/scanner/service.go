package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"aria/internal/coverart"
	"aria/internal/library"
)

const EventProgress = "scanner:progress"

// trackBatchSize tracks are committed per transaction; found-path marks
// are cheaper and batched five times larger.
const trackBatchSize = 200

const foundBatchSize = 1000

// resultChannelCap bounds the walk -> consumer channel. Producers block
// on a full channel so a huge library cannot balloon memory.
const resultChannelCap = 200

var supportedExtensions = map[string]struct{}{
	".aac":  {},
	".aiff": {},
	".alac": {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
}

type Progress struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
	At      string `json:"at"`
}

type Status struct {
	Running       bool   `json:"running"`
	LastRunAt     string `json:"lastRunAt"`
	LastError     string `json:"lastError,omitempty"`
	LastFilesSeen int    `json:"lastFilesSeen"`
	LastIndexed   int    `json:"lastIndexed"`
	LastSkipped   int    `json:"lastSkipped"`
}

type Emitter func(eventName string, payload any)

// Enricher backfills artist metadata after a scan completes. It must
// never block a scan's own completion; failures are logged only.
type Enricher interface {
	EnrichArtists(ctx context.Context) error
}

type Service struct {
	mu            sync.Mutex
	running       bool
	lastRun       time.Time
	lastError     string
	lastFilesSeen int
	lastIndexed   int
	lastSkipped   int
	emit          Emitter

	db      *sql.DB
	roots   *library.RootRepository
	covers  *coverart.Store
	extract func(path string) (Metadata, error)
	enrich  Enricher
}

type scanTotals struct {
	filesSeen int
	indexed   int
	skipped   int
}

// scanResult carries one classified file from the walk to the consumer.
// A nil metadata means the file is unchanged and only needs its path
// marked as found.
type scanResult struct {
	path     string
	metadata *Metadata
	mtime    int64
}

func NewService(database *sql.DB, roots *library.RootRepository, covers *coverart.Store) *Service {
	return &Service{
		db:      database,
		roots:   roots,
		covers:  covers,
		extract: ParseFile,
	}
}

func (s *Service) SetEmitter(emitter Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emitter
}

func (s *Service) SetEnricher(enricher Enricher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrich = enricher
}

// TriggerScan starts a full scan in the background. A scan already in
// progress is not interrupted; callers get an error instead.
func (s *Service) TriggerScan() error {
	if err := s.begin(); err != nil {
		return err
	}

	go func() {
		ctx := context.Background()
		totals, err := s.performScan(ctx)
		s.finish(totals, err)
		if err == nil {
			s.runEnrichment(ctx)
		}
	}()

	return nil
}

// Scan runs a full scan synchronously.
func (s *Service) Scan(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}

	totals, err := s.performScan(ctx)
	s.finish(totals, err)
	if err != nil {
		return err
	}

	s.runEnrichment(ctx)
	return nil
}

func (s *Service) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:       s.running,
		LastError:     s.lastError,
		LastFilesSeen: s.lastFilesSeen,
		LastIndexed:   s.lastIndexed,
		LastSkipped:   s.lastSkipped,
	}
	if !s.lastRun.IsZero() {
		status.LastRunAt = s.lastRun.UTC().Format(time.RFC3339)
	}

	return status
}

func (s *Service) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scan already in progress")
	}
	s.running = true
	s.lastError = ""
	return nil
}

func (s *Service) finish(totals scanTotals, err error) {
	s.mu.Lock()
	s.running = false
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.lastRun = time.Now().UTC()
		s.lastFilesSeen = totals.filesSeen
		s.lastIndexed = totals.indexed
		s.lastSkipped = totals.skipped
	}
	s.mu.Unlock()

	if err != nil {
		s.emitProgress(Progress{
			Phase:   "failed",
			Message: err.Error(),
			Percent: 100,
			Status:  "failed",
			At:      time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	s.emitProgress(Progress{
		Phase: "done",
		Message: fmt.Sprintf(
			"Scan complete: %d files seen, %d indexed, %d skipped",
			totals.filesSeen,
			totals.indexed,
			totals.skipped,
		),
		Percent: 100,
		Status:  "completed",
		At:      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) runEnrichment(ctx context.Context) {
	s.mu.Lock()
	enricher := s.enrich
	s.mu.Unlock()

	if enricher == nil {
		return
	}

	if err := enricher.EnrichArtists(ctx); err != nil {
		log.Warn().Err(err).Msg("artist enrichment failed")
	}
}

func (s *Service) performScan(ctx context.Context) (scanTotals, error) {
	s.emitProgress(Progress{
		Phase:   "start",
		Message: "Starting full scan",
		Percent: 5,
		Status:  "running",
		At:      time.Now().UTC().Format(time.RFC3339),
	})

	roots, err := s.roots.List(ctx)
	if err != nil {
		return scanTotals{}, fmt.Errorf("list library roots: %w", err)
	}

	if len(roots) == 0 {
		s.emitProgress(Progress{
			Phase:   "done",
			Message: "No library roots configured",
			Percent: 100,
			Status:  "completed",
			At:      time.Now().UTC().Format(time.RFC3339),
		})
		return scanTotals{}, nil
	}

	existing, err := s.loadFingerprints(ctx)
	if err != nil {
		return scanTotals{}, err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM scan_found"); err != nil {
		return scanTotals{}, fmt.Errorf("clear found set: %w", err)
	}

	results := make(chan scanResult, resultChannelCap)
	consumer := newScanConsumer(s.db, NewResolver(s.db, s.covers))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		consumer.run(groupCtx, results)
		return nil
	})

	totals := scanTotals{}
	var walkErr error
	for i, root := range roots {
		progress := 10 + ((i * 70) / len(roots))
		s.emitProgress(Progress{
			Phase:   "scan",
			Message: fmt.Sprintf("Scanning %s", root),
			Percent: progress,
			Status:  "running",
			At:      time.Now().UTC().Format(time.RFC3339),
		})

		seen, skipped, err := s.walkRoot(groupCtx, root, existing, results)
		totals.filesSeen += seen
		totals.skipped += skipped
		if err != nil {
			walkErr = err
			break
		}
	}
	close(results)

	if err := group.Wait(); err != nil {
		return totals, err
	}
	totals.indexed = consumer.indexed

	if walkErr != nil {
		// The found set is incomplete; deleting against it would wipe
		// rows for files that were never visited.
		return totals, walkErr
	}

	s.emitProgress(Progress{
		Phase:   "cleanup",
		Message: "Removing stale track entries",
		Percent: 90,
		Status:  "running",
		At:      time.Now().UTC().Format(time.RFC3339),
	})

	if _, err := s.db.ExecContext(
		ctx,
		"DELETE FROM tracks WHERE path NOT IN (SELECT path FROM scan_found)",
	); err != nil {
		return totals, fmt.Errorf("remove stale tracks: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		log.Debug().Err(err).Msg("pragma optimize failed")
	}

	return totals, nil
}

func (s *Service) loadFingerprints(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, mtime FROM tracks")
	if err != nil {
		return nil, fmt.Errorf("load track fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}
		fingerprints[path] = mtime
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprint rows: %w", err)
	}

	return fingerprints, nil
}

// walkRoot walks one root in parallel, classifying audio files as
// unchanged or new/changed and feeding the consumer. The walk callback
// runs concurrently across directory entries.
func (s *Service) walkRoot(
	ctx context.Context,
	root string,
	existing map[string]int64,
	results chan<- scanResult,
) (int, int, error) {
	var seen, skipped atomic.Int64

	conf := fastwalk.Config{Follow: true}
	err := fastwalk.Walk(&conf, root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Warn().Err(walkErr).Str("path", path).Msg("skipping unreadable path")
			skipped.Add(1)
			return nil
		}

		if entry.IsDir() {
			return nil
		}

		extension := strings.ToLower(filepath.Ext(path))
		if _, ok := supportedExtensions[extension]; !ok {
			return nil
		}

		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() {
			skipped.Add(1)
			return nil
		}

		cleanPath := filepath.Clean(path)
		mtime := info.ModTime().Unix()
		seen.Add(1)

		if previous, ok := existing[cleanPath]; ok && previous == mtime {
			return send(ctx, results, scanResult{path: cleanPath, mtime: mtime})
		}

		metadata, parseErr := s.extract(cleanPath)
		if parseErr != nil {
			log.Warn().Err(parseErr).Str("path", cleanPath).Msg("skipping unparseable file")
			skipped.Add(1)
			return nil
		}

		return send(ctx, results, scanResult{path: cleanPath, metadata: &metadata, mtime: mtime})
	})
	if err != nil {
		return int(seen.Load()), int(skipped.Load()), fmt.Errorf("walk root %s: %w", root, err)
	}

	return int(seen.Load()), int(skipped.Load()), nil
}

func send(ctx context.Context, results chan<- scanResult, result scanResult) error {
	select {
	case results <- result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) emitProgress(progress Progress) {
	s.mu.Lock()
	emitter := s.emit
	s.mu.Unlock()

	if emitter != nil {
		emitter(EventProgress, progress)
	}
}
