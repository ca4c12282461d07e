package coverart

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists embedded cover images as content-addressed files.
// Identical image bytes always map to the same filename, so rewrites
// are skipped and duplicates never accumulate.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("covers dir is required")
	}

	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create covers dir: %w", err)
	}

	return &Store{dir: trimmed}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the image under <sha256-hex>.<ext> and returns the
// filename. The write is skipped when the file already exists.
func (s *Store) Save(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("cover image is empty")
	}

	digest := sha256.Sum256(data)
	filename := hex.EncodeToString(digest[:]) + "." + ExtensionForMIME(mimeType)
	target := filepath.Join(s.dir, filename)

	if _, err := os.Stat(target); err == nil {
		return filename, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat cover %s: %w", filename, err)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write cover %s: %w", filename, err)
	}

	return filename, nil
}

func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

func ExtensionForMIME(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
