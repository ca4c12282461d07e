package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrRootNotFound = errors.New("library root not found")

type RootRepository struct {
	db *sql.DB
}

func NewRootRepository(database *sql.DB) *RootRepository {
	return &RootRepository{db: database}
}

func (r *RootRepository) Add(ctx context.Context, path string) error {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if cleaned == "" || cleaned == "." {
		return errors.New("path is required")
	}

	if _, err := r.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO library_roots(path) VALUES (?)",
		cleaned,
	); err != nil {
		return fmt.Errorf("insert library root: %w", err)
	}

	return nil
}

func (r *RootRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT path FROM library_roots ORDER BY path COLLATE NOCASE",
	)
	if err != nil {
		return nil, fmt.Errorf("list library roots: %w", err)
	}
	defer rows.Close()

	roots := make([]string, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan library root row: %w", err)
		}
		roots = append(roots, path)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library root rows: %w", err)
	}

	return roots, nil
}

func (r *RootRepository) Remove(ctx context.Context, path string) error {
	result, err := r.db.ExecContext(
		ctx,
		"DELETE FROM library_roots WHERE path = ?",
		filepath.Clean(strings.TrimSpace(path)),
	)
	if err != nil {
		return fmt.Errorf("delete library root: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted library root count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRootNotFound
	}

	return nil
}
