package finance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Repository loads and persists the whole ledger state.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

// FileRepository stores a snapshot in a single JSONL file.
type FileRepository struct {
	Path string
}

// NewFileRepository returns a repository backed by the file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{Path: path}
}

// Load decodes the file. A missing file is an empty ledger.
func (r *FileRepository) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return new(Snapshot), nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open ledger file %q: %w", r.Path, err)
	}
	defer f.Close()

	s, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode ledger file %q: %w", r.Path, err)
	}
	return s, nil
}

// Save writes the snapshot to a temporary file next to Path and renames it
// over Path, so a failed save leaves the previous file intact.
func (r *FileRepository) Save(ctx context.Context, s *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory for ledger %q: %w", r.Path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error opening ledger file %q for writing: %w", r.Path, err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeSnapshot(tmp, s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write ledger file %q: %w", r.Path, err)
	}
	if err := os.Rename(tmp.Name(), r.Path); err != nil {
		return fmt.Errorf("could not replace ledger file %q: %w", r.Path, err)
	}
	return nil
}

// LoadLedger restores a new ledger from a repository.
func LoadLedger(ctx context.Context, repo Repository, opts ...Option) (*Ledger, error) {
	s, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	l := NewLedger(opts...)
	l.Restore(s)
	return l, nil
}

// SaveLedger persists the current state of l.
func SaveLedger(ctx context.Context, repo Repository, l *Ledger) error {
	return repo.Save(ctx, l.Snapshot())
}
