package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	ledgererrors "interviewdesk/internal/ledger/errors"
	"interviewdesk/pkg/logger"
)

const corruptSuffix = ".corrupt"

type fileDocumentStore struct {
	path string
	log  *logger.Logger
	mu   sync.Mutex
}

// NewFileDocumentStore keeps the ledger in a JSON file at path. Saves go
// through a temp file in the same directory and a rename, so a reader never
// observes a partially written ledger.
func NewFileDocumentStore(path string, log *logger.Logger) DocumentStore {
	return &fileDocumentStore{
		path: path,
		log:  log,
	}
}

func (s *fileDocumentStore) Load(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Info("Ledger file not found, starting empty", "path", s.path)
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		backup := s.path + corruptSuffix
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			return nil, fmt.Errorf("%w: %v (backup failed: %v)", ledgererrors.ErrCorruptDocument, err, renameErr)
		}
		s.log.Warn("Ledger file is corrupt, starting empty",
			"path", s.path,
			"backup", backup,
			"error", err,
		)
		return NewDocument(), nil
	}

	return doc, nil
}

func (s *fileDocumentStore) Save(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	committed = true

	// A crash right after rename can still lose the directory entry on some
	// filesystems unless the directory itself is synced.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func (s *fileDocumentStore) Ping(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("ledger directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("ledger directory %s is not a directory", filepath.Dir(s.path))
	}
	return ctx.Err()
}

func (s *fileDocumentStore) Close(context.Context) error {
	return nil
}

