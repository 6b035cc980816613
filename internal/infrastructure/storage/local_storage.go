package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"go.uber.org/zap"
)

var _ offer.ArtifactStorage = (*LocalArtifactStorage)(nil)

// LocalArtifactStorage writes artifacts into a directory
type LocalArtifactStorage struct {
	dir    string
	logger *zap.Logger
}

// NewLocalArtifactStorage creates the directory if needed
func NewLocalArtifactStorage(dir string, logger *zap.Logger) (*LocalArtifactStorage, error) {
	if dir == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create %s: %w", dir, err)
	}
	return &LocalArtifactStorage{dir: dir, logger: logger}, nil
}

func (s *LocalArtifactStorage) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Put writes the artifact to a temporary file and links it into place, so a
// reader never sees a partial file and an existing artifact is never replaced.
func (s *LocalArtifactStorage) Put(_ context.Context, name string, data []byte, _ string) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("storage: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: failed to close artifact: %w", err)
	}

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", offer.ErrArtifactExists, target)
		}
		return fmt.Errorf("storage: failed to publish artifact: %w", err)
	}

	s.logger.Info("Artifact written", zap.String("path", target), zap.Int("bytes", len(data)))
	return nil
}

// Exists checks whether the artifact file is present
func (s *LocalArtifactStorage) Exists(_ context.Context, name string) (bool, error) {
	target, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: failed to stat artifact: %w", err)
	}
}

// Dir returns the artifact directory
func (s *LocalArtifactStorage) Dir() string {
	return s.dir
}
