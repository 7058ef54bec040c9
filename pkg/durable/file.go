package durable

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/steemburnpool/burnboard/pkg/burn"
	"go.uber.org/zap"
)

// FileStore keeps the scan slot in a JSON file for single-node deploys with
// no Redis.
type FileStore struct {
	path   string
	logger *zap.Logger
	maxAge time.Duration
	now    func() time.Time
}

// NewFileStore creates a FileStore writing to path, creating parent
// directories as needed.
func NewFileStore(path string, maxAge time.Duration, logger *zap.Logger) (*FileStore, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path, logger: logger, maxAge: maxAge, now: time.Now}, nil
}

func (s *FileStore) Load(_ context.Context) (*burn.AggregateResult, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Durable cache file unreadable", zap.String("path", s.path), zap.Error(err))
		}
		return nil, false
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil || e.SchemaTag != schemaTag {
		s.logger.Debug("Durable cache file malformed, treating as miss", zap.String("path", s.path))
		return nil, false
	}
	if expired(&e, s.maxAge, s.now()) {
		return nil, false
	}
	if e.Result.BurnsByDay == nil {
		e.Result.BurnsByDay = make(burn.DailyHistogram)
	}
	return &e.Result, true
}

func (s *FileStore) Save(_ context.Context, res *burn.AggregateResult) error {
	raw, err := json.Marshal(envelope{Result: *res, StoredAt: s.now().UnixMilli(), SchemaTag: schemaTag})
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write leaves the old slot intact.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Invalidate(_ context.Context) error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
