package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// LocalStore writes one JSON file per run under root/runs/YYYY/MM/DD.
type LocalStore struct {
	mu   sync.RWMutex
	root string
}

// NewLocalStore ensures root exists.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// SaveRun writes the report, replacing any earlier copy of the same run.
func (s *LocalStore) SaveRun(_ context.Context, report *domain.RunReport) error {
	key, err := runKey(report.Date, report.RunID)
	if err != nil {
		return err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	file, err := os.Create(p)
	if err != nil {
		return err
	}
	return writeReport(file, report)
}

// writeReport encodes report into w and closes it. A failed close is
// reported because buffered data may not have reached disk.
func writeReport(w io.WriteCloser, report *domain.RunReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		w.Close()
		return fmt.Errorf("encoding run report: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing run report: %w", err)
	}
	return nil
}

// GetRun reads one report back.
func (s *LocalStore) GetRun(_ context.Context, date, runID string) (*domain.RunReport, error) {
	key, err := runKey(date, runID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return readReport(filepath.Join(s.root, filepath.FromSlash(key)))
}

// ListRuns returns the reports of one day ordered by start time.
func (s *LocalStore) ListRuns(_ context.Context, date string) ([]domain.RunReport, error) {
	prefix, err := dayPrefix(date)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.RunReport{}, nil
	}
	if err != nil {
		return nil, err
	}

	reports := make([]domain.RunReport, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := readReport(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt.Before(reports[j].StartedAt)
	})
	return reports, nil
}

func readReport(p string) (*domain.RunReport, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r domain.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(p), err)
	}
	return &r, nil
}
