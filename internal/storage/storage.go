// Package storage archives dispatch run reports, either as JSON files on
// local disk or as S3 objects indexed in DynamoDB.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/config"
	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// ErrNotFound is returned when a run report does not exist.
var ErrNotFound = errors.New("run report not found")

// Store persists run reports and reads them back by date.
type Store interface {
	SaveRun(ctx context.Context, report *domain.RunReport) error
	GetRun(ctx context.Context, date, runID string) (*domain.RunReport, error)
	ListRuns(ctx context.Context, date string) ([]domain.RunReport, error)
}

// New builds the store selected by cfg.Type. It returns a nil Store for
// the "none" type.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case config.StorageAWS:
		s, err := NewAWSStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		return s, nil
	case config.StorageLocal:
		s, err := NewLocalStore(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("initializing local storage: %w", err)
		}
		return s, nil
	case "", config.StorageNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// dayPrefix maps "2024-05-01" to "runs/2024/05/01".
func dayPrefix(date string) (string, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid run date %q: %w", date, err)
	}
	return "runs/" + d.Format("2006/01/02"), nil
}

func runKey(date, runID string) (string, error) {
	prefix, err := dayPrefix(date)
	if err != nil {
		return "", err
	}
	// run IDs come from callers; keep them to one path segment
	id := path.Base(runID)
	if id == "" || id == "." || id == "/" || strings.ContainsAny(id, `\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return prefix + "/" + id + ".json", nil
}
