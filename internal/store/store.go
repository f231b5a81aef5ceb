// Package store persists pipeline metadata: dataset snapshots seen by
// the update checker, build runs, and deploy history.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/home-economics/pricemaps/internal/config"
)

// Snapshot records one observed upstream dataset version.
type Snapshot struct {
	ID           string     `json:"id"`
	LatestDate   time.Time  `json:"latest_date"`
	ETag         string     `json:"etag,omitempty"`
	CheckedAt    time.Time  `json:"checked_at"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
	Path         string     `json:"path,omitempty"`
}

// RunStatus is the lifecycle state of a build run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// BuildRun records one map build.
type BuildRun struct {
	ID         string     `json:"id"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	Status     RunStatus  `json:"status"`
	Zips       int        `json:"zips"`
	OutputDir  string     `json:"output_dir,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Deploy records one publication of a build.
type Deploy struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Target     string    `json:"target"`
	Dest       string    `json:"dest"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Store is the persistence interface for pipeline metadata.
type Store interface {
	// Snapshots
	RecordSnapshot(ctx context.Context, latestDate time.Time, etag string) (*Snapshot, error)
	MarkDownloaded(ctx context.Context, snapshotID, path string) error
	LatestSnapshot(ctx context.Context) (*Snapshot, error)

	// Build runs
	StartRun(ctx context.Context, snapshotID string) (*BuildRun, error)
	CompleteRun(ctx context.Context, runID string, zips int, outputDir string) error
	FailRun(ctx context.Context, runID string, cause error) error
	ListRuns(ctx context.Context, limit int) ([]BuildRun, error)
	LatestRun(ctx context.Context) (*BuildRun, error)

	// Deploys
	RecordDeploy(ctx context.Context, runID, target, dest string) (*Deploy, error)
	ListDeploys(ctx context.Context, limit int) ([]Deploy, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store named by the configured driver and runs
// migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.Path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
