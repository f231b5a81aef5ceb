package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id            TEXT PRIMARY KEY,
	latest_date   DATETIME NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	checked_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	downloaded_at DATETIME,
	path          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS build_runs (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT REFERENCES snapshots(id),
	status      TEXT NOT NULL DEFAULT 'running',
	zips        INTEGER NOT NULL DEFAULT 0,
	output_dir  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS deploys (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES build_runs(id),
	target      TEXT NOT NULL,
	dest        TEXT NOT NULL,
	deployed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_checked_at ON snapshots(checked_at);
CREATE INDEX IF NOT EXISTS idx_build_runs_started_at ON build_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_deploys_run_id ON deploys(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordSnapshot(ctx context.Context, latestDate time.Time, etag string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:         uuid.New().String(),
		LatestDate: latestDate.UTC(),
		ETag:       etag,
		CheckedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, latest_date, etag, checked_at) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.LatestDate, snap.ETag, snap.CheckedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}
	return snap, nil
}

func (s *SQLiteStore) MarkDownloaded(ctx context.Context, snapshotID, path string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET downloaded_at = ?, path = ? WHERE id = ?`,
		time.Now().UTC(), path, snapshotID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark downloaded %s", snapshotID)
	}
	return checkRowsAffected(res, "snapshot", snapshotID)
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, latest_date, etag, checked_at, downloaded_at, path FROM snapshots
		 ORDER BY latest_date DESC, checked_at DESC LIMIT 1`,
	)

	var snap Snapshot
	var downloaded sql.NullTime
	err := row.Scan(&snap.ID, &snap.LatestDate, &snap.ETag, &snap.CheckedAt, &downloaded, &snap.Path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	if downloaded.Valid {
		t := downloaded.Time
		snap.DownloadedAt = &t
	}
	return &snap, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, snapshotID string) (*BuildRun, error) {
	run := &BuildRun{
		ID:         uuid.New().String(),
		SnapshotID: snapshotID,
		Status:     RunRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_runs (id, snapshot_id, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, nullString(snapshotID), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, zips int, outputDir string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE build_runs SET status = ?, zips = ?, output_dir = ?, finished_at = ? WHERE id = ?`,
		string(RunComplete), zips, outputDir, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE build_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(RunFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]BuildRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_id, status, zips, output_dir, error, started_at, finished_at
		 FROM build_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []BuildRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*BuildRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, status, zips, output_dir, error, started_at, finished_at
		 FROM build_runs ORDER BY started_at DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if err == errNoRun {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) RecordDeploy(ctx context.Context, runID, target, dest string) (*Deploy, error) {
	d := &Deploy{
		ID:         uuid.New().String(),
		RunID:      runID,
		Target:     target,
		Dest:       dest,
		DeployedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deploys (id, run_id, target, dest, deployed_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.RunID, d.Target, d.Dest, d.DeployedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert deploy for run %s", runID)
	}
	return d, nil
}

func (s *SQLiteStore) ListDeploys(ctx context.Context, limit int) ([]Deploy, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, target, dest, deployed_at FROM deploys
		 ORDER BY deployed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deploys")
	}
	defer rows.Close()

	var deploys []Deploy
	for rows.Next() {
		var d Deploy
		if err := rows.Scan(&d.ID, &d.RunID, &d.Target, &d.Dest, &d.DeployedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deploy")
		}
		deploys = append(deploys, d)
	}
	return deploys, eris.Wrap(rows.Err(), "sqlite: list deploys iterate")
}

// helpers

var errNoRun = eris.New("store: run not found")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*BuildRun, error) {
	var r BuildRun
	var snapshotID sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &snapshotID, &r.Status, &r.Zips, &r.OutputDir, &r.Error, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, errNoRun
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.SnapshotID = snapshotID.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
