// Package acquire keeps the local dataset copy current: it checks the
// upstream header for a new snapshot date, downloads the dataset when it
// changed, and fetches the reference boundary archive.
package acquire

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/fetcher"
	"github.com/home-economics/pricemaps/internal/store"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

// Fetcher is the slice of the HTTP fetcher the acquirer needs.
type Fetcher interface {
	PeekFirstLine(ctx context.Context, rawURL string) (string, error)
	DownloadIfChanged(ctx context.Context, rawURL, etag string) (io.ReadCloser, string, bool, error)
	DownloadToFile(ctx context.Context, rawURL, path string) (int64, error)
}

// Service coordinates dataset acquisition against the snapshot store.
type Service struct {
	fetch Fetcher
	st    store.Store
}

// NewService builds an acquisition service.
func NewService(fetch Fetcher, st store.Store) *Service {
	return &Service{fetch: fetch, st: st}
}

// DatasetFile is the local filename of the downloaded dataset.
const DatasetFile = "zhvi.csv"

// CheckResult reports whether upstream carries a newer snapshot than the
// last one recorded.
type CheckResult struct {
	RemoteDate time.Time  `json:"remote_date"`
	KnownDate  *time.Time `json:"known_date,omitempty"`
	NewData    bool       `json:"new_data"`
}

// Check fetches only the dataset header row and compares its last date
// column against the most recent recorded snapshot. A new date is
// recorded in the store so repeat checks stay quiet.
func (s *Service) Check(ctx context.Context, datasetURL string) (*CheckResult, error) {
	header, err := s.fetch.PeekFirstLine(ctx, datasetURL)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: fetch dataset header")
	}
	remote, err := zhvi.LatestHeaderDate(header)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{RemoteDate: remote}
	known, err := s.st.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if known != nil {
		d := known.LatestDate
		res.KnownDate = &d
	}
	res.NewData = known == nil || remote.After(known.LatestDate)

	if res.NewData {
		if _, err := s.st.RecordSnapshot(ctx, remote, ""); err != nil {
			return nil, err
		}
	}

	zap.L().Info("dataset update check",
		zap.Time("remote_date", remote),
		zap.Bool("new_data", res.NewData),
	)
	return res, nil
}

// DownloadDataset fetches the dataset into dataDir, skipping the
// transfer when the upstream ETag matches the last downloaded snapshot.
// Returns the local path and whether new bytes were written.
func (s *Service) DownloadDataset(ctx context.Context, datasetURL, dataDir string) (string, bool, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", false, eris.Wrapf(err, "acquire: create data dir %s", dataDir)
	}
	path := filepath.Join(dataDir, DatasetFile)

	known, err := s.st.LatestSnapshot(ctx)
	if err != nil {
		return "", false, err
	}
	etag := ""
	// Only trust the cached ETag when the file it refers to still exists.
	if known != nil && known.DownloadedAt != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			etag = known.ETag
		}
	}

	body, newETag, changed, err := s.fetch.DownloadIfChanged(ctx, datasetURL, etag)
	if err != nil {
		return "", false, eris.Wrap(err, "acquire: download dataset")
	}
	if !changed {
		zap.L().Info("dataset unchanged upstream", zap.String("path", path))
		return path, false, nil
	}
	defer body.Close() //nolint:errcheck

	f, err := os.Create(path)
	if err != nil {
		return "", false, eris.Wrapf(err, "acquire: create %s", path)
	}
	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		return "", false, eris.Wrapf(err, "acquire: write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", false, eris.Wrapf(err, "acquire: close %s", path)
	}

	snap, err := s.recordDownload(ctx, path, newETag)
	if err != nil {
		return "", false, err
	}

	zap.L().Info("dataset downloaded",
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.String("snapshot", snap.ID),
	)
	return path, true, nil
}

// recordDownload reads the freshly written header to date the snapshot,
// then records it as downloaded.
func (s *Service) recordDownload(ctx context.Context, path, etag string) (*store.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "acquire: reopen %s", path)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrapf(err, "acquire: read header of %s", path)
		}
		return nil, eris.Errorf("acquire: downloaded dataset %s is empty", path)
	}
	latest, err := zhvi.LatestHeaderDate(scanner.Text())
	if err != nil {
		return nil, err
	}

	snap, err := s.st.RecordSnapshot(ctx, latest, etag)
	if err != nil {
		return nil, err
	}
	if err := s.st.MarkDownloaded(ctx, snap.ID, path); err != nil {
		return nil, err
	}
	return snap, nil
}

// DownloadRefdata fetches the cartographic boundary archive and extracts
// it, returning the path of the contained .shp file.
func (s *Service) DownloadRefdata(ctx context.Context, archiveURL, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", eris.Wrapf(err, "acquire: create refdata dir %s", destDir)
	}

	zipPath := filepath.Join(destDir, filepath.Base(archiveURL))
	if _, err := s.fetch.DownloadToFile(ctx, archiveURL, zipPath); err != nil {
		return "", eris.Wrap(err, "acquire: download boundary archive")
	}

	files, err := fetcher.ExtractZIP(zipPath, destDir)
	if err != nil {
		return "", err
	}
	shpPath, err := fetcher.FindByExt(files, ".shp")
	if err != nil {
		return "", err
	}

	zap.L().Info("boundary archive extracted",
		zap.String("shapefile", shpPath),
		zap.Int("files", len(files)),
	)
	return shpPath, nil
}
