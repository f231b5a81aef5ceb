// Package fetcher downloads and parses data from HTTP, CSV, XLSX, and ZIP sources.
package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves a remote resource as a stream.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
