// Package fetcher downloads provider extracts over HTTP and parses CSV
// streams.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a URL and returns the response body. The caller must
// close the returned reader.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
