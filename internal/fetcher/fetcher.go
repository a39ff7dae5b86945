// Package fetcher downloads the raw source archives: the OSM roads
// extract and the PRODES deforestation layer over HTTP, the IBGE state
// boundaries over FTP.
package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// saveTo writes r to path through a sibling temp file, so a partial
// download is never left under the final name.
func saveTo(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "create download directory")
	}

	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}

	n, err := io.Copy(file, r)
	if err != nil {
		file.Close() //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return n, eris.Wrap(err, "write file")
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return n, eris.Wrap(err, "close file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return n, eris.Wrap(err, "move download into place")
	}
	return n, nil
}
