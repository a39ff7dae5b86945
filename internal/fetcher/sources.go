package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roadrings/internal/config"
)

// Archive describes one fetched source archive.
type Archive struct {
	Source    string   // roads, boundary or deforestation
	URL       string
	Path      string   // archive location under the raw data directory
	Extracted []string // member files, when the archive is a ZIP
}

// FetchAll downloads every configured source archive into the raw data
// directory and extracts ZIP archives into a per-source subdirectory.
// Sources download in parallel. An HTTP archive already on disk is
// refreshed only when the server reports a new ETag; an FTP archive
// already on disk is kept as is.
func FetchAll(ctx context.Context, cfg *config.Config) ([]Archive, error) {
	sources := []struct {
		name string
		url  string
	}{
		{"roads", cfg.Fetch.Sources.Roads},
		{"boundary", cfg.Fetch.Sources.Boundary},
		{"deforestation", cfg.Fetch.Sources.Deforestation},
	}

	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	httpf := NewHTTPFetcher(HTTPOptions{Timeout: timeout})
	ftpf := NewFTPFetcher(timeout)
	rawDir := cfg.Paths.RawDir()

	results := make([]Archive, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		if src.url == "" {
			continue
		}
		g.Go(func() error {
			a, err := fetchOne(ctx, httpf, ftpf, src.name, src.url, rawDir)
			if err != nil {
				return eris.Wrapf(err, "fetch %s", src.name)
			}
			results[i] = *a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Archive, 0, len(sources))
	for _, a := range results {
		if a.Source != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

func fetchOne(ctx context.Context, httpf *HTTPFetcher, ftpf *FTPFetcher, name, rawURL, rawDir string) (*Archive, error) {
	fileName, err := archiveName(rawURL)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(rawDir, fileName)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse source url")
	}

	var n int64
	downloaded := true
	switch u.Scheme {
	case "ftp":
		if _, statErr := os.Stat(dest); statErr == nil {
			downloaded = false
		} else {
			n, err = ftpf.DownloadToFile(ctx, rawURL, dest)
		}
	case "http", "https":
		n, downloaded, err = downloadConditional(ctx, httpf, rawURL, dest)
	default:
		return nil, eris.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if downloaded {
		zap.L().Info("fetched source archive",
			zap.String("source", name),
			zap.String("path", dest),
			zap.Int64("bytes", n),
		)
	} else {
		zap.L().Info("source archive up to date",
			zap.String("source", name),
			zap.String("path", dest),
		)
	}

	a := &Archive{Source: name, URL: rawURL, Path: dest}
	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		a.Extracted, err = ExtractZIP(dest, filepath.Join(rawDir, name))
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// downloadConditional fetches dest only when the server's ETag differs
// from the one recorded at the previous download. Servers without ETag
// support always re-download.
func downloadConditional(ctx context.Context, f *HTTPFetcher, rawURL, dest string) (int64, bool, error) {
	etagPath := dest + ".etag"
	var etag string
	if _, err := os.Stat(dest); err == nil {
		if b, readErr := os.ReadFile(etagPath); readErr == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	body, newETag, changed, err := f.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return 0, false, err
	}
	if !changed {
		return 0, false, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := saveTo(dest, body)
	if err != nil {
		return n, true, err
	}
	if newETag != "" {
		if err := os.WriteFile(etagPath, []byte(newETag), 0o644); err != nil {
			return n, true, eris.Wrap(err, "record etag")
		}
	}
	return n, true, nil
}

// archiveName derives the local file name from the last URL path segment.
func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "parse source url")
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", eris.Errorf("source url %q has no file name", rawURL)
	}
	return name, nil
}
