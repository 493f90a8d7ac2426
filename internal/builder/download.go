package builder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DefaultResponseHeaderTimeout is the default timeout for receiving response headers.
const DefaultResponseHeaderTimeout = 30 * time.Second

// reportEvery is the number of bytes between progress reports.
const reportEvery = 8 << 20

// Downloader fetches archives with resume support.
type Downloader struct {
	client *http.Client
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.client = client
	}
}

// NewDownloader creates a new Downloader. There is no overall timeout:
// archives are large and the context bounds each transfer.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadToFile downloads url to destPath. A partial file left by an
// earlier attempt is resumed with a Range request; if the server ignores
// the range the file is rewritten from the start.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	var existing int64
	if info, err := os.Stat(destPath); err == nil {
		existing = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if existing > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_WRONLY | os.O_CREATE
	var total int64
	switch resp.StatusCode {
	case http.StatusOK:
		flags |= os.O_TRUNC
		existing = 0
		total = resp.ContentLength
	case http.StatusPartialContent:
		flags |= os.O_APPEND
		total = existing + resp.ContentLength
		var start, end int64
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total)
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file is already complete.
		return nil
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	file, err := os.OpenFile(destPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	name := filepath.Base(destPath)
	buf := make([]byte, 32*1024)
	downloaded, lastReport := existing, existing
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return fmt.Errorf("writing file: %w", werr)
			}
			downloaded += int64(n)
			if progress != nil && downloaded-lastReport >= reportEvery {
				lastReport = downloaded
				progress(Progress{Phase: PhaseDownload, File: name, BytesDownloaded: downloaded, BytesTotal: total})
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
	}

	if progress != nil {
		progress(Progress{Phase: PhaseDownload, File: name, BytesDownloaded: downloaded, BytesTotal: total})
	}
	return file.Close()
}

// Fetch downloads url into dir and, for ".zst" archives, decompresses it
// next to the download and removes the compressed file. It returns the path
// of the usable file. An already decompressed file is reused as is.
func (d *Downloader) Fetch(ctx context.Context, url, dir string, progress ProgressFunc) (string, error) {
	name := path.Base(url)
	dest := filepath.Join(dir, name)
	if !strings.HasSuffix(name, ".zst") {
		return dest, d.DownloadToFile(ctx, url, dest, progress)
	}

	plain := strings.TrimSuffix(dest, ".zst")
	if _, err := os.Stat(plain); err == nil {
		return plain, nil
	}
	if err := d.DownloadToFile(ctx, url, dest, progress); err != nil {
		return "", err
	}
	if err := Decompress(ctx, dest, plain, progress); err != nil {
		return "", err
	}
	return plain, nil
}

// Decompress expands the zstd file src into dst and removes src on success.
func Decompress(ctx context.Context, src, dst string, progress ProgressFunc) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in, zstd.WithDecoderMaxWindow(1<<31))
	if err != nil {
		return fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	var written atomic.Int64
	done := make(chan struct{})
	if progress != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					progress(Progress{Phase: PhaseDecompress, File: filepath.Base(dst), BytesDownloaded: written.Load()})
				}
			}
		}()
	}

	_, err = io.Copy(out, newProgressReader(contextReader{ctx, dec}, &written))
	close(done)
	if err != nil {
		out.Close()
		return fmt.Errorf("decompressing %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return os.Remove(src)
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
