package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of download retries
	DefaultRetries = 2
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "depfetch/1.0"
)

// Downloader handles HTTP downloads with retry logic
type Downloader struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   func(attempt int) time.Duration
	progress  io.Writer
	log       logging.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithRetries sets how many times a failed download is retried.
func WithRetries(n int) DownloaderOption {
	return func(d *Downloader) {
		if n >= 0 {
			d.retries = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithBackoff sets the delay before retry number attempt (starting at 1).
func WithBackoff(fn func(attempt int) time.Duration) DownloaderOption {
	return func(d *Downloader) {
		d.backoff = fn
	}
}

// WithProgress renders a progress bar for each download to w.
func WithProgress(w io.Writer) DownloaderOption {
	return func(d *Downloader) {
		d.progress = w
	}
}

// WithDownloadLogger sets the logger used for retry events.
func WithDownloadLogger(l logging.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.log = l
	}
}

// NewDownloader creates a new downloader
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow up to 10 redirects
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
		retries:   DefaultRetries,
		backoff:   exponentialBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrNop(d.log)
	return d
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// DownloadToFile downloads url to destPath. The body is written to a temp
// file next to destPath and renamed into place only once complete, so
// destPath never holds a partial transfer.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) error {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		// Check context before each attempt
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			d.log.Debug("retrying download", "url", url, "attempt", attempt, "err", lastErr)
			select {
			case <-time.After(d.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := d.downloadOnce(ctx, url, destPath)
		if err == nil {
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("download failed after %d retries: %w", d.retries, lastErr)
}

// downloadOnce performs a single download attempt
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}

	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status code: %d", ErrNetwork, resp.StatusCode)
	}

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("%w: create dest dir: %v", ErrIO, err)
	}

	tmpFile, err := os.CreateTemp(destDir, "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrIO, err)
	}
	tmpPath := tmpFile.Name()

	// Track whether we need to clean up the temp file
	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	var w io.Writer = tmpFile
	if d.progress != nil {
		bar := d.newBar(resp.ContentLength, filepath.Base(destPath))
		defer bar.Close()
		w = io.MultiWriter(tmpFile, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: copy response body: %v", ErrNetwork, err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrIO, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("%w: rename temp file: %v", ErrIO, err)
	}

	cleanupNeeded = false
	return nil
}

// newBar builds a byte-counting bar. An unknown length (-1) renders a spinner.
func (d *Downloader) newBar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(d.progress),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetDescription("   "+description),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(d.progress)
		}),
	)
}
