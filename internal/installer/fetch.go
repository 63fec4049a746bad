package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// Fetcher downloads the installer script.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher downloads over HTTPS with a timeout and a size cap.
type HTTPFetcher struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

func (f HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse installer url: %w", err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("installer url %s: only https is allowed", rawURL)
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(body, f.MaxBytes+1)
	}
	if f.Progress != nil {
		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		bar := pb.New64(total)
		bar.SetTemplate(pb.Full)
		bar.SetWriter(f.Progress)
		bar.Start()
		defer bar.Finish()
		body = bar.NewProxyReader(body)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if f.MaxBytes > 0 && int64(len(b)) > f.MaxBytes {
		return nil, fmt.Errorf("download %s: body exceeds %d bytes", rawURL, f.MaxBytes)
	}
	return b, nil
}
