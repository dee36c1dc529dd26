package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// maxDownloadBytes caps a single fetched asset.
const maxDownloadBytes = 50 << 20

// Fetcher downloads provider result files, retrying transient failures.
type Fetcher struct {
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

// NewFetcher builds a Fetcher; zero values select defaults.
func NewFetcher(httpClient *http.Client, attempts uint, delay time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if attempts == 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Fetcher{httpClient: httpClient, attempts: attempts, delay: delay}
}

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("storage: download status %d", e.code) }

// Download returns the body and content type found at url.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("storage: build request: %w", err))
			}
			resp, err := f.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("storage: download: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return statusError{code: resp.StatusCode}
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
			if err != nil {
				return fmt.Errorf("storage: read body: %w", err)
			}
			if len(body) > maxDownloadBytes {
				return retry.Unrecoverable(errors.New("storage: download exceeds size limit"))
			}
			data, contentType = body, resp.Header.Get("Content-Type")
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se statusError
			if errors.As(err, &se) {
				return se.code == http.StatusTooManyRequests || se.code >= 500
			}
			return true
		}),
	)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("storage: empty download")
	}
	return data, contentType, nil
}
