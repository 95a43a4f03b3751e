// Package bdc downloads fixed broadband availability files from the FCC
// Broadband Data Collection public API.
package bdc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/frame"
	"github.com/couchcryptid/broadband-data-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// filenamePattern pulls the CSV name out of
// `attachment; filename="bdc_49_Cable_fixed_broadband_J24.csv.zip"`.
var filenamePattern = regexp.MustCompile(`attachment; filename=(?:"|')(.*)\.zip`)

// Options configures a Client.
type Options struct {
	BaseURL       string
	Username      string
	HashValue     string
	State         string        // state_name to download, e.g. "Utah"
	FilesPerPause int           // pause after this many downloads
	Pause         time.Duration // rate-limit pause
	Timeout       time.Duration
}

// Client implements domain.Extractor against the BDC API.
type Client struct {
	opts       Options
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewClient creates a BDC client.
func NewClient(opts Options, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.FilesPerPause < 1 {
		opts.FilesPerPause = 10
	}
	return &Client{
		opts:           opts,
		httpClient:     &http.Client{Timeout: opts.Timeout},
		clock:          clock,
		metrics:        metrics,
		logger:         logger,
		maxAttempts:    3,
		initialBackoff: 2 * time.Second,
		maxBackoff:     30 * time.Second,
	}
}

// FileInfo describes one downloadable availability file.
type FileInfo struct {
	FileID     int64  `json:"file_id"`
	StateName  string `json:"state_name"`
	Technology string `json:"technology_code_desc"`
	ProviderID int64  `json:"provider_id,omitempty"`
	Category   string `json:"category,omitempty"`
}

type asOfDate struct {
	DataType string `json:"data_type"`
	AsOfDate string `json:"as_of_date"`
}

type envelope[T any] struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Data    []T    `json:"data"`
}

// Extract downloads every fixed broadband file for the configured state from
// the latest availability period and stacks them into one frame.
func (c *Client) Extract(ctx context.Context) (domain.Extraction, error) {
	asOf, err := c.LatestAvailabilityDate(ctx)
	if err != nil {
		return domain.Extraction{}, err
	}
	files, err := c.ListFiles(ctx, asOf)
	if err != nil {
		return domain.Extraction{}, err
	}
	if len(files) == 0 {
		return domain.Extraction{}, fmt.Errorf("no %s availability files for %s", c.opts.State, asOf)
	}
	c.logger.Info("downloading availability files", "as_of", asOf, "state", c.opts.State, "files", len(files))

	frames := make([]*frame.Frame, 0, len(files))
	for i, file := range files {
		if (i+1)%c.opts.FilesPerPause == 0 {
			c.logger.Info("pausing to stay under the API rate limit", "pause", c.opts.Pause)
			if err := c.sleep(ctx, c.opts.Pause); err != nil {
				return domain.Extraction{}, err
			}
		}
		f, err := c.Download(ctx, file)
		if err != nil {
			return domain.Extraction{}, err
		}
		frames = append(frames, f)
		if c.metrics != nil {
			c.metrics.FilesDownloaded.Inc()
		}
	}

	stacked, err := frame.Concat(frames, true)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("concat availability files: %w", err)
	}
	return domain.Extraction{AsOf: asOf, Files: len(files), Frame: stacked}, nil
}

// LatestAvailabilityDate returns the most recent as-of date with availability data.
func (c *Client) LatestAvailabilityDate(ctx context.Context) (string, error) {
	var resp envelope[asOfDate]
	if err := c.getJSON(ctx, c.opts.BaseURL+"/listAsOfDates", &resp); err != nil {
		return "", fmt.Errorf("list as-of dates: %w", err)
	}
	var dates []string
	for _, d := range resp.Data {
		if d.DataType == "availability" {
			dates = append(dates, d.AsOfDate)
		}
	}
	if len(dates) == 0 {
		return "", errors.New("list as-of dates: no availability dates")
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates[0], nil
}

// ListFiles returns the state's fixed broadband files for an as-of date.
func (c *Client) ListFiles(ctx context.Context, asOf string) ([]FileInfo, error) {
	params := url.Values{
		"category":        {"State"},
		"technology_type": {"Fixed Broadband"},
	}
	u := fmt.Sprintf("%s/downloads/listAvailabilityData/%s?%s", c.opts.BaseURL, url.PathEscape(asOf), params.Encode())

	var resp envelope[FileInfo]
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("list availability files: %w", err)
	}
	var files []FileInfo
	for _, f := range resp.Data {
		if f.StateName == c.opts.State {
			files = append(files, f)
		}
	}
	return files, nil
}

// Download fetches one zipped CSV and decodes it. The file's technology
// becomes the technology_name column.
func (c *Client) Download(ctx context.Context, file FileInfo) (*frame.Frame, error) {
	c.logger.Debug("downloading file", "file_id", file.FileID, "technology", file.Technology)
	u := fmt.Sprintf("%s/downloads/downloadFile/availability/%d", c.opts.BaseURL, file.FileID)

	resp, body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("download file %d: %w", file.FileID, err)
	}
	m := filenamePattern.FindStringSubmatch(resp.Header.Get("Content-Disposition"))
	if m == nil {
		return nil, fmt.Errorf("download file %d: no filename in Content-Disposition %q", file.FileID, resp.Header.Get("Content-Disposition"))
	}

	f, err := decodeZippedCSV(body, m[1], file.Technology)
	if err != nil {
		return nil, fmt.Errorf("decode file %d: %w", file.FileID, err)
	}
	return f, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	_, body, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get performs an authenticated GET, retrying transport errors, 429s and 5xx
// responses with exponential backoff.
func (c *Client) get(ctx context.Context, u string) (*http.Response, []byte, error) {
	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, body, err := c.do(ctx, u)
		if err == nil {
			return resp, body, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, nil, err
		}
		if attempt == c.maxAttempts || ctx.Err() != nil {
			break
		}
		c.logger.Warn("BDC request failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, nil, err
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
	return nil, nil, lastErr
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("username", c.opts.Username)
	req.Header.Set("hash_value", c.opts.HashValue)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return resp, body, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("BDC API error: status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}
