// Package arcgis reads hex polygons from and replaces the contents of ArcGIS
// Online hosted feature services through the REST API.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultPageSize  = 2000
	defaultChunkSize = 500
)

// Client talks to hosted feature services with a pre-issued token.
type Client struct {
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	// hexLayers maps a resolution to the layer URL of its hex polygons.
	hexLayers map[int]string

	pageSize  int
	chunkSize int
}

// NewClient creates an ArcGIS REST client.
func NewClient(token string, timeout time.Duration, hexLayers map[int]string, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		hexLayers:  hexLayers,
		pageSize:   defaultPageSize,
		chunkSize:  defaultChunkSize,
	}
}

// APIError is an error object returned in an otherwise successful response.
type APIError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("arcgis error %d: %s (%s)", e.Code, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("arcgis error %d: %s", e.Code, e.Message)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// get issues a GET with f=json and the token and decodes the response into v.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	params = c.withDefaults(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, v)
}

// post submits a form-encoded POST with f=json and the token.
func (c *Client) post(ctx context.Context, endpoint string, params url.Values, v any) error {
	params = c.withDefaults(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, v)
}

func (c *Client) withDefaults(params url.Values) url.Values {
	if params == nil {
		params = url.Values{}
	}
	params.Set("f", "json")
	if c.token != "" {
		params.Set("token", c.token)
	}
	return params
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("arcgis request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read arcgis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arcgis API error: status %d: %s", resp.StatusCode, body)
	}

	// The REST API reports most failures as HTTP 200 with an error object.
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return env.Error
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode arcgis response: %w", err)
	}
	return nil
}

// layerURL joins a FeatureServer URL and a layer or table id.
func layerURL(serviceURL string, index int) string {
	return fmt.Sprintf("%s/%d", strings.TrimRight(serviceURL, "/"), index)
}

// adminURL maps a FeatureServer layer URL to its admin endpoint, which is
// where truncate lives.
func adminURL(layer string) string {
	return strings.Replace(layer, "/rest/services/", "/rest/admin/services/", 1)
}
