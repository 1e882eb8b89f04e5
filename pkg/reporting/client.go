package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPath is the upload endpoint path used when Config.Path is empty.
const DefaultPath = "/setting/add_user_location"

// maxErrorBody caps how much of a failed response body ends up in the error.
const maxErrorBody = 512

// ErrUnexpectedStatus is wrapped by Submit when the endpoint answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Config holds the fixed transport settings of the upload endpoint.
type Config struct {
	BaseURL     string
	Path        string
	BearerToken string
	DeviceToken string
	DeviceType  string
	IsTestData  string
	Timeout     time.Duration
}

// Client uploads location reports to the remote endpoint.
type Client struct {
	endpoint   string
	headers    http.Header
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if cfg.BearerToken != "" {
		headers.Set("Authorization", "Bearer "+cfg.BearerToken)
	}
	// Device headers use underscores; set them verbatim instead of canonicalising.
	headers["device_token"] = []string{cfg.DeviceToken}
	headers["device_type"] = []string{cfg.DeviceType}
	headers["is_testdata"] = []string{cfg.IsTestData}

	return &Client{
		endpoint:   base.String() + path,
		headers:    headers,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Submit posts a single report as multipart form data and decodes the response.
func (c *Client) Submit(ctx context.Context, report ReportRequest) (ResponseSuccess, error) {
	body, contentType, err := encodeForm(report)
	if err != nil {
		return ResponseSuccess{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return ResponseSuccess{}, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ResponseSuccess{}, fmt.Errorf("submit report: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("endpoint", c.endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Report endpoint responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ResponseSuccess{}, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result ResponseSuccess
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ResponseSuccess{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func encodeForm(report ReportRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{FieldLocation, report.Address},
		{FieldLatitude, report.Latitude},
		{FieldLongitude, report.Longitude},
		{FieldLocationType, report.LocationType},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
