package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://wttr.in"
	DefaultTimeout = 10 * time.Second

	// wttr.in one-line formats: condition and temperature, and the
	// compact three-field report
	formatCurrent  = "%C %t"
	formatForecast = "3"

	maxBodyBytes = 64 << 10
)

// StatusError reports a non-200 answer from the weather service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather service returned status %d", e.StatusCode)
}

// Client fetches one-line reports from a wttr.in compatible service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects wttr.in and a
// non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch requests <base>/<lower(city)>?format=<format> and returns the
// trimmed body. A non-200 status yields *StatusError.
func (c *Client) Fetch(ctx context.Context, city, format string) (string, error) {
	query := url.Values{"format": {format}}
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(strings.ToLower(city)), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read weather response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	return strings.TrimSpace(string(body)), nil
}
