package weatherapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"weatherbot/app/config"
	"weatherbot/app/report"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const maxBodySize = 1 << 20

// FetchError is a non-2xx answer of the weather API. Its message is shown
// to users verbatim.
type FetchError struct {
	StatusCode int
	Reason     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Something went wrong, failed to fetch weather API. "+
		"The API responded with status code %d '%s'.", e.StatusCode, e.Reason)
}

type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return New(cfg.WeatherAPI.BaseURL, cfg.WeatherAPI.Key, &http.Client{
		Timeout: cfg.WeatherAPI.Timeout,
	}), nil
}

func New(baseURL, key string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		key:        key,
		httpClient: httpClient,
	}
}

// Current fetches the current weather for a free-form query (usually a
// city name). The request is made once, without retries.
func (c *Client) Current(ctx context.Context, query string) (*report.Snapshot, error) {
	values := url.Values{}
	values.Set("key", c.key)
	values.Set("q", query)
	values.Set("aqi", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/current.json?"+values.Encode(), nil)
	if err != nil {
		return nil, oops.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, oops.
			With("query", query).
			Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Reason:     reason(resp),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, oops.Errorf("failed to read weather response: %w", err)
	}

	snapshot, err := report.ParseSnapshot(body)
	if err != nil {
		return nil, oops.
			With("query", query).
			Errorf("failed to parse weather response: %w", err)
	}

	return snapshot, nil
}

// reason extracts the reason phrase from the status line, e.g. "Bad Request"
// from "400 Bad Request".
func reason(resp *http.Response) string {
	phrase := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	return phrase
}
