package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RawClient downloads files without authentication from a raw-content host
// laid out as {base}/{repository}/{branch}/{path}.
type RawClient struct {
	baseURL    string
	repository string
	branch     string
	client     *http.Client
}

// NewRawClient creates a raw-content client.
func NewRawClient(baseURL, repository, branch string, timeout time.Duration) *RawClient {
	return &RawClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		repository: repository,
		branch:     branch,
		client:     newHTTPClient(timeout),
	}
}

// Fetch downloads path from the configured branch.
func (c *RawClient) Fetch(ctx context.Context, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.repository, url.PathEscape(c.branch), escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	default:
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
