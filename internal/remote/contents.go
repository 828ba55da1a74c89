package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentsClient reads and writes one repository file through an authenticated
// contents API (GET/PUT /repos/{repository}/contents/{path}).
type ContentsClient struct {
	baseURL    string
	repository string
	branch     string
	token      string
	client     *http.Client
}

// NewContentsClient creates a contents API client.
func NewContentsClient(baseURL, repository, branch, token string, timeout time.Duration) *ContentsClient {
	return &ContentsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		repository: repository,
		branch:     branch,
		token:      token,
		client:     newHTTPClient(timeout),
	}
}

type contentResponse struct {
	SHA         string `json:"sha"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// Fetch returns the current bytes of path.
func (c *ContentsClient) Fetch(ctx context.Context, path string) ([]byte, error) {
	meta, err := c.stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if meta.Encoding == "base64" && meta.Content != "" {
		data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(meta.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to decode content of %s: %w", path, err)
		}
		return data, nil
	}
	// Large files come without inline content.
	if meta.DownloadURL == "" {
		return nil, fmt.Errorf("no content or download url for %s", path)
	}
	return c.download(ctx, meta.DownloadURL)
}

// Update replaces an existing file. It returns ErrNotFound when the path does not exist.
func (c *ContentsClient) Update(ctx context.Context, path string, data []byte, message string) error {
	meta, err := c.stat(ctx, path)
	if err != nil {
		return err
	}
	return c.put(ctx, path, putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  c.branch,
		SHA:     meta.SHA,
	})
}

// Create adds a file that does not exist yet.
func (c *ContentsClient) Create(ctx context.Context, path string, data []byte, message string) error {
	return c.put(ctx, path, putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  c.branch,
	})
}

func (c *ContentsClient) stat(ctx context.Context, path string) (*contentResponse, error) {
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", c.baseURL, c.repository, escapePath(path), c.branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp, path); err != nil {
		return nil, err
	}

	var meta contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contents response: %w", err)
	}
	return &meta, nil
}

func (c *ContentsClient) put(ctx context.Context, path string, body putRequest) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	u := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, c.repository, escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return statusError(resp, path)
}

func (c *ContentsClient) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := statusError(resp, u); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (c *ContentsClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
}

func statusError(resp *http.Response, what string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: status %d: %w", what, resp.StatusCode, ErrUnauthorized)
	default:
		return fmt.Errorf("%s: received unexpected status code: %d", what, resp.StatusCode)
	}
}
