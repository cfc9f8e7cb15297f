package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scythe504/linkrace-backend/internal"
	"github.com/scythe504/linkrace-backend/internal/game"
)

// PathClient calls the shortest-path service:
//
//	GET {base}/paths?source=..&target=..  -> 200 {"length", "path_count", "example_path"} | 404
type PathClient struct {
	baseURL string
	http    *http.Client
}

func NewPathClient(baseURL string, timeout time.Duration) *PathClient {
	return &PathClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *PathClient) FetchShortestPaths(ctx context.Context, source, target string) (*internal.PathInfo, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("target", target)

	var info internal.PathInfo
	status, err := getJSON(ctx, c.http, c.baseURL+"/paths?"+q.Encode(), &info)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, game.ErrPathNotFound
	}
	return &info, nil
}

// PreviewClient calls the content preview service:
//
//	GET {base}/preview?ref=..  -> 200 {"extract": "..."}
type PreviewClient struct {
	baseURL string
	http    *http.Client
}

func NewPreviewClient(baseURL string, timeout time.Duration) *PreviewClient {
	return &PreviewClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type previewResponse struct {
	Extract string `json:"extract"`
}

func (c *PreviewClient) FetchPreview(ctx context.Context, ref string) (string, error) {
	q := url.Values{}
	q.Set("ref", ref)

	var resp previewResponse
	status, err := getJSON(ctx, c.http, c.baseURL+"/preview?"+q.Encode(), &resp)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", game.ErrTitleNotFound
	}
	return strings.TrimSpace(resp.Extract), nil
}

// getJSON decodes a 200 body into out. A 404 is returned as a status without error.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", game.ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil
	case resp.StatusCode != http.StatusOK:
		return resp.StatusCode, fmt.Errorf("%w: status %d", game.ErrLookupUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
