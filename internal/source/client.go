package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skaldhq/skald/internal/model"
)

// Client lists the items a knowledge source currently publishes for an
// owner and downloads their files. The page cursor is opaque and owned by
// the remote API.
type Client interface {
	ListItems(ctx context.Context, owner string, cursor string, limit int) ([]*model.RemoteItem, string, error)
	Download(ctx context.Context, fileURL string, dst string) error
}

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// New returns a Client against the given knowledge-source base URL. The
// token is optional; when set it is sent as a bearer credential.
func New(baseURL, token string) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type listItemsResponse struct {
	Items      []*model.RemoteItem `json:"items"`
	NextCursor string              `json:"next_cursor"`
}

func (c *httpClient) ListItems(ctx context.Context, owner string, cursor string, limit int) ([]*model.RemoteItem, string, error) {
	endpoint := c.baseURL + "/knowledge/items"
	query := url.Values{}
	query.Set("owner", owner)
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("list items failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out listItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", err
	}
	return out.Items, out.NextCursor, nil
}

func (c *httpClient) Download(ctx context.Context, fileURL string, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download %s failed: %s: %s", fileURL, resp.Status, strings.TrimSpace(string(body)))
	}
	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dst)
		return err
	}
	return file.Close()
}
