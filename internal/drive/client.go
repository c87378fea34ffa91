package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/photoatlas/backend/internal/models"
)

// imageQuery filters the listing server-side to non-trashed image files.
const imageQuery = "mimeType contains 'image/' and trashed=false"

// listFields limits the listing response to the fields the sync
// pipeline actually consumes.
const listFields = "nextPageToken, files(id, name, mimeType, createdTime)"

// Client talks to the Drive v3 REST API with a caller-supplied bearer
// token. It implements Lister and Downloader.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Drive client. drive.api_url may point at a mock
// server in development; it defaults to the real API.
func NewClient() *Client {
	baseURL := viper.GetString("drive.api_url")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/drive/v3"
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// listResponse is the wire shape of one page of the files endpoint.
type listResponse struct {
	NextPageToken string             `json:"nextPageToken"`
	Files         []models.DriveFile `json:"files"`
}

// ListAll implements Lister. It accumulates every page before
// returning so the caller gets a stable total for reporting; a failure
// on any page fails the whole listing rather than silently truncating.
func (c *Client) ListAll(ctx context.Context, accessToken string) ([]models.DriveFile, error) {
	var files []models.DriveFile
	pageToken := ""

	for {
		page, err := c.listPage(ctx, accessToken, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to list drive files: %w", err)
		}

		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) listPage(ctx context.Context, accessToken, pageToken string) (*listResponse, error) {
	url := fmt.Sprintf("%s/files", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	q := req.URL.Query()
	q.Set("q", imageQuery)
	q.Set("fields", listFields)
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &page, nil
}

// Download implements Downloader: fetches the raw bytes of one file
// via alt=media.
func (c *Client) Download(ctx context.Context, fileID, accessToken string) ([]byte, error) {
	url := fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d downloading %s: %s", resp.StatusCode, fileID, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}

	return data, nil
}
