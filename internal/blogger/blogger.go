// Package blogger publishes posts through the Blogger v3 REST API.
package blogger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tourpost/internal/logger"
)

const apiBase = "https://www.googleapis.com/blogger/v3"

type Client struct {
	blogID     string
	token      string
	httpClient *http.Client
}

func NewClient(blogID, token string, timeout time.Duration) *Client {
	return &Client{
		blogID:     blogID,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Post is the payload for a new blog post.
type Post struct {
	Title   string
	Content string
	Labels  []string
}

type postRequest struct {
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

type postResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Publish creates the post and returns its public URL. With draft set the
// post is saved unpublished for manual review.
func (c *Client) Publish(ctx context.Context, post Post, draft bool) (string, error) {
	payload, err := json.Marshal(postRequest{
		Kind:    "blogger#post",
		Title:   post.Title,
		Content: post.Content,
		Labels:  post.Labels,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post: %w", err)
	}

	url := fmt.Sprintf("%s/blogs/%s/posts/", apiBase, c.blogID)
	if draft {
		url += "?isDraft=true"
	}

	maxRetries := 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := c.post(ctx, url, payload)
		if err == nil {
			logger.Info("post published", "id", result.ID, "url", result.URL, "draft", draft)
			return result.URL, nil
		}
		lastErr = err

		if attempt < maxRetries {
			backoff := time.Duration(attempt*attempt) * time.Second
			logger.Warn("publish attempt failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("failed to publish after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, url string, payload []byte) (*postResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Blogger API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result postResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}
