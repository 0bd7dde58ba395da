// Package gifs wraps the external GIF search provider.
package gifs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://tenor.googleapis.com/v2"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type GIF struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url,omitempty"`
	Title      string `json:"title,omitempty"`
}

type providerResponse struct {
	Results []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		MediaFormats map[string]struct {
			URL string `json:"url"`
		} `json:"media_formats"`
	} `json:"results"`
}

// Trending returns the provider's current trending GIFs.
func (c *Client) Trending(limit int) ([]GIF, error) {
	return c.fetch("/featured", url.Values{}, limit)
}

// Search queries the provider.
func (c *Client) Search(query string, limit int) ([]GIF, error) {
	if query == "" {
		return c.Trending(limit)
	}
	return c.fetch("/search", url.Values{"q": []string{query}}, limit)
}

func (c *Client) fetch(path string, params url.Values, limit int) ([]GIF, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gifs: no API key configured")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	params.Set("key", c.apiKey)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("media_filter", "gif,tinygif")

	resp, err := c.client.Get(c.baseURL + path + "?" + params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gifs: provider returned %d", resp.StatusCode)
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	out := make([]GIF, 0, len(body.Results))
	for _, r := range body.Results {
		g := GIF{ID: r.ID, Title: r.Title}
		if f, ok := r.MediaFormats["gif"]; ok {
			g.URL = f.URL
		}
		if f, ok := r.MediaFormats["tinygif"]; ok {
			g.PreviewURL = f.URL
		}
		if g.URL == "" {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}
