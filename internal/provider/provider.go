// Package provider fetches catalogs from the Korea Tourism Organization
// open APIs: GoCamping campgrounds, Durunubi trail courses and the photo
// gallery search service.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tourpost/internal/item"
	"tourpost/internal/logger"
)

const (
	baseURL = "https://apis.data.go.kr/B551011"

	// Data source tags. Topics reference these in their YAML definitions.
	SourceCamping = "camping"
	SourceWalk    = "durunubi_walk"
	SourceBike    = "durunubi_bike"
)

// Client talks to the open-API gateway.
type Client struct {
	serviceKey string
	maxRows    int
	httpClient *http.Client
}

func NewClient(serviceKey string, maxRows int, timeout time.Duration) *Client {
	return &Client{
		serviceKey: serviceKey,
		maxRows:    maxRows,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the shared response wrapper of the B551011 services.
type envelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      json.RawMessage `json:"items"`
			TotalCount int             `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

// Fetch returns the raw catalog for a data source tag.
func (c *Client) Fetch(ctx context.Context, source string) ([]item.Raw, error) {
	switch source {
	case SourceCamping:
		return c.FetchCamping(ctx)
	case SourceWalk:
		return c.FetchTrails(ctx, "DNWW")
	case SourceBike:
		return c.FetchTrails(ctx, "DNBW")
	}
	return nil, fmt.Errorf("unknown data source: %s", source)
}

// FetchCamping pulls the GoCamping campground catalog.
func (c *Client) FetchCamping(ctx context.Context) ([]item.Raw, error) {
	return c.fetchList(ctx, "/GoCamping/basedList", nil)
}

// FetchTrails pulls Durunubi courses. brdDiv selects the catalog:
// DNWW for walking routes, DNBW for cycling routes.
func (c *Client) FetchTrails(ctx context.Context, brdDiv string) ([]item.Raw, error) {
	return c.fetchList(ctx, "/Durunubi/courseList", url.Values{"brdDiv": {brdDiv}})
}

func (c *Client) fetchList(ctx context.Context, path string, extra url.Values) ([]item.Raw, error) {
	raw, err := c.request(ctx, path, extra)
	if err != nil {
		return nil, err
	}

	items, err := decodeItems(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s items: %w", path, err)
	}

	logger.Debug("fetched catalog", "path", path, "count", len(items))
	return items, nil
}

func (c *Client) request(ctx context.Context, path string, extra url.Values) (json.RawMessage, error) {
	q := url.Values{
		"serviceKey": {c.serviceKey},
		"numOfRows":  {strconv.Itoa(c.maxRows)},
		"pageNo":     {"1"},
		"MobileOS":   {"ETC"},
		"MobileApp":  {"tourpost"},
		"_type":      {"json"},
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	reqURL := baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if code := env.Response.Header.ResultCode; code != "0000" {
		return nil, fmt.Errorf("API error %s: %s", code, env.Response.Header.ResultMsg)
	}

	return env.Response.Body.Items, nil
}

// decodeItems unwraps body.items, which is an empty string on no results
// and {"item": ...} otherwise, where item is an object for a single hit
// and an array for several.
func decodeItems(raw json.RawMessage) ([]item.Raw, error) {
	if len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
		return nil, nil
	}

	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.Item) == 0 {
		return nil, nil
	}

	var list []item.Raw
	if err := json.Unmarshal(wrapper.Item, &list); err == nil {
		return list, nil
	}

	var single item.Raw
	if err := json.Unmarshal(wrapper.Item, &single); err != nil {
		return nil, err
	}
	return []item.Raw{single}, nil
}
