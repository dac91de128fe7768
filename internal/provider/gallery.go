package provider

import (
	"context"
	"net/url"

	"tourpost/internal/item"
	"tourpost/internal/logger"
)

// Photo is one hit from the tourism photo gallery.
type Photo struct {
	URL   string
	Title string
}

// SearchPhotos queries the photo gallery for a keyword and returns usable
// web-size image URLs.
func (c *Client) SearchPhotos(ctx context.Context, keyword string) ([]Photo, error) {
	raw, err := c.request(ctx, "/PhotoGalleryService1/gallerySearchList1", url.Values{
		"keyword": {keyword},
		"arrange": {"A"},
	})
	if err != nil {
		return nil, err
	}

	items, err := decodeItems(raw)
	if err != nil {
		return nil, err
	}

	var photos []Photo
	for _, r := range items {
		u := r.GetString("galWebImageUrl")
		if u == "" {
			continue
		}
		photos = append(photos, Photo{URL: item.ForceHTTPS(u), Title: r.GetString("galTitle")})
	}

	logger.Debug("photo search", "keyword", keyword, "hits", len(photos))
	return photos, nil
}
