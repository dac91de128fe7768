// Package navermap builds Naver Map search links for place names.
package navermap

import "net/url"

const searchBase = "https://map.naver.com/v5/search/"

// Link returns a map search URL for a place name.
func Link(placeName string) string {
	return searchBase + url.PathEscape(placeName)
}
