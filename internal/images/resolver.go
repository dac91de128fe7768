// Package images assigns each selected item a photo that has never been
// published before, using URL identity and perceptual hashing to reject
// re-crops and re-encodes of already-used images.
package images

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corona10/goimagehash"

	"tourpost/internal/cache"
	"tourpost/internal/item"
	"tourpost/internal/logger"
	"tourpost/internal/provider"
	"tourpost/internal/ratelimit"
	"tourpost/internal/storage"
)

// BudgetSearch is the ratelimit budget name for photo-search calls.
const BudgetSearch = "search"

const maxImageBytes = 10 << 20

// Searcher is the photo lookup the resolver falls back to when an item
// carries no usable image of its own.
type Searcher interface {
	SearchPhotos(ctx context.Context, keyword string) ([]provider.Photo, error)
}

// Resolved pairs an item with the image accepted for it.
type Resolved struct {
	Item     item.Item
	ImageURL string
}

type Resolver struct {
	store     *storage.Store
	search    Searcher
	budget    *ratelimit.Budget
	cache     *cache.Cache
	client    *http.Client
	threshold int // max Hamming distance still considered a duplicate
}

func NewResolver(store *storage.Store, search Searcher, budget *ratelimit.Budget, threshold int, timeout time.Duration) *Resolver {
	return &Resolver{
		store:     store,
		search:    search,
		budget:    budget,
		cache:     cache.New(6 * time.Hour),
		client:    &http.Client{Timeout: timeout},
		threshold: threshold,
	}
}

// Close releases the resolver's internal cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

// Resolve assigns a fresh image to each item it can. Items with no
// acceptable candidate are omitted from the result; callers decide whether
// the remaining count is enough for an article.
func (r *Resolver) Resolve(ctx context.Context, items []item.Item, theme string, fallbackKeywords []string) ([]Resolved, error) {
	known, err := r.store.ImageHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hashes: %w", err)
	}

	var out []Resolved
	for _, it := range items {
		url, ok := r.resolveOne(ctx, it, theme, fallbackKeywords, &known, true)
		if !ok {
			logger.Warn("no fresh image found", "title", it.Title)
			continue
		}
		out = append(out, Resolved{Item: it, ImageURL: url})
	}
	return out, nil
}

// resolveOne walks the candidate chain lazily so search calls are only
// spent once the record's own photo and earlier search terms are exhausted.
// commit controls whether an accepted image is written to the store; the
// speculative pre-check runs the same chain with commit off.
func (r *Resolver) resolveOne(ctx context.Context, it item.Item, theme string, fallbackKeywords []string, known *[]uint64, commit bool) (string, bool) {
	tried := make(map[string]bool)

	try := func(candidate string) bool {
		if candidate == "" || tried[candidate] {
			return false
		}
		tried[candidate] = true

		hash, ok := r.hashIfFresh(ctx, candidate, *known)
		if !ok {
			return false
		}
		if commit {
			added, err := r.store.TryAddImage(ctx, candidate, hash)
			if err != nil {
				logger.Error("failed to record image", "url", candidate, "error", err)
				return false
			}
			if !added {
				// Lost the race to a concurrent run.
				return false
			}
		}
		*known = append(*known, hash)
		return true
	}

	if try(it.ImageURL) {
		return it.ImageURL, true
	}
	for _, q := range searchQueries(it, theme, fallbackKeywords) {
		for _, p := range r.searchCached(ctx, q) {
			if try(p.URL) {
				return p.URL, true
			}
		}
	}
	return "", false
}

// searchQueries orders the photo-search terms: the full place name, its
// leading token, the region, the theme, then the generic per-source
// keywords. Order is visible behavior — the first accepted hit wins.
func searchQueries(it item.Item, theme string, fallbackKeywords []string) []string {
	queries := []string{it.Title}
	if fields := strings.Fields(it.Title); len(fields) > 1 {
		queries = append(queries, fields[0])
	}
	if region := it.Region(); region != "" {
		queries = append(queries, region)
	}
	if theme != "" {
		queries = append(queries, theme)
	}
	queries = append(queries, fallbackKeywords...)
	return dedupeStrings(queries)
}

func (r *Resolver) searchCached(ctx context.Context, keyword string) []provider.Photo {
	key := "photos:" + keyword
	if v, ok := r.cache.Get(key); ok {
		return v.([]provider.Photo)
	}

	if err := r.budget.Take(BudgetSearch); err != nil {
		logger.Warn("photo search skipped", "keyword", keyword, "error", err)
		return nil
	}

	photos, err := r.search.SearchPhotos(ctx, keyword)
	if err != nil {
		logger.Error("photo search failed", "keyword", keyword, "error", err)
		return nil
	}

	r.cache.Set(key, photos)
	return photos
}

// hashIfFresh downloads and hashes a candidate, reporting false when the
// URL was used before, the hash is within threshold of a known image, or
// the image cannot be fetched. Unverifiable images are treated as
// duplicates: publishing a repeat is worse than skipping a candidate.
func (r *Resolver) hashIfFresh(ctx context.Context, url string, known []uint64) (uint64, bool) {
	used, err := r.store.HasImageURL(ctx, url)
	if err != nil || used {
		return 0, false
	}

	hash, err := r.fetchHash(ctx, url)
	if err != nil {
		logger.Debug("image rejected as unverifiable", "url", url, "error", err)
		return 0, false
	}

	h := goimagehash.NewImageHash(hash, goimagehash.PHash)
	for _, k := range known {
		dist, err := h.Distance(goimagehash.NewImageHash(k, goimagehash.PHash))
		if err == nil && dist <= r.threshold {
			return 0, false
		}
	}
	return hash, true
}

func (r *Resolver) fetchHash(ctx context.Context, url string) (uint64, error) {
	if v, ok := r.cache.Get("phash:" + url); ok {
		return v.(uint64), nil
	}

	hash, err := r.downloadHash(ctx, url)
	if err != nil {
		return 0, err
	}
	r.cache.Set("phash:"+url, hash)
	return hash, nil
}

func (r *Resolver) downloadHash(ctx context.Context, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}

	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, err
	}
	return h.GetHash(), nil
}

// CountAvailable runs the resolution logic speculatively, without writing
// to the store, and reports how many items would get a fresh image. Run
// before any generation spend so a topic that cannot be illustrated is
// retried cheaply; hashes fetched here are cached for the real resolve.
func (r *Resolver) CountAvailable(ctx context.Context, items []item.Item, theme string, fallbackKeywords []string) int {
	known, err := r.store.ImageHashes(ctx)
	if err != nil {
		logger.Error("failed to load known hashes", "error", err)
		return 0
	}

	count := 0
	for _, it := range items {
		if _, ok := r.resolveOne(ctx, it, theme, fallbackKeywords, &known, false); ok {
			count++
		}
	}
	return count
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
