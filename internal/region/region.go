// Package region groups normalized items by administrative region and
// selects the group an article will cover.
package region

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tourpost/internal/item"
	"tourpost/internal/logger"
)

// ErrNoCandidates means no region had enough items for an article.
var ErrNoCandidates = errors.New("no region with enough items")

// HistoryDepth is how many recently covered regions are avoided;
// SeriesHistoryDepth is the same bound for trail routes.
const (
	HistoryDepth       = 3
	SeriesHistoryDepth = 4
)

// seriesDedupFloor is the minimum pool size below which the one-segment-
// per-route rule is relaxed to keep an article possible at all.
const seriesDedupFloor = 5

// Aliases canonicalizes province names. The upstream catalogs disagree on
// spelling (강원 vs 강원특별자치도 and the like).
type Aliases map[string]string

type aliasFile struct {
	Provinces map[string]string `yaml:"provinces"`
}

// LoadAliases reads the province alias table from a YAML file. A missing
// file yields an empty table, not an error.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("region alias file missing, using raw province names", "path", path)
			return Aliases{}, nil
		}
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}
	return Aliases(f.Provinces), nil
}

// Canonicalize rewrites each item's province through the alias table.
// Items missing a province fall back to scanning their address for a
// known province name.
func (a Aliases) Canonicalize(items []item.Item) []item.Item {
	out := make([]item.Item, len(items))
	for i, it := range items {
		if it.Province == "" {
			it.Province = a.fromAddress(it.Address)
		}
		if canon, ok := a[it.Province]; ok {
			it.Province = canon
		}
		out[i] = it
	}
	return out
}

func (a Aliases) fromAddress(address string) string {
	if address == "" {
		return ""
	}
	aliases := make([]string, 0, len(a))
	for alias := range a {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	// Road addresses lead with the province, so a prefix match wins over
	// a mention of another province further into the address.
	for _, alias := range aliases {
		canon := a[alias]
		if strings.HasPrefix(address, canon) || strings.HasPrefix(address, alias) {
			return canon
		}
	}
	for _, alias := range aliases {
		canon := a[alias]
		if strings.Contains(address, canon) || strings.Contains(address, alias) {
			return canon
		}
	}
	return ""
}

// Group buckets items by their region label. Items with no province are
// dropped; they cannot be placed on a map or grouped meaningfully.
func Group(items []item.Item) map[string][]item.Item {
	groups := make(map[string][]item.Item)
	for _, it := range items {
		if it.Province == "" {
			continue
		}
		key := it.Region()
		groups[key] = append(groups[key], it)
	}
	return groups
}

// DedupeSeries keeps one segment per parent route. Articles covering a
// trail region read badly when half the picks are legs of the same course.
// Small pools are exempt so a sparse region can still fill an article.
func DedupeSeries(items []item.Item) []item.Item {
	seen := make(map[string]bool)
	var out []item.Item
	for _, it := range items {
		if it.Series == "" {
			out = append(out, it)
			continue
		}
		if seen[it.Series] {
			continue
		}
		seen[it.Series] = true
		out = append(out, it)
	}
	if len(out) < seriesDedupFloor {
		return items
	}
	return out
}

// Select picks a region holding at least minItems items, avoiding recently
// covered regions when other choices exist.
func Select(groups map[string][]item.Item, minItems int, recent []string, rng *rand.Rand) (string, []item.Item, error) {
	recentSet := make(map[string]bool, len(recent))
	for _, r := range recent {
		recentSet[r] = true
	}

	var eligible, fresh []string
	for key, g := range groups {
		if len(g) < minItems {
			continue
		}
		eligible = append(eligible, key)
		if !recentSet[key] {
			fresh = append(fresh, key)
		}
	}
	if len(eligible) == 0 {
		return "", nil, ErrNoCandidates
	}

	pool := fresh
	if len(pool) == 0 {
		logger.Warn("all eligible regions recently covered, ignoring history", "recent", recent)
		pool = eligible
	}
	sort.Strings(pool) // deterministic order under a seeded rng

	key := pool[rng.Intn(len(pool))]
	return key, groups[key], nil
}

// Sample draws the items the article will feature: k items without
// replacement, k uniform in [min, min(max, len(items))].
func Sample(items []item.Item, min, max int, rng *rand.Rand) []item.Item {
	if len(items) <= min {
		return items
	}

	upper := max
	if len(items) < upper {
		upper = len(items)
	}
	k := min + rng.Intn(upper-min+1)

	idx := rng.Perm(len(items))[:k]
	sort.Ints(idx) // preserve catalog order in the article
	out := make([]item.Item, 0, k)
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}
