// Package topic picks the theme an article run will cover.
package topic

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"tourpost/internal/logger"
)

// Filter narrows provider records to those matching the topic's angle.
// Zero-valued fields are ignored.
type Filter struct {
	Key      string  `yaml:"key"`
	Value    string  `yaml:"value"`
	Contains string  `yaml:"contains"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// Definition is one publishable theme tied to a data source.
type Definition struct {
	Source string `yaml:"source"` // camping, durunubi_walk, durunubi_bike
	Theme  string `yaml:"theme"`
	Angle  string `yaml:"angle"`
	Filter Filter `yaml:"filter"`
}

type topicsFile struct {
	Topics []Definition `yaml:"topics"`
}

// LoadTopics reads the topic catalog from a YAML file.
func LoadTopics(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics file: %w", err)
	}

	var f topicsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse topics file: %w", err)
	}
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("no topics defined in %s", path)
	}

	for i, t := range f.Topics {
		if t.Source == "" || t.Theme == "" {
			return nil, fmt.Errorf("topic %d missing source or theme", i)
		}
	}

	return f.Topics, nil
}

// HistoryDepth is how many recent source picks are kept, and recentExcluded
// is how many of those are barred from the next pick.
const (
	HistoryDepth   = 5
	recentExcluded = 2
)

// Selector picks a topic while avoiding the most recently used sources.
type Selector struct {
	topics []Definition
	rng    *rand.Rand
}

func NewSelector(topics []Definition, rng *rand.Rand) *Selector {
	return &Selector{topics: topics, rng: rng}
}

// Pick chooses a source not among the last two picks, then a topic within
// it, both uniformly. When every source is recent the exclusion is waived
// rather than failing the run.
func (s *Selector) Pick(recentSources []string) Definition {
	excluded := make(map[string]bool)
	start := len(recentSources) - recentExcluded
	if start < 0 {
		start = 0
	}
	for _, src := range recentSources[start:] {
		excluded[src] = true
	}

	bySource := make(map[string][]Definition)
	var sources []string
	for _, t := range s.topics {
		if excluded[t.Source] {
			continue
		}
		if _, ok := bySource[t.Source]; !ok {
			sources = append(sources, t.Source)
		}
		bySource[t.Source] = append(bySource[t.Source], t)
	}

	if len(sources) == 0 {
		logger.Warn("all topic sources recently used, ignoring history", "recent", recentSources)
		for _, t := range s.topics {
			if _, ok := bySource[t.Source]; !ok {
				sources = append(sources, t.Source)
			}
			bySource[t.Source] = append(bySource[t.Source], t)
		}
	}

	pool := bySource[sources[s.rng.Intn(len(sources))]]
	return pool[s.rng.Intn(len(pool))]
}
