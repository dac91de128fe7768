// Package title generates post titles from patterns. It is the fallback
// used when model titling fails, and keeps titles from repeating across
// recent posts.
package title

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// HistoryDepth is how many recent titles are checked for repeats.
const HistoryDepth = 10

var seasonWords = map[string][]string{
	"spring": {"봄맞이", "봄나들이", "봄"},
	"summer": {"여름", "여름휴가", "한여름"},
	"autumn": {"가을", "가을 감성", "단풍철"},
	"winter": {"겨울", "겨울 감성", "연말"},
}

var moodWords = []string{"힐링", "감성", "숨은", "분위기 좋은", "여유로운"}

type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

func NewGenerator(rng *rand.Rand, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rng, now: now}
}

// Generate builds a title for a regional roundup, avoiding any title in
// recent. When every attempt collides the month is appended to force
// uniqueness.
func (g *Generator) Generate(regionName, theme string, count int, recent []string) string {
	used := make(map[string]bool, len(recent))
	for _, t := range recent {
		used[t] = true
	}

	for attempt := 0; attempt < 10; attempt++ {
		t := g.build(regionName, theme, count)
		if !used[t] {
			return t
		}
	}

	t := g.build(regionName, theme, count)
	return fmt.Sprintf("%s (%d월)", t, int(g.now().Month()))
}

func (g *Generator) build(regionName, theme string, count int) string {
	season := g.pick(seasonWords[seasonKey(g.now().Month())])
	mood := g.pick(moodWords)

	patterns := []string{
		fmt.Sprintf("%s %s %s BEST %d", regionName, mood, theme, count),
		fmt.Sprintf("%s %s %s 추천 %d곳", season, regionName, theme, count),
		fmt.Sprintf("%s에서 즐기는 %s %s %d선", regionName, season, theme, count),
		fmt.Sprintf("%s 가득한 %s %s 총정리", mood, regionName, theme),
		fmt.Sprintf("%s %s, 이번 주말엔 %s 어때요?", regionName, theme, mood),
	}
	return strings.TrimSpace(patterns[g.rng.Intn(len(patterns))])
}

func (g *Generator) pick(words []string) string {
	return words[g.rng.Intn(len(words))]
}

func seasonKey(m time.Month) string {
	switch {
	case m >= time.March && m <= time.May:
		return "spring"
	case m >= time.June && m <= time.August:
		return "summer"
	case m >= time.September && m <= time.November:
		return "autumn"
	}
	return "winter"
}
