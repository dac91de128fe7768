// Package item normalizes raw open-API records into the shape the
// article pipeline works with.
package item

import (
	"fmt"
	"strconv"
	"strings"
)

// Raw is one record as decoded from a provider response. Field presence
// and types vary between sources, so access goes through the helpers below.
type Raw map[string]any

// GetString returns a cleaned string field; placeholder values the
// upstream data uses for "unknown" come back empty.
func (r Raw) GetString(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	switch strings.ToLower(s) {
	case "", "nan", "none", "null", "-", "–":
		return ""
	}
	return s
}

// GetFloat parses a numeric field, tolerating string-typed numbers.
func (r Raw) GetFloat(key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Item is a normalized place or course ready for selection and assembly.
type Item struct {
	Title    string
	Source   string
	Province string
	District string
	Address  string
	Intro    string
	Phone    string
	Homepage string

	// Camping only
	Pets        string
	Facilities  string
	Environment string
	CampType    string
	OpenSeason  string

	// Trail only
	Series     string // parent route name; one segment per route per article
	DistanceKm float64
	Duration   string
	Level      string

	ImageURL string
}

// Region returns the "province district" label used for grouping.
func (it Item) Region() string {
	if it.District == "" {
		return it.Province
	}
	return it.Province + " " + it.District
}

// NormalizeCamping maps a GoCamping record to an Item. Records without a
// usable title are rejected.
func NormalizeCamping(r Raw) (Item, bool) {
	title := r.GetString("facltNm")
	if title == "" {
		return Item{}, false
	}

	intro := r.GetString("lineIntro")
	if intro == "" {
		intro = firstSentences(r.GetString("intro"), 2)
	}

	it := Item{
		Title:       title,
		Source:      "camping",
		Province:    r.GetString("doNm"),
		District:    r.GetString("sigunguNm"),
		Address:     r.GetString("addr1"),
		Intro:       intro,
		Phone:       r.GetString("tel"),
		Homepage:    cleanHomepage(r.GetString("homepage")),
		Pets:        normalizePets(r.GetString("animalCmgCl")),
		Facilities:  r.GetString("sbrsCl"),
		Environment: r.GetString("lctCl"),
		CampType:    r.GetString("induty"),
		OpenSeason:  r.GetString("operPdCl"),
		ImageURL:    ForceHTTPS(r.GetString("firstImageUrl")),
	}
	return it, true
}

// NormalizeTrail maps a Durunubi course record to an Item. The source tag
// distinguishes walking and cycling catalogs.
func NormalizeTrail(r Raw, source string) (Item, bool) {
	title := r.GetString("crsKorNm")
	if title == "" {
		return Item{}, false
	}

	province, district := splitSigun(r.GetString("sigun"))

	intro := r.GetString("crsSummary")
	if intro == "" {
		intro = firstSentences(r.GetString("crsContents"), 2)
	}

	it := Item{
		Title:      title,
		Source:     source,
		Province:   province,
		District:   district,
		Address:    r.GetString("sigun"),
		Intro:      intro,
		Series:     r.GetString("routeIdx"),
		DistanceKm: r.GetFloat("crsDstnc"),
		Duration:   formatDuration(r.GetString("crsTotlRqrmHour")),
		Level:      normalizeLevel(r.GetString("crsLevel")),
	}
	return it, true
}

// cleanHomepage keeps only plain http(s) URLs. The upstream field sometimes
// carries anchor markup or bare hostnames.
func cleanHomepage(raw string) string {
	if raw == "" {
		return ""
	}
	if i := strings.Index(raw, "href="); i >= 0 {
		rest := raw[i+len("href="):]
		rest = strings.TrimLeft(rest, `"'`)
		for j, c := range rest {
			if c == '"' || c == '\'' || c == ' ' {
				rest = rest[:j]
				break
			}
		}
		raw = rest
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return ""
	}
	return raw
}

func normalizePets(raw string) string {
	switch {
	case raw == "":
		return ""
	case strings.Contains(raw, "불가"):
		return "반려동물 동반 불가"
	case strings.Contains(raw, "가능"):
		return "반려동물 동반 " + raw
	}
	return raw
}

// normalizeLevel maps the numeric course grade to a reader-facing label.
func normalizeLevel(raw string) string {
	switch raw {
	case "1":
		return "쉬움"
	case "2":
		return "보통"
	case "3":
		return "어려움"
	}
	return raw
}

// formatDuration renders a minute count as "N시간 M분".
func formatDuration(raw string) string {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return raw
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d분", m)
	case m == 0:
		return fmt.Sprintf("%d시간", h)
	}
	return fmt.Sprintf("%d시간 %d분", h, m)
}

// ForceHTTPS upgrades plain-http image links. The catalogs still hand out
// http URLs that break on an https blog page.
func ForceHTTPS(url string) string {
	if strings.HasPrefix(url, "http://") {
		return "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// splitSigun separates "경기 가평군" style labels into province and district.
func splitSigun(raw string) (string, string) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var out strings.Builder
	count := 0
	for _, r := range text {
		out.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			count++
			if count >= n {
				break
			}
		}
	}
	return strings.TrimSpace(out.String())
}
