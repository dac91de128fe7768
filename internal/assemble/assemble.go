// Package assemble turns generated article HTML into the final post body:
// it anchors each place's image and info box under the matching heading,
// scrubs placeholder text, and appends the data-source notice.
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tourpost/internal/images"
	"tourpost/internal/item"
	"tourpost/internal/logger"
	"tourpost/internal/navermap"
)

// headingPrefixLen is how many leading runes of a place title must appear
// inside an h3 for the heading to count as that place's section. Generated
// headings often rephrase long titles, so matching the full title misses.
const headingPrefixLen = 8

// Assemble splices each place's media block under its heading and applies
// the final cleanup passes. Places whose heading cannot be found keep their
// text but get no image; the caller can check MissingHeadings beforehand.
func Assemble(html string, resolved []images.Resolved) string {
	for _, r := range resolved {
		block := mediaBlock(r)
		spliced, ok := insertAfterHeading(html, r.Item.Title, block)
		if !ok {
			logger.Warn("heading not found, image dropped", "title", r.Item.Title)
			continue
		}
		html = spliced
	}

	html = scrubPlaceholders(html)
	html = collapseBlankLines(html)
	return strings.TrimSpace(html) + "\n\n" + noticeHTML
}

// insertAfterHeading places block directly after the first h3 whose text
// contains the title prefix. Only the first occurrence is touched so a
// place mentioned again later does not get a second image.
func insertAfterHeading(html, title, block string) (string, bool) {
	re, err := headingPattern(title)
	if err != nil {
		return html, false
	}
	loc := re.FindStringIndex(html)
	if loc == nil {
		return html, false
	}
	return html[:loc[1]] + "\n" + block + html[loc[1]:], true
}

func headingPattern(title string) (*regexp.Regexp, error) {
	prefix := titlePrefix(title)
	if prefix == "" {
		return nil, fmt.Errorf("empty title")
	}
	// [^<] keeps the match inside one heading's text; a prose mention of
	// the title in an earlier section must not anchor it there.
	return regexp.Compile(`(?is)<h3[^>]*>[^<]*` + regexp.QuoteMeta(prefix) + `[^<]*</h3>`)
}

func titlePrefix(title string) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) > headingPrefixLen {
		runes = runes[:headingPrefixLen]
	}
	return strings.TrimSpace(string(runes))
}

// MissingHeadings reports which items have no matching h3 in the HTML.
// Run before committing images so a badly structured generation can be
// retried instead of published half-assembled.
func MissingHeadings(html string, items []item.Item) []string {
	var missing []string
	for _, it := range items {
		re, err := headingPattern(it.Title)
		if err != nil || re.FindStringIndex(html) == nil {
			missing = append(missing, it.Title)
		}
	}
	return missing
}

func mediaBlock(r images.Resolved) string {
	var b strings.Builder

	fmt.Fprintf(&b,
		`<figure style="text-align: center; margin: 16px 0;"><img src="%s" alt="%s" style="max-width: 100%%; border-radius: 8px;"/></figure>`+"\n",
		r.ImageURL, htmlEscape(r.Item.Title))

	b.WriteString(`<div style="background: #f8f9fa; border-radius: 8px; padding: 12px 16px; margin: 8px 0;">` + "\n")
	it := r.Item
	if it.Address != "" {
		fmt.Fprintf(&b, `<p>📍 주소: %s · <a href="%s" target="_blank">지도 보기</a></p>`+"\n",
			htmlEscape(it.Address), navermap.Link(it.Title))
	} else {
		fmt.Fprintf(&b, `<p>📍 <a href="%s" target="_blank">지도에서 위치 보기</a></p>`+"\n", navermap.Link(it.Title))
	}
	if it.Phone != "" {
		fmt.Fprintf(&b, `<p>📞 문의: %s</p>`+"\n", htmlEscape(it.Phone))
	}
	if it.Homepage != "" {
		fmt.Fprintf(&b, `<p>🔗 홈페이지: <a href="%s" target="_blank">%s</a></p>`+"\n", it.Homepage, it.Homepage)
	}
	if it.Pets != "" {
		fmt.Fprintf(&b, `<p>🐾 %s</p>`+"\n", htmlEscape(it.Pets))
	}
	if it.Facilities != "" {
		fmt.Fprintf(&b, `<p>🏕️ 시설: %s</p>`+"\n", htmlEscape(it.Facilities))
	}

	var course []string
	if it.DistanceKm > 0 {
		course = append(course, fmt.Sprintf("거리 %.1fkm", it.DistanceKm))
	}
	if it.Duration != "" {
		course = append(course, "소요시간 "+it.Duration)
	}
	if it.Level != "" {
		course = append(course, "난이도 "+it.Level)
	}
	if len(course) > 0 {
		fmt.Fprintf(&b, `<p>🚶 코스 정보: %s</p>`+"\n", htmlEscape(strings.Join(course, " / ")))
	}

	b.WriteString(`</div>`)
	return b.String()
}

var placeholderRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<p[^>]*>\s*주소\s*:?\s*(?:nan|none|정보\s*없음)\s*</p>`),
	regexp.MustCompile(`<p[^>]*>\s*주소 정보 없음\s*</p>`),
	regexp.MustCompile(`(?i)\s*주소\s*:\s*(?:nan|none)\s*`),
}

// scrubPlaceholders drops address lines the upstream data filled with
// "nan" style sentinels that slipped through normalization.
func scrubPlaceholders(html string) string {
	for _, re := range placeholderRes {
		html = re.ReplaceAllString(html, "")
	}
	return html
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(html string) string {
	return blankLinesRe.ReplaceAllString(html, "\n\n")
}

const noticeHTML = `<p style="font-size: 12px; color: #888;">※ 본 글의 장소 정보는 한국관광공사 공공데이터를 바탕으로 작성되었습니다. 운영 시간과 이용 조건은 방문 전 공식 채널에서 확인해 주세요.</p>`

// PlainText strips all markup, returning whitespace-normalized text for
// embedding and excerpt generation. Text is collected per block element so
// words at element boundaries do not run together.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var parts []string
	doc.Find("h1, h2, h3, h4, p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, doc.Text())
	}

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
