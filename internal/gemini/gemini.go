// Package gemini wraps the Google Generative AI client for article
// generation and text embedding.
package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"tourpost/internal/item"
	"tourpost/internal/logger"
	"tourpost/internal/ratelimit"
	"tourpost/internal/topic"
)

// Budget names for the per-run call limits.
const (
	BudgetGenerate = "gemini"
	BudgetEmbed    = "embed"
)

type Client struct {
	client     *genai.Client
	model      string
	embedModel string
	budget     *ratelimit.Budget
}

func NewClient(ctx context.Context, apiKey, model, embedModel string, budget *ratelimit.Budget) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{
		client:     client,
		model:      model,
		embedModel: embedModel,
		budget:     budget,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateArticle writes the full HTML body for a regional roundup.
// Each place must appear as its own h3 heading so the assembler can anchor
// an image and info box under it.
func (c *Client) GenerateArticle(ctx context.Context, t topic.Definition, regionName string, items []item.Item) (string, error) {
	var places strings.Builder
	for i, it := range items {
		fmt.Fprintf(&places, "%d. %s\n", i+1, it.Title)
		if it.Intro != "" {
			fmt.Fprintf(&places, "   소개: %s\n", it.Intro)
		}
		if it.Address != "" {
			fmt.Fprintf(&places, "   주소: %s\n", it.Address)
		}
		if it.Environment != "" {
			fmt.Fprintf(&places, "   환경: %s\n", it.Environment)
		}
		if it.CampType != "" {
			fmt.Fprintf(&places, "   유형: %s\n", it.CampType)
		}
		if it.OpenSeason != "" {
			fmt.Fprintf(&places, "   운영시기: %s\n", it.OpenSeason)
		}
		if it.Facilities != "" {
			fmt.Fprintf(&places, "   시설: %s\n", it.Facilities)
		}
		if it.DistanceKm > 0 {
			fmt.Fprintf(&places, "   거리: %.1fkm\n", it.DistanceKm)
		}
		if it.Duration != "" {
			fmt.Fprintf(&places, "   소요시간: %s\n", it.Duration)
		}
		if it.Level != "" {
			fmt.Fprintf(&places, "   난이도: %s\n", it.Level)
		}
	}

	prompt := fmt.Sprintf(`당신은 한국 여행 전문 블로거입니다. 아래 정보를 바탕으로 블로그 글을 작성해 주세요.

주제: %s (%s)
지역: %s

소개할 장소:
%s
작성 규칙:
- 전체 글은 HTML로 작성합니다. 마크다운을 사용하지 마세요.
- 글 시작에 지역과 주제를 소개하는 도입부 2~3문단을 <p> 태그로 작성하세요.
- 각 장소는 반드시 <h3>번호. 장소명</h3> 형식의 제목으로 시작하고, 제공된 장소명을 그대로 사용하세요.
- 각 장소마다 2~3문단으로 특징과 방문 팁을 소개하세요. 제공된 정보에 없는 사실을 지어내지 마세요.
- <img>, <figure> 태그는 절대 넣지 마세요. 이미지는 별도로 삽입됩니다.
- 마지막에 전체를 정리하는 마무리 문단을 작성하세요.
- 친근하고 따뜻한 존댓말 문체를 사용하세요.`,
		t.Theme, t.Angle, regionName, places.String())

	return c.generate(ctx, prompt)
}

// GenerateTitle asks for a single blog post title.
func (c *Client) GenerateTitle(ctx context.Context, t topic.Definition, regionName string, count int) (string, error) {
	prompt := fmt.Sprintf(`한국 여행 블로그 글의 제목을 하나만 제안해 주세요.

주제: %s
지역: %s
소개하는 장소 수: %d곳

규칙:
- 제목 한 줄만 출력하세요. 따옴표나 번호를 붙이지 마세요.
- 30자 이내로 작성하세요.
- 지역 이름을 포함하세요.`,
		t.Theme, regionName, count)

	title, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return firstLine(title), nil
}

// GenerateExcerpt produces a short search-result description for the post.
func (c *Client) GenerateExcerpt(ctx context.Context, plainText string) (string, error) {
	if len([]rune(plainText)) > 1500 {
		plainText = string([]rune(plainText)[:1500])
	}
	prompt := fmt.Sprintf(`아래 블로그 글의 검색 결과용 요약문을 작성해 주세요.

규칙:
- 100자 이내 한 문장으로 출력하세요.
- HTML 태그 없이 순수 텍스트로 작성하세요.

본문:
%s`, plainText)

	excerpt, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return firstLine(excerpt), nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.budget.Take(BudgetGenerate); err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	cleaned := SanitizeArticle(CleanContent(text))
	if cleaned == "" {
		return "", fmt.Errorf("model %s returned no usable text", c.model)
	}

	logger.Debug("generated content", "model", c.model, "chars", len(cleaned))
	return cleaned, nil
}

// Embed returns the embedding vector for a text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.budget.Take(BudgetEmbed); err != nil {
		return nil, err
	}

	em := c.client.EmbeddingModel(c.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding from model %s", c.embedModel)
	}
	return res.Embedding.Values, nil
}

var (
	codeFenceRe = regexp.MustCompile("(?s)```(?:html)?\\s*(.*?)```")
	figureRe    = regexp.MustCompile(`(?is)<figure[^>]*>.*?</figure>`)
	imgRe       = regexp.MustCompile(`(?i)<img[^>]*>`)
	emptyParaRe = regexp.MustCompile(`(?i)<p[^>]*>\s*</p>`)
)

// SanitizeArticle removes markup the model was told not to produce but
// sometimes does anyway: image and figure tags (images are spliced in
// later against the dedup store) and empty paragraph shells.
func SanitizeArticle(text string) string {
	text = figureRe.ReplaceAllString(text, "")
	text = imgRe.ReplaceAllString(text, "")
	text = emptyParaRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CleanContent strips the markdown wrapping the model sometimes adds
// around HTML output.
func CleanContent(text string) string {
	text = strings.TrimSpace(text)

	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimPrefix(text, "```html")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
