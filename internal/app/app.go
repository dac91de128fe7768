// Package app wires the pipeline together and drives one publishing run:
// pick a topic, select a region, resolve images, generate the article,
// gate it for similarity and publish it.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"tourpost/internal/assemble"
	"tourpost/internal/blogger"
	"tourpost/internal/config"
	"tourpost/internal/dupgate"
	"tourpost/internal/gemini"
	"tourpost/internal/images"
	"tourpost/internal/item"
	"tourpost/internal/logger"
	"tourpost/internal/metrics"
	"tourpost/internal/provider"
	"tourpost/internal/ratelimit"
	"tourpost/internal/region"
	"tourpost/internal/retry"
	"tourpost/internal/storage"
	"tourpost/internal/title"
	"tourpost/internal/topic"
)

// ErrTooSimilar means the generated article duplicated an earlier post.
var ErrTooSimilar = errors.New("article too similar to a published post")

// ErrNoTopic means no topic produced enough fresh material within the
// retry budget.
var ErrNoTopic = errors.New("no topic produced enough material")

// fallbackKeywords are the photo-search terms tried per source when an
// item has no image of its own.
var fallbackKeywords = map[string][]string{
	provider.SourceCamping: {"캠핑", "캠핑장", "자연", "숲", "야영"},
	provider.SourceWalk:    {"걷기", "산책", "트레킹", "둘레길", "해안", "산"},
	provider.SourceBike:    {"자전거", "라이딩", "자전거길", "강변", "해안"},
}

// sourceLabels are the blog labels attached per source.
var sourceLabels = map[string]string{
	provider.SourceCamping: "캠핑",
	provider.SourceWalk:    "걷기여행",
	provider.SourceBike:    "자전거여행",
}

type App struct {
	cfg       *config.Config
	store     *storage.Store
	provider  *provider.Client
	gemini    *gemini.Client
	resolver  *images.Resolver
	gate      *dupgate.Gate
	publisher *blogger.Client
	selector  *topic.Selector
	titleGen  *title.Generator
	aliases   region.Aliases
	budget    *ratelimit.Budget
	metrics   *metrics.Metrics
	rng       *rand.Rand
}

func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	topics, err := topic.LoadTopics(cfg.ThemesConfigPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	aliases, err := region.LoadAliases(cfg.RegionsConfigPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	budget := ratelimit.NewBudget(map[string]int{
		gemini.BudgetGenerate: cfg.MaxGeminiRequests,
		images.BudgetSearch:   cfg.MaxSearchRequests,
	})

	gem, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbeddingModel, budget)
	if err != nil {
		store.Close()
		return nil, err
	}

	prov := provider.NewClient(cfg.TourAPIKey, cfg.ProviderMaxRows, cfg.RequestTimeout)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &App{
		cfg:       cfg,
		store:     store,
		provider:  prov,
		gemini:    gem,
		resolver:  images.NewResolver(store, prov, budget, cfg.PhashThreshold, cfg.RequestTimeout),
		gate:      dupgate.NewGate(store, gem, cfg.SimilarityThreshold),
		publisher: blogger.NewClient(cfg.BloggerBlogID, cfg.BloggerToken, cfg.RequestTimeout),
		selector:  topic.NewSelector(topics, rng),
		titleGen:  title.NewGenerator(rng, nil),
		aliases:   aliases,
		budget:    budget,
		metrics:   m,
		rng:       rng,
	}, nil
}

func (a *App) Close() {
	a.resolver.Close()
	a.gemini.Close()
	a.store.Close()
}

// selection is the material a run settled on before any generation spend.
type selection struct {
	topic     topic.Definition
	regionKey string
	items     []item.Item
}

// Run executes one full publishing cycle.
func (a *App) Run(ctx context.Context) error {
	a.metrics.RunStarted()
	a.budget.Reset()

	err := a.run(ctx)
	if err != nil {
		a.metrics.RunFailed()
	}
	return err
}

func (a *App) run(ctx context.Context) error {
	sel, err := a.selectMaterial(ctx)
	if err != nil {
		return err
	}
	logger.Info("material selected",
		"source", sel.topic.Source, "theme", sel.topic.Theme,
		"region", sel.regionKey, "items", len(sel.items))

	resolved, err := a.resolver.Resolve(ctx, sel.items, sel.topic.Theme, fallbackKeywords[sel.topic.Source])
	if err != nil {
		return err
	}
	a.metrics.ImagesResolved(len(resolved), len(sel.items)-len(resolved))
	if len(resolved) < a.cfg.MinImages {
		return fmt.Errorf("only %d fresh images for %d items, need %d",
			len(resolved), len(sel.items), a.cfg.MinImages)
	}

	// Only places with an image make it into the article.
	picks := make([]item.Item, len(resolved))
	for i, r := range resolved {
		picks[i] = r.Item
	}

	html, err := a.gemini.GenerateArticle(ctx, sel.topic, sel.regionKey, picks)
	if err != nil {
		return fmt.Errorf("article generation failed: %w", err)
	}
	if missing := assemble.MissingHeadings(html, picks); len(missing) > 0 {
		logger.Warn("generated article missing headings", "titles", missing)
	}

	body := assemble.Assemble(html, resolved)

	plain, err := assemble.PlainText(body)
	if err != nil {
		return err
	}

	embedding, ok, err := a.gate.Check(ctx, plain)
	if err != nil {
		return err
	}
	if !ok {
		a.metrics.ArticleRejectedSimilar()
		return ErrTooSimilar
	}

	postTitle := a.makeTitle(ctx, sel, len(picks))

	if excerpt, err := a.gemini.GenerateExcerpt(ctx, plain); err == nil && excerpt != "" {
		body = fmt.Sprintf("<p><i>%s</i></p>\n\n%s", excerpt, body)
	} else if err != nil {
		logger.Warn("excerpt generation failed, publishing without one", "error", err)
	}

	post := blogger.Post{
		Title:   postTitle,
		Content: body,
		Labels:  a.labels(sel),
	}
	url, err := a.publisher.Publish(ctx, post, a.cfg.PublishDraft)
	if err != nil {
		return err
	}

	a.record(ctx, sel, picks, postTitle, embedding)
	a.metrics.PostPublished()
	logger.Info("✅ run complete", "title", postTitle, "url", url)
	return nil
}

// selectMaterial retries topic selection until a region yields enough
// fresh places and available images, or the retry budget runs out.
func (a *App) selectMaterial(ctx context.Context) (*selection, error) {
	recentSources, err := a.store.RecentHistory(ctx, storage.HistorySource, topic.HistoryDepth)
	if err != nil {
		return nil, err
	}
	recentRegions, err := a.store.RecentHistory(ctx, storage.HistoryRegion, region.HistoryDepth)
	if err != nil {
		return nil, err
	}
	recentSeries, err := a.store.RecentHistory(ctx, storage.HistorySeries, region.SeriesHistoryDepth)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= a.cfg.MaxRetry; attempt++ {
		t := a.selector.Pick(recentSources)
		sel, err := a.tryTopic(ctx, t, recentRegions, recentSeries)
		if err == nil {
			a.appendSelectionHistory(ctx, sel)
			return sel, nil
		}

		a.metrics.TopicRetried()
		logger.Warn("topic attempt failed",
			"attempt", attempt, "source", t.Source, "theme", t.Theme, "error", err)
		// Steer the next pick away from the source that just failed.
		recentSources = append(recentSources, t.Source)
	}

	return nil, ErrNoTopic
}

// appendSelectionHistory commits the source and region to history as soon
// as a selection is settled, so an overlapping or failed run still steers
// the next one away from the same material.
func (a *App) appendSelectionHistory(ctx context.Context, sel *selection) {
	if err := a.store.AppendHistory(ctx, storage.HistorySource, sel.topic.Source, topic.HistoryDepth); err != nil {
		logger.Error("failed to append source history", "error", err)
	}
	if err := a.store.AppendHistory(ctx, storage.HistoryRegion, sel.regionKey, region.HistoryDepth); err != nil {
		logger.Error("failed to append region history", "error", err)
	}

	seen := make(map[string]bool)
	for _, it := range sel.items {
		if it.Series == "" || seen[it.Series] {
			continue
		}
		seen[it.Series] = true
		if err := a.store.AppendHistory(ctx, storage.HistorySeries, it.Series, region.SeriesHistoryDepth); err != nil {
			logger.Error("failed to append series history", "error", err)
		}
	}
}

func (a *App) tryTopic(ctx context.Context, t topic.Definition, recentRegions, recentSeries []string) (*selection, error) {
	var raws []item.Raw
	err := retry.WithRetry(ctx, retry.Config{
		MaxAttempts: a.cfg.RetryAttempts,
		Delay:       a.cfg.RetryDelay,
		Backoff:     true,
	}, func() error {
		var fetchErr error
		raws, fetchErr = a.provider.Fetch(ctx, t.Source)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("catalog fetch failed: %w", err)
	}

	raws = topic.ApplyFilter(raws, t.Filter)

	items := a.normalize(raws, t.Source)
	items, err = a.dropUsedPlaces(ctx, items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no unused places left for source %s", t.Source)
	}

	items = dropRecentSeries(items, recentSeries)

	items = a.aliases.Canonicalize(items)
	groups := region.Group(items)
	for key, g := range groups {
		groups[key] = region.DedupeSeries(g)
	}

	regionKey, group, err := region.Select(groups, a.cfg.MinItems, recentRegions, a.rng)
	if err != nil {
		return nil, err
	}

	picks := region.Sample(group, a.cfg.MinItems, a.cfg.MaxItems, a.rng)

	available := a.resolver.CountAvailable(ctx, picks, t.Theme, fallbackKeywords[t.Source])
	if available < a.cfg.MinImages {
		return nil, fmt.Errorf("region %s has only %d likely-fresh images, need %d",
			regionKey, available, a.cfg.MinImages)
	}

	return &selection{topic: t, regionKey: regionKey, items: picks}, nil
}

func (a *App) normalize(raws []item.Raw, source string) []item.Item {
	var items []item.Item
	for _, r := range raws {
		var it item.Item
		var ok bool
		if source == provider.SourceCamping {
			it, ok = item.NormalizeCamping(r)
		} else {
			it, ok = item.NormalizeTrail(r, source)
		}
		if ok {
			items = append(items, it)
		}
	}
	return items
}

// dropRecentSeries removes trail segments whose route was featured in a
// recent article, failing open when that would empty the pool.
func dropRecentSeries(items []item.Item, recent []string) []item.Item {
	if len(recent) == 0 {
		return items
	}
	recentSet := make(map[string]bool, len(recent))
	for _, s := range recent {
		recentSet[s] = true
	}

	var out []item.Item
	for _, it := range items {
		if it.Series != "" && recentSet[it.Series] {
			continue
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		logger.Warn("every route recently covered, ignoring series history")
		return items
	}
	return out
}

func (a *App) dropUsedPlaces(ctx context.Context, items []item.Item) ([]item.Item, error) {
	var fresh []item.Item
	for _, it := range items {
		used, err := a.store.HasPlace(ctx, storage.NormalizeTitle(it.Title), it.Source)
		if err != nil {
			return nil, err
		}
		if !used {
			fresh = append(fresh, it)
		}
	}
	return fresh, nil
}

func (a *App) makeTitle(ctx context.Context, sel *selection, count int) string {
	t, err := a.gemini.GenerateTitle(ctx, sel.topic, sel.regionKey, count)
	if err == nil && t != "" {
		return t
	}
	logger.Warn("model titling failed, using pattern title", "error", err)

	recent, histErr := a.store.RecentHistory(ctx, storage.HistoryTitle, title.HistoryDepth)
	if histErr != nil {
		recent = nil
	}
	return a.titleGen.Generate(sel.regionKey, sel.topic.Theme, count, recent)
}

func (a *App) labels(sel *selection) []string {
	labels := []string{"국내여행"}
	if l, ok := sourceLabels[sel.topic.Source]; ok {
		labels = append(labels, l)
	}
	if sel.regionKey != "" {
		labels = append(labels, sel.regionKey)
	}
	return labels
}

// record persists everything a successful publish changes: used places,
// the post embedding and the title history. Failures here are logged but
// do not undo the publish.
func (a *App) record(ctx context.Context, sel *selection, picks []item.Item, postTitle string, embedding []float32) {
	if err := a.store.AddPost(ctx, postTitle, embedding); err != nil {
		logger.Error("failed to record post", "error", err)
	}
	for _, it := range picks {
		if _, err := a.store.AddPlace(ctx, storage.NormalizeTitle(it.Title), it.Source, sel.regionKey); err != nil {
			logger.Error("failed to record place", "title", it.Title, "error", err)
		}
	}
	if err := a.store.AppendHistory(ctx, storage.HistoryTitle, postTitle, title.HistoryDepth); err != nil {
		logger.Error("failed to append title history", "error", err)
	}
}
