package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TOUR_API_KEY", "tour-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("BLOGGER_BLOG_ID", "12345")
	t.Setenv("BLOGGER_TOKEN", "token")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.MinItems != 3 || cfg.MaxItems != 6 {
		t.Errorf("item bounds = %d/%d", cfg.MinItems, cfg.MaxItems)
	}
	if cfg.PhashThreshold != 6 {
		t.Errorf("PhashThreshold = %d", cfg.PhashThreshold)
	}
	if cfg.SimilarityThreshold != 0.95 {
		t.Errorf("SimilarityThreshold = %v", cfg.SimilarityThreshold)
	}
	if cfg.PublishDraft {
		t.Error("PublishDraft should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MIN_ITEMS", "4")
	t.Setenv("MAX_ITEMS", "8")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("PUBLISH_DRAFT", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MinItems != 4 || cfg.MaxItems != 8 {
		t.Errorf("item bounds = %d/%d", cfg.MinItems, cfg.MaxItems)
	}
	if cfg.SimilarityThreshold != 0.9 {
		t.Errorf("SimilarityThreshold = %v", cfg.SimilarityThreshold)
	}
	if !cfg.PublishDraft {
		t.Error("PublishDraft override ignored")
	}
}

func TestLoadRequiresKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing GEMINI_API_KEY")
	}
}

func TestValidateItemBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("MIN_ITEMS", "5")
	t.Setenv("MAX_ITEMS", "3")

	if _, err := Load(); err == nil {
		t.Error("expected error for MAX_ITEMS < MIN_ITEMS")
	}
}
