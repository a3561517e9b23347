package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/finsim/market-engine/internal/metrics"
	"github.com/finsim/market-engine/internal/model"
)

// Cache stores generated content between calls.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any)
}

// Service wraps a Generator with rate limiting, caching, normalisation and
// static fallbacks. Its methods never fail.
type Service struct {
	gen     Generator
	cache   Cache
	limiter *rate.Limiter
	timeout time.Duration
}

// NewService creates a content service. gen, cache and limiter may each be
// nil; with a nil generator every call returns the fallback.
func NewService(gen Generator, cache Cache, limiter *rate.Limiter) *Service {
	return &Service{
		gen:     gen,
		cache:   cache,
		limiter: limiter,
		timeout: 8 * time.Second,
	}
}

// PerMinute returns a limiter allowing n generator calls per minute.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

// FallbackNews is served when news cannot be generated.
func FallbackNews() []model.NewsItem {
	return []model.NewsItem{{
		Headline:    "News feed unavailable",
		Article:     "Market news could not be loaded right now. Please try again later.",
		Sentiment:   model.SentimentNeutral,
		ImpactScore: 0,
	}}
}

// FallbackIdea is served when a market idea cannot be generated.
func FallbackIdea(theme string) MarketIdea {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = "the market rally"
	}
	return MarketIdea{
		Title:    fmt.Sprintf("Will %s happen by the closing date?", theme),
		Category: "General",
		Outcomes: []string{"Yes", "No"},
	}
}

// AssetNews returns generated news for an asset, or FallbackNews.
func (s *Service) AssetNews(ctx context.Context, ticker, name string) []model.NewsItem {
	key := "news:" + ticker
	var cached []model.NewsItem
	if s.cache != nil && s.cache.Get(ctx, key, &cached) && len(cached) > 0 {
		return cached
	}
	if !s.allow("news") {
		return FallbackNews()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	items, err := s.gen.AssetNews(ctx, ticker, name)
	if err != nil {
		metrics.ContentFallbacks.WithLabelValues("news").Inc()
		slog.Warn("news generation failed, using fallback", "ticker", ticker, "err", err)
		return FallbackNews()
	}
	items = NormalizeNews(items)
	if len(items) == 0 {
		metrics.ContentFallbacks.WithLabelValues("news").Inc()
		return FallbackNews()
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, items)
	}
	return items
}

// MarketIdea returns a generated market question, or FallbackIdea.
func (s *Service) MarketIdea(ctx context.Context, theme string) MarketIdea {
	if !s.allow("idea") {
		return FallbackIdea(theme)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	idea, err := s.gen.MarketIdea(ctx, theme)
	if err != nil {
		metrics.ContentFallbacks.WithLabelValues("idea").Inc()
		slog.Warn("market idea generation failed, using fallback", "theme", theme, "err", err)
		return FallbackIdea(theme)
	}
	norm, ok := NormalizeIdea(*idea)
	if !ok {
		metrics.ContentFallbacks.WithLabelValues("idea").Inc()
		slog.Warn("market idea rejected, using fallback", "theme", theme, "title", idea.Title)
		return FallbackIdea(theme)
	}
	return norm
}

// allow reports whether a generator call may be made now. A rate-limited
// call is answered from the fallback rather than waiting.
func (s *Service) allow(kind string) bool {
	if s.gen == nil {
		return false
	}
	if s.limiter != nil && !s.limiter.Allow() {
		metrics.ContentFallbacks.WithLabelValues(kind).Inc()
		slog.Warn("content generation rate limited", "kind", kind)
		return false
	}
	return true
}

// NormalizeNews drops items without a headline, maps unknown sentiments to
// neutral and clamps impact scores to [-10, 10].
func NormalizeNews(items []model.NewsItem) []model.NewsItem {
	out := make([]model.NewsItem, 0, len(items))
	for _, it := range items {
		it.Headline = strings.TrimSpace(it.Headline)
		if it.Headline == "" {
			continue
		}
		it.Article = strings.TrimSpace(it.Article)
		switch s := model.Sentiment(strings.ToLower(strings.TrimSpace(string(it.Sentiment)))); s {
		case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
			it.Sentiment = s
		default:
			it.Sentiment = model.SentimentNeutral
		}
		it.ImpactScore = max(-10, min(10, it.ImpactScore))
		out = append(out, it)
	}
	return out
}

// NormalizeIdea trims the idea, removes blank and duplicate outcomes and
// keeps at most four. It reports false when the idea has no title or fewer
// than two outcomes remain.
func NormalizeIdea(idea MarketIdea) (MarketIdea, bool) {
	idea.Title = strings.TrimSpace(idea.Title)
	idea.Category = strings.TrimSpace(idea.Category)
	if idea.Category == "" {
		idea.Category = "General"
	}

	seen := make(map[string]bool)
	outcomes := make([]string, 0, len(idea.Outcomes))
	for _, o := range idea.Outcomes {
		o = strings.TrimSpace(o)
		k := strings.ToLower(o)
		if o == "" || seen[k] {
			continue
		}
		seen[k] = true
		outcomes = append(outcomes, o)
		if len(outcomes) == 4 {
			break
		}
	}
	idea.Outcomes = outcomes
	return idea, idea.Title != "" && len(outcomes) >= 2
}
