// Package content produces cosmetic text for the game: asset news and
// prediction-market ideas. Nothing here feeds pricing or settlement, and
// every call degrades to a static fallback when the generator is slow,
// unavailable or rate limited.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/finsim/market-engine/internal/model"
)

// MarketIdea is a generated prediction-market question.
type MarketIdea struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Outcomes []string `json:"outcomes"`
}

// Generator is a generative text backend.
type Generator interface {
	AssetNews(ctx context.Context, ticker, name string) ([]model.NewsItem, error)
	MarketIdea(ctx context.Context, theme string) (*MarketIdea, error)
}

var ErrEmptyOutput = errors.New("content: generator returned no output")

// HTTPGenerator calls a JSON text-generation endpoint:
//
//	POST {url}  {"prompt": "...", "format": "json"}
//	200         {"output": <json or json-encoded string>}
type HTTPGenerator struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPGenerator creates a generator for the endpoint at url.
func NewHTTPGenerator(url, apiKey string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGenerator) AssetNews(ctx context.Context, ticker, name string) ([]model.NewsItem, error) {
	prompt := fmt.Sprintf(
		`Write three short market news items about %s (%s). Respond with a JSON array of objects `+
			`with keys "headline", "article", "sentiment" (positive, negative or neutral) and `+
			`"impactScore" (integer from -10 to 10).`, name, ticker)

	var items []model.NewsItem
	if err := g.generate(ctx, prompt, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g *HTTPGenerator) MarketIdea(ctx context.Context, theme string) (*MarketIdea, error) {
	prompt := fmt.Sprintf(
		`Invent one prediction-market question about %q. Respond with a JSON object with keys `+
			`"title", "category" and "outcomes" (an array of 2 to 4 short answers).`, theme)

	var idea MarketIdea
	if err := g.generate(ctx, prompt, &idea); err != nil {
		return nil, err
	}
	return &idea, nil
}

func (g *HTTPGenerator) generate(ctx context.Context, prompt string, dst any) error {
	body, err := json.Marshal(map[string]string{"prompt": prompt, "format": "json"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("content request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("content request: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var envelope struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return fmt.Errorf("content response: %w", err)
	}
	return decodeOutput(envelope.Output, dst)
}

// decodeOutput accepts the output either as JSON or as a string holding JSON.
func decodeOutput(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrEmptyOutput
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("content output: %w", err)
		}
		raw = []byte(s)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("content output: %w", err)
	}
	return nil
}
