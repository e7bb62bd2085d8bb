// Package generation produces a best-effort natural-language product
// recommendation from ranked search results, via an OpenAI-compatible
// chat-completion API. It never fails a search: any error, timeout, or
// open circuit yields a fixed placeholder string.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/searchlab/prodsearch/internal/corpus"
	"github.com/searchlab/prodsearch/internal/search/ranker"
	"github.com/searchlab/prodsearch/pkg/config"
	"github.com/searchlab/prodsearch/pkg/metrics"
)

// Placeholder is returned whenever the model cannot be reached or the
// client is not configured.
const Placeholder = "Recommendations are not available. Check your credentials (.env file) or account limits."

const promptTemplate = `You are a product expert helping a user choose from a list of retrieved products.

Rules:
- You MUST choose the best product ONLY from the list below.
- Do NOT invent products or features that are not mentioned.
- Refer to products only by their Name (not by ID).
- When comparing products, use concrete attributes such as category, brand, seller and description details.
- Be specific about WHY the best product fits the user's request and WHY the alternative could also be a good option.

Retrieved products:
%s

User request:
%s

Output (use exactly these labels):
Best product: <name of the best product, or "none">
Why: <2-4 sentences explaining why this product is the best match, using concrete attributes>
Alternative: <1-3 sentences giving a second good option from the list>

If no product fits, output only:
No results for this search, maybe try: <suggest a related product search>`

// Recommender wraps an OpenAI-compatible chat model behind a timeout and
// a circuit breaker.
type Recommender struct {
	model   llms.Model
	breaker *gobreaker.CircuitBreaker
	docs    corpus.Corpus
	timeout time.Duration
	topN    int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds a Recommender from config. A missing API key disables the
// client entirely; Recommend then always returns the placeholder.
func New(cfg config.GenerationConfig, docs corpus.Corpus, m *metrics.Metrics) (*Recommender, error) {
	r := &Recommender{
		docs:    docs,
		timeout: cfg.Timeout,
		topN:    cfg.TopN,
		metrics: m,
		logger:  slog.Default().With("component", "recommender"),
	}

	if !cfg.Enabled || cfg.APIKey == "" {
		r.logger.Warn("recommendation client disabled", "enabled", cfg.Enabled)
		return r, nil
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	r.model = model

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "RecommendationAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return r, nil
}

// Recommend asks the model to pick the best product for the query from the
// top ranked results. It never returns an error: on any failure the fixed
// placeholder string comes back instead.
func (r *Recommender) Recommend(ctx context.Context, query string, results []ranker.ScoredDoc) string {
	if r.model == nil {
		r.metrics.GenerationTotal.WithLabelValues("skipped").Inc()
		return Placeholder
	}

	top := results
	if len(top) > r.topN {
		top = top[:r.topN]
	}
	prompt := fmt.Sprintf(promptTemplate, r.formatResults(top), query)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.breaker.Execute(func() (any, error) {
		content := []llms.MessageContent{
			{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextPart(prompt)},
			},
		}
		response, err := r.model.GenerateContent(callCtx, content)
		if err != nil {
			return nil, err
		}
		if len(response.Choices) == 0 {
			return nil, fmt.Errorf("model returned no choices")
		}
		return strings.TrimSpace(response.Choices[0].Content), nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			r.metrics.GenerationTotal.WithLabelValues("skipped").Inc()
			r.logger.Debug("recommendation skipped, circuit open")
		} else {
			r.metrics.GenerationTotal.WithLabelValues("error").Inc()
			r.logger.Error("recommendation failed", "error", err)
		}
		return Placeholder
	}

	r.metrics.GenerationTotal.WithLabelValues("ok").Inc()
	return out.(string)
}

// formatResults renders the ranked products as a plain-text list for the
// prompt, truncating long descriptions.
func (r *Recommender) formatResults(results []ranker.ScoredDoc) string {
	if len(results) == 0 {
		return "No products were retrieved."
	}

	var sb strings.Builder
	for _, res := range results {
		doc, ok := r.docs[res.DocID]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, " - Name: %s | ID: %s\n", doc.Title, doc.PID)
		if doc.Brand != "" {
			fmt.Fprintf(&sb, "   Brand: %s\n", doc.Brand)
		}
		if doc.Category != "" {
			fmt.Fprintf(&sb, "   Category: %s\n", doc.Category)
		}
		if doc.SubCategory != "" {
			fmt.Fprintf(&sb, "   Subcategory: %s\n", doc.SubCategory)
		}
		if doc.Seller != "" {
			fmt.Fprintf(&sb, "   Seller: %s\n", doc.Seller)
		}
		if desc := doc.Description; desc != "" {
			if len(desc) > 220 {
				desc = desc[:217] + "..."
			}
			fmt.Fprintf(&sb, "   Description: %s\n", desc)
		}
		fmt.Fprintf(&sb, "   Retrieval score: %.4f\n", res.Score)
	}
	return sb.String()
}
