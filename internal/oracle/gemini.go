// Package oracle implements the classification oracle on a hosted
// language model.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/dvloznov/statement-insights/internal/domain"
)

const (
	// DefaultModelName is the Gemini model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"
	// DefaultTemperature keeps answers close to deterministic.
	DefaultTemperature = 0.3
	// DefaultItemConcurrency bounds parallel generations within one batch.
	DefaultItemConcurrency = 4
)

// Generator is the subset of the genai client the oracle needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the oracle settings.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	ItemConcurrency int
	Categories      []string
	Logger          zerolog.Logger
}

// GeminiOracle labels descriptions with one model generation per item.
type GeminiOracle struct {
	gen         Generator
	model       string
	temperature float32
	concurrency int
	categories  []string
	log         zerolog.Logger
}

// NewGeminiOracle creates a genai client for the Gemini API and wraps it.
// A missing API key is reported as a configuration error before any
// network call is attempted.
func NewGeminiOracle(ctx context.Context, cfg Config) (*GeminiOracle, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigurationError("NewGeminiOracle", errors.New("oracle API key is not configured"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.ConfigurationError("NewGeminiOracle", fmt.Errorf("create genai client: %w", err))
	}

	return NewWithGenerator(client.Models, cfg), nil
}

// NewWithGenerator builds an oracle on an existing generator.
func NewWithGenerator(gen Generator, cfg Config) *GeminiOracle {
	o := &GeminiOracle{
		gen:         gen,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		concurrency: cfg.ItemConcurrency,
		categories:  cfg.Categories,
		log:         cfg.Logger,
	}
	if o.model == "" {
		o.model = DefaultModelName
	}
	if o.concurrency < 1 {
		o.concurrency = DefaultItemConcurrency
	}
	if len(o.categories) == 0 {
		o.categories = defaultCategories()
	}
	return o
}

// ClassifyBatch returns one label per description, in input order.
// Items are generated in parallel; the first failure cancels the rest.
func (o *GeminiOracle) ClassifyBatch(ctx context.Context, descriptions []string) ([]string, error) {
	labels := make([]string, len(descriptions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, d := range descriptions {
		i, d := i, d
		g.Go(func() error {
			label, err := o.classifyOne(gctx, d)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			labels[i] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.OracleError("ClassifyBatch", err)
	}

	o.log.Debug().Int("items", len(descriptions)).Str("model", o.model).Msg("Batch labelled")
	return labels, nil
}

func (o *GeminiOracle) classifyOne(ctx context.Context, description string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(o.categories, description)}},
		},
	}
	temperature := o.temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}

	resp, err := o.gen.GenerateContent(ctx, o.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("empty response from model")
	}

	label := cleanLabel(resp.Text())
	if label == "" {
		return "", errors.New("empty response from model")
	}
	return label, nil
}
