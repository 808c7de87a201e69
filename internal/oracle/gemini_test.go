package oracle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// mockGenerator answers GenerateContent through GenerateContentFunc.
type mockGenerator struct {
	mu                  sync.Mutex
	prompts             []string
	models              []string
	temperatures        []float32
	GenerateContentFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	prompt := contents[0].Parts[0].Text
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)
	if config != nil && config.Temperature != nil {
		m.temperatures = append(m.temperatures, *config.Temperature)
	}
	m.mu.Unlock()

	text, err := m.GenerateContentFunc(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return textResponse(text), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

// itemOf extracts the item line from a rendered prompt.
func itemOf(prompt string) string {
	const marker = "Item a categorizar: "
	i := strings.Index(prompt, marker)
	rest := prompt[i+len(marker):]
	return rest[:strings.Index(rest, "\n")]
}

func TestNewGeminiOracle_MissingKey(t *testing.T) {
	o, err := NewGeminiOracle(context.Background(), Config{})
	assert.Nil(t, o)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestClassifyBatch_OrderAndSettings(t *testing.T) {
	answers := map[string]string{
		"PADARIA REAL":    "Alimentação",
		"UBER *TRIP":      "Transporte.",
		"FARMACIA SAO JO": "\"Saúde\"",
		"NETFLIX":         "```\nLazer\n```",
	}
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return answers[itemOf(prompt)], nil
		},
	}
	o := NewWithGenerator(gen, Config{Model: "gemini-test", Temperature: 0.3, ItemConcurrency: 2})

	got, err := o.ClassifyBatch(context.Background(), []string{"PADARIA REAL", "UBER *TRIP", "FARMACIA SAO JO", "NETFLIX"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alimentação", "Transporte", "Saúde", "Lazer"}, got)

	require.Len(t, gen.models, 4)
	for _, m := range gen.models {
		assert.Equal(t, "gemini-test", m)
	}
	for _, temp := range gen.temperatures {
		assert.InDelta(t, 0.3, temp, 1e-6)
	}
}

func TestClassifyBatch_Defaults(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) { return "Outros", nil },
	}
	o := NewWithGenerator(gen, Config{})
	assert.Equal(t, DefaultModelName, o.model)
	assert.Equal(t, DefaultItemConcurrency, o.concurrency)

	_, err := o.ClassifyBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	for _, c := range domain.Categories {
		assert.Contains(t, gen.prompts[0], "- "+c+"\n")
	}
}

func TestClassifyBatch_Empty(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) { return "Outros", nil },
	}
	o := NewWithGenerator(gen, Config{})

	got, err := o.ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, gen.prompts)
}

func TestClassifyBatch_Failures(t *testing.T) {
	tests := []struct {
		name   string
		answer func(prompt string) (string, error)
	}{
		{"api error", func(string) (string, error) { return "", errors.New("403 permission denied") }},
		{"blank answer", func(string) (string, error) { return "  \n", nil }},
		{"one item fails", func(p string) (string, error) {
			if itemOf(p) == "b" {
				return "", errors.New("quota exceeded")
			}
			return "Outros", nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) { return tt.answer(prompt) },
			}
			o := NewWithGenerator(gen, Config{ItemConcurrency: 1})

			got, err := o.ClassifyBatch(context.Background(), []string{"a", "b", "c"})
			assert.Nil(t, got)
			require.Error(t, err)
			assert.Equal(t, domain.KindOracle, domain.KindOf(err))
		})
	}
}

func TestClassifyBatch_ContextCanceled(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	o := NewWithGenerator(gen, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.ClassifyBatch(ctx, []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrOracle)
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Mercado", "Mercado"},
		{"  Mercado \n", "Mercado"},
		{"Mercado.", "Mercado"},
		{"\"Mercado\"", "Mercado"},
		{"'Lazer'", "Lazer"},
		{"**Lazer**", "Lazer"},
		{"Categoria: Moradia", "Moradia"},
		{"```\nServiços\n```", "Serviços"},
		{"```Serviços```", "Serviços"},
		{"Transferências para terceiros", "Transferências para terceiros"},
		{"Compras\nPorque é uma loja", "Compras"},
		{"- Telefone", "Telefone"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanLabel(tt.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt([]string{"A", "B"}, "COMPRA CARTAO")
	assert.Contains(t, p, "- A\n- B\n")
	assert.Contains(t, p, "Item a categorizar: COMPRA CARTAO\n")
	assert.Contains(t, p, "Responda apenas com o nome da categoria")
}
