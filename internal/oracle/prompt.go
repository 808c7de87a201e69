package oracle

import (
	"strings"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// buildPrompt renders the categorization instructions for a single item.
func buildPrompt(categories []string, item string) string {
	var b strings.Builder
	b.WriteString("Você é um analista de dados, trabalhando em um projeto de limpeza de dados.\n")
	b.WriteString("Seu trabalho é escolher uma categoria adequada para cada lançamento financeiro.\n\n")
	b.WriteString("Escolha uma dentre as seguintes categorias:\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nItem a categorizar: " + item + "\n\n")
	b.WriteString("Responda apenas com o nome da categoria, sem explicações.\n")
	return b.String()
}

// cleanLabel strips the wrapping models sometimes add around a one-word
// answer: code fences, quotes, a "Categoria:" prefix and a final period.
func cleanLabel(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep the first non-empty line only.
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}

	if i := strings.Index(s, ":"); i != -1 && strings.EqualFold(strings.TrimSpace(s[:i]), "categoria") {
		s = strings.TrimSpace(s[i+1:])
	}

	s = strings.TrimPrefix(s, "- ")
	s = strings.Trim(s, "\"'`*")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// defaultCategories is used when the oracle is configured without a set.
func defaultCategories() []string {
	out := make([]string, len(domain.Categories))
	copy(out, domain.Categories)
	return out
}
