package domain

import "strings"

// Categories is the closed label set the oracle is instructed to choose
// from, in the order the prompt lists them.
var Categories = []string{
	"Alimentação",
	"Receitas",
	"Saúde",
	"Mercado",
	"Educação",
	"Compras",
	"Transporte",
	"Investimento",
	"Transferências para terceiros",
	"Telefone",
	"Moradia",
	"Lazer",
	"Serviços",
	"Outros",
}

// NormalizeCategory folds case and surrounding whitespace for comparison.
func NormalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// CanonicalCategory returns the configured spelling of a label and whether
// the label belongs to the set at all.
func CanonicalCategory(label string) (string, bool) {
	norm := NormalizeCategory(label)
	for _, c := range Categories {
		if NormalizeCategory(c) == norm {
			return c, true
		}
	}
	return "", false
}

// IsKnownCategory reports whether label is one of Categories.
func IsKnownCategory(label string) bool {
	_, ok := CanonicalCategory(label)
	return ok
}
