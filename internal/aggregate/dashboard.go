package aggregate

import (
	"sort"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// DefaultTopN is the number of largest expenses a dashboard lists.
const DefaultTopN = 5

// Months returns the distinct months present in records, newest first.
func Months(records []domain.TransactionRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range records {
		m := r.Month()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// CategoriesOf returns the distinct expense categories in first-seen order.
func CategoriesOf(expenses []domain.ExpenseRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range expenses {
		c := e.CategoryName()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Detail returns the expenses newest first. Records of the same day keep
// their statement order.
func Detail(expenses []domain.ExpenseRecord) []domain.ExpenseRecord {
	out := make([]domain.ExpenseRecord, len(expenses))
	copy(out, expenses)
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out
}

// Selection is the caller's choice of month, categories and list length.
type Selection struct {
	Month      string
	Categories []string
	TopN       int
}

// Dashboard is every view of one selection.
type Dashboard struct {
	Month               string                 `json:"month"`
	AvailableMonths     []string               `json:"available_months"`
	AvailableCategories []string               `json:"available_categories"`
	SelectedCategories  []string               `json:"selected_categories"`
	Summary             Summary                `json:"summary"`
	ByCategory          []CategoryTotal        `json:"by_category"`
	ByDate              []DailyTotal           `json:"by_date"`
	Top                 []domain.ExpenseRecord `json:"top"`
	Transactions        []domain.ExpenseRecord `json:"transactions"`
}

// Build filters the set's expenses by sel and computes every view. An empty
// month selects the newest month in the set; a non-positive TopN uses
// DefaultTopN. A nil set produces an empty dashboard.
func Build(set *domain.ClassifiedSet, sel Selection) Dashboard {
	expenses := set.Expenses()
	months := Months(set.Records())

	month := sel.Month
	if month == "" && len(months) > 0 {
		month = months[0]
	}
	n := sel.TopN
	if n <= 0 {
		n = DefaultTopN
	}

	filtered := Filter(expenses, month, sel.Categories)
	selected := sel.Categories
	if len(selected) == 0 {
		selected = CategoriesOf(expenses)
	}

	return Dashboard{
		Month:               month,
		AvailableMonths:     months,
		AvailableCategories: CategoriesOf(expenses),
		SelectedCategories:  selected,
		Summary:             Summarize(filtered),
		ByCategory:          ByCategory(filtered),
		ByDate:              ByDate(filtered),
		Top:                 TopN(filtered, n),
		Transactions:        Detail(filtered),
	}
}
