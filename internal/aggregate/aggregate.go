// Package aggregate derives the dashboard views (totals, per-category and
// per-day sums, largest expenses) from a classified transaction set.
//
// Every function here is pure: inputs are never modified and an empty
// input yields an empty or zeroed result.
package aggregate

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// Filterable is anything that can be selected by month and category.
type Filterable interface {
	Month() string
	CategoryName() string
}

// Filter keeps the items of the given month whose category is in
// categories, preserving their relative order. An empty categories list
// applies no category filter.
func Filter[T Filterable](items []T, month string, categories []string) []T {
	var allowed map[string]struct{}
	if len(categories) > 0 {
		allowed = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			allowed[c] = struct{}{}
		}
	}

	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Month() != month {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[it.CategoryName()]; !ok {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// Summary holds the headline figures for a filtered expense sequence.
type Summary struct {
	TotalAbsoluteAmount decimal.Decimal `json:"total_absolute_amount"`
	TransactionCount    int             `json:"transaction_count"`
	AverageAmount       decimal.Decimal `json:"average_amount"`
	TopCategory         string          `json:"top_category"`
	TopCategoryAmount   decimal.Decimal `json:"top_category_amount"`
}

// Summarize computes total, count, average and the category with the
// largest summed amount. Ties on that amount go to the lexically smallest
// category name.
func Summarize(expenses []domain.ExpenseRecord) Summary {
	var s Summary
	if len(expenses) == 0 {
		return s
	}

	for _, e := range expenses {
		s.TotalAbsoluteAmount = s.TotalAbsoluteAmount.Add(e.AbsoluteAmount)
	}
	s.TransactionCount = len(expenses)
	s.AverageAmount = s.TotalAbsoluteAmount.Div(decimal.NewFromInt(int64(s.TransactionCount)))

	// ByCategory is ordered by amount desc then name, so the head is the winner.
	top := ByCategory(expenses)[0]
	s.TopCategory = top.Category
	s.TopCategoryAmount = top.Total
	return s
}

// CategoryTotal is the summed absolute amount of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// ByCategory partitions expenses by category. Every category present in
// the input appears exactly once. Results are ordered by total descending,
// then by name.
func ByCategory(expenses []domain.ExpenseRecord) []CategoryTotal {
	index := make(map[string]int)
	out := make([]CategoryTotal, 0)
	for _, e := range expenses {
		name := e.CategoryName()
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, CategoryTotal{Category: name})
		}
		out[i].Total = out[i].Total.Add(e.AbsoluteAmount)
		out[i].Count++
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// DailyTotal is the summed absolute amount of one posting date.
type DailyTotal struct {
	Date  civil.Date      `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// ByDate sums expenses per distinct date, ascending by date.
func ByDate(expenses []domain.ExpenseRecord) []DailyTotal {
	index := make(map[civil.Date]int)
	out := make([]DailyTotal, 0)
	for _, e := range expenses {
		i, ok := index[e.Date]
		if !ok {
			i = len(out)
			index[e.Date] = i
			out = append(out, DailyTotal{Date: e.Date})
		}
		out[i].Total = out[i].Total.Add(e.AbsoluteAmount)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// TopN returns up to n expenses with the largest absolute amount. Equal
// amounts keep their original relative order. n <= 0 yields an empty slice.
func TopN(expenses []domain.ExpenseRecord, n int) []domain.ExpenseRecord {
	if n <= 0 {
		return []domain.ExpenseRecord{}
	}
	sorted := make([]domain.ExpenseRecord, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AbsoluteAmount.GreaterThan(sorted[j].AbsoluteAmount)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
