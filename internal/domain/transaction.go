package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType tells income and expense apart.
type TransactionType string

const (
	// Income is any record with a strictly positive amount.
	Income TransactionType = "Income"
	// Expense is everything else, including zero-amount records.
	Expense TransactionType = "Expense"
)

// TransactionRecord is one statement entry as produced by the statement parser.
// Category stays nil until the record has gone through classification.
type TransactionRecord struct {
	Date        civil.Date      `json:"date"`        // posting date, no time of day
	Amount      decimal.Decimal `json:"amount"`      // positive = credit, negative = debit
	Description string          `json:"description"` // memo as it appears in the statement
	ExternalID  string          `json:"external_id"` // FITID; uniqueness is not enforced
	AccountID   string          `json:"account_id"`  // account the entry was listed under

	Category *string `json:"category"`
}

// Month returns the YYYY-MM key used by the dashboard filters.
func (t TransactionRecord) Month() string {
	return fmt.Sprintf("%04d-%02d", t.Date.Year, int(t.Date.Month))
}

// Type derives Income or Expense from the sign of the amount.
func (t TransactionRecord) Type() TransactionType {
	if t.Amount.IsPositive() {
		return Income
	}
	return Expense
}

// IsExpense reports whether the record is a debit.
func (t TransactionRecord) IsExpense() bool {
	return t.Amount.IsNegative()
}

// IsClassified reports whether a category label has been assigned.
func (t TransactionRecord) IsClassified() bool {
	return t.Category != nil
}

// CategoryName returns the label, or "" for unclassified records.
func (t TransactionRecord) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// WithCategory returns a copy of the record carrying the given label.
func (t TransactionRecord) WithCategory(label string) TransactionRecord {
	l := label
	t.Category = &l
	return t
}

// ExpenseRecord is the derived view of a debit with its absolute amount.
// It is built fresh for every aggregation request.
type ExpenseRecord struct {
	TransactionRecord
	AbsoluteAmount decimal.Decimal `json:"absolute_amount"`
}

// NewExpenseRecord builds the expense view of a debit. The second return
// value is false for records that are not expenses.
func NewExpenseRecord(t TransactionRecord) (ExpenseRecord, bool) {
	if !t.IsExpense() {
		return ExpenseRecord{}, false
	}
	return ExpenseRecord{TransactionRecord: t, AbsoluteAmount: t.Amount.Neg()}, true
}
