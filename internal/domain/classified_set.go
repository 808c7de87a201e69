package domain

import "fmt"

// ClassifiedSet is the full record sequence after every record received a
// label. It is immutable once built; accessors hand out copies.
type ClassifiedSet struct {
	records []TransactionRecord
}

// NewClassifiedSet validates that every record is classified and freezes
// the sequence in the given order.
func NewClassifiedSet(records []TransactionRecord) (*ClassifiedSet, error) {
	for i, r := range records {
		if !r.IsClassified() {
			return nil, ClassificationError("NewClassifiedSet",
				fmt.Errorf("record %d (%s) has no category", i, r.ExternalID))
		}
	}
	frozen := make([]TransactionRecord, len(records))
	copy(frozen, records)
	return &ClassifiedSet{records: frozen}, nil
}

// Len returns the number of records.
func (s *ClassifiedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns the records in parse order.
func (s *ClassifiedSet) Records() []TransactionRecord {
	if s == nil {
		return nil
	}
	out := make([]TransactionRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Expenses returns the expense view of every debit, in parse order.
func (s *ClassifiedSet) Expenses() []ExpenseRecord {
	if s == nil {
		return nil
	}
	out := make([]ExpenseRecord, 0, len(s.records))
	for _, r := range s.records {
		if e, ok := NewExpenseRecord(r); ok {
			out = append(out, e)
		}
	}
	return out
}
