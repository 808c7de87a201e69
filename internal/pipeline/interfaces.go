package pipeline

import (
	"context"

	"github.com/dvloznov/statement-insights/internal/classifier"
	"github.com/dvloznov/statement-insights/internal/domain"
)

// StatementLoader fetches raw statement bytes from a path or URI.
type StatementLoader interface {
	Load(ctx context.Context, uri string) ([]byte, error)
}

// StatementParser turns raw statement bytes into transaction records.
type StatementParser interface {
	Parse(raw []byte, encoding string) ([]domain.TransactionRecord, error)
}

// StatementParserFunc adapts a function to StatementParser.
type StatementParserFunc func(raw []byte, encoding string) ([]domain.TransactionRecord, error)

// Parse calls f.
func (f StatementParserFunc) Parse(raw []byte, encoding string) ([]domain.TransactionRecord, error) {
	return f(raw, encoding)
}

// TransactionClassifier labels every record of a statement.
type TransactionClassifier interface {
	ClassifySet(ctx context.Context, records []domain.TransactionRecord, opts ...classifier.RunOption) (*domain.ClassifiedSet, error)
}

// SessionPublisher installs a finished set as a session's data.
type SessionPublisher interface {
	Replace(sessionID string, set *domain.ClassifiedSet) error
}
