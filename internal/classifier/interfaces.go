package classifier

import "context"

// Oracle labels free-text transaction descriptions. One label comes back
// per input, in the same order.
type Oracle interface {
	ClassifyBatch(ctx context.Context, descriptions []string) ([]string, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, descriptions []string) ([]string, error)

// ClassifyBatch calls f.
func (f OracleFunc) ClassifyBatch(ctx context.Context, descriptions []string) ([]string, error) {
	return f(ctx, descriptions)
}

// ProgressFunc receives the completed fraction of a run, in [0, 1].
type ProgressFunc func(fraction float64)

// LabelPolicy decides what happens to labels outside the configured set.
type LabelPolicy int

const (
	// Permissive keeps whatever the oracle returned.
	Permissive LabelPolicy = iota
	// Strict fails the run on the first unknown label.
	Strict
)
