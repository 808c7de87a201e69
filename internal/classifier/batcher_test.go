package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// mockOracle records every call and answers through ClassifyBatchFunc.
type mockOracle struct {
	mu                sync.Mutex
	calls             [][]string
	ClassifyBatchFunc func(ctx context.Context, descriptions []string) ([]string, error)
}

func (m *mockOracle) ClassifyBatch(ctx context.Context, descriptions []string) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), descriptions...))
	m.mu.Unlock()
	if m.ClassifyBatchFunc != nil {
		return m.ClassifyBatchFunc(ctx, descriptions)
	}
	return echoLabels(descriptions), nil
}

func (m *mockOracle) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// echoLabels derives a label from each description so positions can be checked.
func echoLabels(descriptions []string) []string {
	out := make([]string, len(descriptions))
	for i, d := range descriptions {
		out[i] = "label:" + d
	}
	return out
}

func makeRecords(n int) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, n)
	for i := range out {
		out[i] = domain.TransactionRecord{
			Date:        civil.Date{Year: 2024, Month: time.January, Day: 1 + i%28},
			Amount:      decimal.NewFromInt(int64(-(i + 1))),
			Description: fmt.Sprintf("tx-%03d", i),
			ExternalID:  fmt.Sprintf("id-%d", i),
		}
	}
	return out
}

func TestChunks(t *testing.T) {
	tests := []struct {
		n, size int
		want    []Chunk
	}{
		{0, 20, nil},
		{5, 20, []Chunk{{0, 5}}},
		{20, 20, []Chunk{{0, 20}}},
		{21, 20, []Chunk{{0, 20}, {20, 21}}},
		{7, 3, []Chunk{{0, 3}, {3, 6}, {6, 7}}},
		{3, 1, []Chunk{{0, 1}, {1, 2}, {2, 3}}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			got := Chunks(tt.n, tt.size)
			assert.Equal(t, tt.want, got)

			total := 0
			for _, c := range got {
				total += c.Len()
				assert.LessOrEqual(t, c.Len(), tt.size)
			}
			assert.Equal(t, tt.n, total)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&mockOracle{}, WithBatchSize(0))
	assert.Error(t, err)

	b, err := New(&mockOracle{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, b.batchSize)
}

func TestClassify_CallCountAndOrder(t *testing.T) {
	for _, tc := range []struct {
		n, size int
	}{
		{0, 20}, {1, 20}, {20, 20}, {45, 20}, {10, 3}, {7, 1},
	} {
		for _, concurrency := range []int{1, 4} {
			name := fmt.Sprintf("n=%d/size=%d/concurrency=%d", tc.n, tc.size, concurrency)
			t.Run(name, func(t *testing.T) {
				oracle := &mockOracle{}
				b, err := New(oracle, WithBatchSize(tc.size), WithConcurrency(concurrency))
				require.NoError(t, err)

				records := makeRecords(tc.n)
				out, err := b.Classify(context.Background(), records)
				require.NoError(t, err)
				require.Len(t, out, tc.n)

				wantCalls := (tc.n + tc.size - 1) / tc.size
				assert.Equal(t, wantCalls, oracle.callCount())

				sent := 0
				for _, call := range oracle.calls {
					assert.LessOrEqual(t, len(call), tc.size)
					sent += len(call)
				}
				assert.Equal(t, tc.n, sent)

				for i, r := range out {
					assert.Equal(t, records[i].ExternalID, r.ExternalID)
					assert.Equal(t, "label:"+records[i].Description, r.CategoryName())
				}
				for _, r := range records {
					assert.False(t, r.IsClassified(), "input must not be mutated")
				}
			})
		}
	}
}

func TestClassify_ChunksAreConsecutive(t *testing.T) {
	oracle := &mockOracle{}
	b, err := New(oracle, WithBatchSize(3))
	require.NoError(t, err)

	_, err = b.Classify(context.Background(), makeRecords(7))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"tx-000", "tx-001", "tx-002"},
		{"tx-003", "tx-004", "tx-005"},
		{"tx-006"},
	}, oracle.calls)
}

func TestClassify_ConcurrentReassemblesOrder(t *testing.T) {
	// Earlier chunks finish last.
	oracle := &mockOracle{
		ClassifyBatchFunc: func(ctx context.Context, descriptions []string) ([]string, error) {
			if descriptions[0] == "tx-000" {
				time.Sleep(30 * time.Millisecond)
			}
			return echoLabels(descriptions), nil
		},
	}
	b, err := New(oracle, WithBatchSize(2), WithConcurrency(3))
	require.NoError(t, err)

	records := makeRecords(6)
	out, err := b.Classify(context.Background(), records)
	require.NoError(t, err)
	for i := range out {
		assert.Equal(t, "label:"+records[i].Description, out[i].CategoryName())
	}
}

func TestClassify_LengthMismatch(t *testing.T) {
	tests := []struct {
		name  string
		reply func([]string) []string
	}{
		{"too few", func(d []string) []string { return echoLabels(d)[:len(d)-1] }},
		{"too many", func(d []string) []string { return append(echoLabels(d), "extra") }},
		{"empty", func([]string) []string { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &mockOracle{
				ClassifyBatchFunc: func(ctx context.Context, d []string) ([]string, error) {
					return tt.reply(d), nil
				},
			}
			b, err := New(oracle, WithBatchSize(4))
			require.NoError(t, err)

			out, err := b.Classify(context.Background(), makeRecords(6))
			assert.Nil(t, out)
			require.Error(t, err)
			assert.Equal(t, domain.KindClassification, domain.KindOf(err))
			assert.Contains(t, err.Error(), "malformed oracle response")
		})
	}
}

func TestClassify_OracleFailureAbortsRun(t *testing.T) {
	var progress []float64
	oracle := &mockOracle{
		ClassifyBatchFunc: func(ctx context.Context, d []string) ([]string, error) {
			if d[0] == "tx-004" {
				return nil, errors.New("429 rate limited")
			}
			return echoLabels(d), nil
		},
	}
	b, err := New(oracle, WithBatchSize(2), WithProgress(func(f float64) { progress = append(progress, f) }))
	require.NoError(t, err)

	out, err := b.Classify(context.Background(), makeRecords(8))
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Equal(t, domain.KindOracle, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrOracle)
	assert.Equal(t, 3, oracle.callCount(), "no call after the failing chunk")
	assert.Equal(t, []float64{0.25, 0.5}, progress)
}

func TestClassify_OracleKindPreserved(t *testing.T) {
	oracle := OracleFunc(func(ctx context.Context, d []string) ([]string, error) {
		return nil, domain.ConfigurationError("ClassifyBatch", errors.New("no key"))
	})
	b, err := New(oracle)
	require.NoError(t, err)

	_, err = b.Classify(context.Background(), makeRecords(1))
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestClassify_Progress(t *testing.T) {
	var progress []float64
	b, err := New(&mockOracle{}, WithBatchSize(20), WithProgress(func(f float64) { progress = append(progress, f) }))
	require.NoError(t, err)

	_, err = b.Classify(context.Background(), makeRecords(50))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.8, 1.0}, progress)
}

func TestClassify_RunProgressOverride(t *testing.T) {
	var batcherCalls, runCalls int
	b, err := New(&mockOracle{}, WithBatchSize(1), WithProgress(func(float64) { batcherCalls++ }))
	require.NoError(t, err)

	_, err = b.Classify(context.Background(), makeRecords(3), ReportProgress(func(float64) { runCalls++ }))
	require.NoError(t, err)
	assert.Equal(t, 0, batcherCalls)
	assert.Equal(t, 3, runCalls)
}

func TestClassify_ConcurrentProgressIsMonotonic(t *testing.T) {
	var mu sync.Mutex
	var progress []float64
	b, err := New(&mockOracle{}, WithBatchSize(3), WithConcurrency(4), WithProgress(func(f float64) {
		mu.Lock()
		progress = append(progress, f)
		mu.Unlock()
	}))
	require.NoError(t, err)

	_, err = b.Classify(context.Background(), makeRecords(31))
	require.NoError(t, err)

	require.Len(t, progress, 11)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 1.0, progress[len(progress)-1])
}

func TestClassify_CancelBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &mockOracle{
		ClassifyBatchFunc: func(_ context.Context, d []string) ([]string, error) {
			cancel() // the user hits stop while the first chunk is in flight
			return echoLabels(d), nil
		},
	}
	b, err := New(oracle, WithBatchSize(2))
	require.NoError(t, err)

	out, err := b.Classify(ctx, makeRecords(6))
	assert.Nil(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, oracle.callCount())
}

func TestClassify_CallTimeout(t *testing.T) {
	oracle := OracleFunc(func(ctx context.Context, d []string) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	b, err := New(oracle, WithCallTimeout(10*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = b.Classify(context.Background(), makeRecords(2))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.KindOracle, domain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify_LabelPolicy(t *testing.T) {
	replies := []string{" mercado\n", "Groceries"}
	oracle := OracleFunc(func(ctx context.Context, d []string) ([]string, error) {
		return replies[:len(d)], nil
	})

	t.Run("permissive keeps unknown labels", func(t *testing.T) {
		b, err := New(oracle)
		require.NoError(t, err)
		out, err := b.Classify(context.Background(), makeRecords(2))
		require.NoError(t, err)
		assert.Equal(t, "mercado", out[0].CategoryName())
		assert.Equal(t, "Groceries", out[1].CategoryName())
	})

	t.Run("strict canonicalizes and rejects", func(t *testing.T) {
		b, err := New(oracle, WithLabelPolicy(Strict))
		require.NoError(t, err)

		out, err := b.Classify(context.Background(), makeRecords(1))
		require.NoError(t, err)
		assert.Equal(t, "Mercado", out[0].CategoryName())

		_, err = b.Classify(context.Background(), makeRecords(2))
		require.Error(t, err)
		assert.Equal(t, domain.KindClassification, domain.KindOf(err))
		assert.True(t, strings.Contains(err.Error(), "Groceries"))
	})
}

func TestClassifySet(t *testing.T) {
	b, err := New(&mockOracle{})
	require.NoError(t, err)

	set, err := b.ClassifySet(context.Background(), makeRecords(3))
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	empty, err := b.ClassifySet(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 1.0, Fraction(0, 0))
	assert.Equal(t, 0.5, Fraction(10, 20))
	assert.Equal(t, 1.0, Fraction(40, 20))
}

func TestClassify_ConcurrentFailureStopsRun(t *testing.T) {
	var calls atomic.Int32
	oracle := OracleFunc(func(ctx context.Context, d []string) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("unauthorized")
	})
	b, err := New(oracle, WithBatchSize(1), WithConcurrency(2))
	require.NoError(t, err)

	out, err := b.Classify(context.Background(), makeRecords(50))
	assert.Nil(t, out)
	assert.Equal(t, domain.KindOracle, domain.KindOf(err))
	assert.Less(t, int(calls.Load()), 50)
}
