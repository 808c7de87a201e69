// Package classifier assigns category labels to parsed transactions by
// sending their descriptions to an oracle in fixed-size chunks.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// DefaultBatchSize is the number of descriptions sent per oracle call.
const DefaultBatchSize = 20

// Batcher partitions records into chunks and labels each chunk with one
// oracle call. A Batcher is safe for concurrent use by multiple runs.
type Batcher struct {
	oracle      Oracle
	batchSize   int
	concurrency int
	callTimeout time.Duration
	progress    ProgressFunc
	policy      LabelPolicy
	log         zerolog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithBatchSize sets the chunk size. Values below 1 are rejected by New.
func WithBatchSize(n int) Option {
	return func(b *Batcher) { b.batchSize = n }
}

// WithConcurrency sets how many chunks may be in flight at once.
// 1 (the default) processes chunks sequentially.
func WithConcurrency(n int) Option {
	return func(b *Batcher) { b.concurrency = n }
}

// WithCallTimeout bounds every single oracle call. Zero means no bound
// beyond the run's own context.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Batcher) { b.callTimeout = d }
}

// WithProgress registers a callback invoked after each completed chunk.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Batcher) { b.progress = fn }
}

// WithLabelPolicy selects how out-of-set labels are treated.
func WithLabelPolicy(p LabelPolicy) Option {
	return func(b *Batcher) { b.policy = p }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Batcher) { b.log = log }
}

// New builds a Batcher around oracle.
func New(oracle Oracle, opts ...Option) (*Batcher, error) {
	b := &Batcher{
		oracle:      oracle,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if oracle == nil {
		return nil, errors.New("classifier.New: oracle is required")
	}
	if b.batchSize < 1 {
		return nil, fmt.Errorf("classifier.New: batch size must be positive, got %d", b.batchSize)
	}
	if b.concurrency < 1 {
		b.concurrency = 1
	}
	return b, nil
}

// Chunk is a half-open index range [Start, End) into the record sequence.
type Chunk struct {
	Start, End int
}

// Len returns the number of records in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// Chunks partitions n items into consecutive ranges of at most size items.
// Only the last range may be shorter.
func Chunks(n, size int) []Chunk {
	if n <= 0 || size <= 0 {
		return nil
	}
	out := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, Chunk{Start: start, End: end})
	}
	return out
}

// Classify labels every record and returns copies carrying their category,
// in the input order. Either every record is labelled or an error is
// returned and nothing else.
//
// The context is checked before each chunk is sent, so cancelling it stops
// the run between oracle calls.
func (b *Batcher) Classify(ctx context.Context, records []domain.TransactionRecord, opts ...RunOption) ([]domain.TransactionRecord, error) {
	run := runConfig{progress: b.progress}
	for _, opt := range opts {
		opt(&run)
	}

	chunks := Chunks(len(records), b.batchSize)
	labels := make([][]string, len(chunks))
	tracker := newProgressTracker(len(records), run.progress)

	b.log.Debug().
		Int("records", len(records)).
		Int("chunks", len(chunks)).
		Int("batch_size", b.batchSize).
		Int("concurrency", b.concurrency).
		Msg("Starting classification run")

	var err error
	if b.concurrency == 1 {
		err = b.runSequential(ctx, records, chunks, labels, tracker)
	} else {
		err = b.runConcurrent(ctx, records, chunks, labels, tracker)
	}
	if err != nil {
		b.log.Warn().Err(err).Str("error_kind", string(domain.KindOf(err))).Msg("Classification run failed")
		return nil, err
	}

	out := make([]domain.TransactionRecord, len(records))
	for i, c := range chunks {
		for j := 0; j < c.Len(); j++ {
			out[c.Start+j] = records[c.Start+j].WithCategory(labels[i][j])
		}
	}
	return out, nil
}

// ClassifySet runs Classify and freezes the result.
func (b *Batcher) ClassifySet(ctx context.Context, records []domain.TransactionRecord, opts ...RunOption) (*domain.ClassifiedSet, error) {
	out, err := b.Classify(ctx, records, opts...)
	if err != nil {
		return nil, err
	}
	return domain.NewClassifiedSet(out)
}

func (b *Batcher) runSequential(ctx context.Context, records []domain.TransactionRecord, chunks []Chunk, labels [][]string, tracker *progressTracker) error {
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("Classify: canceled before chunk %d: %w", i, err)
		}
		got, err := b.classifyChunk(ctx, i, records[c.Start:c.End])
		if err != nil {
			return err
		}
		labels[i] = got
		tracker.add(c.Len())
	}
	return nil
}

func (b *Batcher) runConcurrent(ctx context.Context, records []domain.TransactionRecord, chunks []Chunk, labels [][]string, tracker *progressTracker) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				// Report the caller's cancellation, not the group's own.
				if ctx.Err() != nil {
					return fmt.Errorf("Classify: canceled before chunk %d: %w", i, ctx.Err())
				}
				return err
			}
			got, err := b.classifyChunk(gctx, i, records[c.Start:c.End])
			if err != nil {
				return err
			}
			labels[i] = got
			tracker.add(c.Len())
			return nil
		})
	}
	return g.Wait()
}

// classifyChunk performs one oracle call and enforces its contract.
func (b *Batcher) classifyChunk(ctx context.Context, index int, chunk []domain.TransactionRecord) ([]string, error) {
	descriptions := make([]string, len(chunk))
	for i, r := range chunk {
		descriptions[i] = r.Description
	}

	callCtx := ctx
	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	got, err := b.oracle.ClassifyBatch(callCtx, descriptions)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, fmt.Errorf("chunk %d: %w", index, err)
		}
		return nil, domain.OracleError("Classify", fmt.Errorf("chunk %d: %w", index, err))
	}
	if len(got) != len(descriptions) {
		return nil, domain.ClassificationError("Classify",
			fmt.Errorf("malformed oracle response: chunk %d sent %d descriptions, got %d labels",
				index, len(descriptions), len(got)))
	}

	labels := make([]string, len(got))
	for i, raw := range got {
		// Surrounding whitespace is dropped; otherwise a permissive label
		// is kept exactly as the oracle spelled it.
		label := strings.TrimSpace(raw)
		if b.policy == Strict {
			canonical, ok := domain.CanonicalCategory(label)
			if !ok {
				return nil, domain.ClassificationError("Classify",
					fmt.Errorf("chunk %d position %d: label %q is not a known category", index, i, raw))
			}
			label = canonical
		} else if !domain.IsKnownCategory(label) {
			b.log.Debug().Int("chunk", index).Int("position", i).Str("label", label).Msg("Label outside category set kept")
		}
		labels[i] = label
	}

	b.log.Debug().Int("chunk", index).Int("records", len(chunk)).Msg("Chunk classified")
	return labels, nil
}

// RunOption adjusts a single Classify call.
type RunOption func(*runConfig)

type runConfig struct {
	progress ProgressFunc
}

// ReportProgress overrides the Batcher's progress callback for one run.
func ReportProgress(fn ProgressFunc) RunOption {
	return func(c *runConfig) { c.progress = fn }
}

// progressTracker serializes progress callbacks across chunk goroutines.
type progressTracker struct {
	mu        sync.Mutex
	processed int
	total     int
	fn        ProgressFunc
}

func newProgressTracker(total int, fn ProgressFunc) *progressTracker {
	return &progressTracker{total: total, fn: fn}
}

func (p *progressTracker) add(n int) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed += n
	p.fn(Fraction(p.processed, p.total))
}

// Fraction returns min(processed/total, 1). An empty run counts as done.
func Fraction(processed, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(processed) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
