// Package pipeline wires statement loading, parsing, classification and
// publication into one run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// Pipeline runs its steps in order and stops at the first failure.
type Pipeline struct {
	steps []PipelineStep
}

// New builds a pipeline from explicit steps.
func New(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Deps are the collaborators of the standard statement pipeline.
type Deps struct {
	Loader     StatementLoader
	Parser     StatementParser
	Classifier TransactionClassifier
	Sessions   SessionPublisher

	// DefaultEncoding is used for statements uploaded without one.
	DefaultEncoding string
}

// NewStatementPipeline returns fetch → parse → classify → publish. A nil
// Parser defaults to the OFX parser.
func NewStatementPipeline(deps Deps) *Pipeline {
	parser := deps.Parser
	if parser == nil {
		parser = StatementParserFunc(statement.Parse)
	}
	return New(
		&FetchStatementStep{Loader: deps.Loader},
		&ParseStatementStep{Parser: parser, DefaultEncoding: deps.DefaultEncoding},
		&ClassifyTransactionsStep{Classifier: deps.Classifier},
		&PublishSessionStep{Sessions: deps.Sessions},
	)
}

// Run executes every step against state. The returned error keeps the
// failing step's error kind.
func (p *Pipeline) Run(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for _, step := range p.steps {
		start := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			log.Error().
				Err(err).
				Str("step", step.Name()).
				Str("error_kind", string(domain.KindOf(err))).
				Msg("Pipeline step failed")
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
		log.Debug().Str("step", step.Name()).Dur("duration", time.Since(start)).Msg("Pipeline step completed")
	}
	return nil
}
