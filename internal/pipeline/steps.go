package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/classifier"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// PipelineStep represents a single step in the statement pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	SessionID string
	Source    string
	Encoding  string
	Raw       []byte

	Records    []domain.TransactionRecord
	Classified *domain.ClassifiedSet

	// Progress, when set, receives the classified fraction after each chunk.
	Progress classifier.ProgressFunc
}

// FetchStatementStep loads the statement bytes unless they were uploaded
// directly.
type FetchStatementStep struct {
	Loader StatementLoader
}

func (s *FetchStatementStep) Name() string { return "fetch_statement" }

func (s *FetchStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Raw) > 0 {
		return nil
	}
	if state.Source == "" {
		return domain.ParseError("FetchStatementStep", errors.New("no statement provided"))
	}
	if s.Loader == nil {
		return domain.ConfigurationError("FetchStatementStep", errors.New("no statement loader configured"))
	}

	raw, err := s.Loader.Load(ctx, state.Source)
	if err != nil {
		return fmt.Errorf("FetchStatementStep: %w", err)
	}
	state.Raw = raw
	return nil
}

// ParseStatementStep decodes and parses the statement. DefaultEncoding
// applies when the state names none.
type ParseStatementStep struct {
	Parser          StatementParser
	DefaultEncoding string
}

func (s *ParseStatementStep) Name() string { return "parse_statement" }

func (s *ParseStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	encoding := state.Encoding
	if encoding == "" {
		encoding = s.DefaultEncoding
	}
	records, err := s.Parser.Parse(state.Raw, encoding)
	if err != nil {
		return err
	}
	state.Records = records

	log := logger.FromContext(ctx)
	log.Info().Int("records", len(records)).Msg("Statement parsed")
	return nil
}

// ClassifyTransactionsStep labels the parsed records.
type ClassifyTransactionsStep struct {
	Classifier TransactionClassifier
}

func (s *ClassifyTransactionsStep) Name() string { return "classify_transactions" }

func (s *ClassifyTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Classifier == nil {
		return domain.ConfigurationError("ClassifyTransactionsStep", errors.New("no classifier configured"))
	}

	var opts []classifier.RunOption
	if state.Progress != nil {
		opts = append(opts, classifier.ReportProgress(state.Progress))
	}

	set, err := s.Classifier.ClassifySet(ctx, state.Records, opts...)
	if err != nil {
		return err
	}
	state.Classified = set
	return nil
}

// PublishSessionStep swaps the session's data for the new set. Without a
// session ID (command-line runs) it does nothing.
type PublishSessionStep struct {
	Sessions SessionPublisher
}

func (s *PublishSessionStep) Name() string { return "publish_session" }

func (s *PublishSessionStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.SessionID == "" || s.Sessions == nil {
		return nil
	}
	if state.Classified == nil {
		return fmt.Errorf("PublishSessionStep: nothing classified for session %s", state.SessionID)
	}
	if err := s.Sessions.Replace(state.SessionID, state.Classified); err != nil {
		return fmt.Errorf("PublishSessionStep: %w", err)
	}
	return nil
}
