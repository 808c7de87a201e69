package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// JobHandler runs the pipeline for each queued statement job. The job's
// record count is filled in once the statement has been parsed, even when
// classification later fails.
func (p *Pipeline) JobHandler(log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ClassifyStatementJob, report jobs.ProgressFunc) error {
		fields := map[string]interface{}{}
		if job.Filename != "" {
			fields["filename"] = job.Filename
		}
		if job.Source != "" {
			fields["source"] = job.Source
		}
		if job.Encoding != "" {
			fields["encoding"] = job.Encoding
		}
		jobLog := logger.WithFields(logger.ForJob(log, job.SessionID, job.JobID), fields)
		ctx = logger.WithContext(ctx, jobLog)

		jobLog.Info().Msg("Processing statement job")

		state := &PipelineState{
			SessionID: job.SessionID,
			Source:    job.Source,
			Encoding:  job.Encoding,
			Raw:       job.Raw,
		}
		if report != nil {
			state.Progress = func(fraction float64) { report(fraction) }
		}

		err := p.Run(ctx, state)
		job.Records = len(state.Records)
		return err
	}
}
