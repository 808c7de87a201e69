package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/source"
)

// DefaultMaxUploadBytes caps statement uploads.
const DefaultMaxUploadBytes = 10 << 20

// StatementsHandler accepts statements and queues them for classification.
type StatementsHandler struct {
	sessions        SessionStore
	publisher       jobs.Publisher
	checkCredential func() error
	maxUploadBytes  int64
	log             zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. checkCredential
// runs before anything is queued; a non-nil error rejects the upload.
func NewStatementsHandler(sessions SessionStore, publisher jobs.Publisher, checkCredential func() error, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		sessions:        sessions,
		publisher:       publisher,
		checkCredential: checkCredential,
		maxUploadBytes:  DefaultMaxUploadBytes,
		log:             log,
	}
}

// UploadStatement handles POST /api/sessions/{id}/statements
//
// The body is one of:
//   - multipart/form-data with the file in field "file"
//   - application/json {"source": "gs://bucket/object.ofx"}
//   - the raw statement bytes
//
// The optional "encoding" query parameter names the file's charset.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	if _, ok := loadSession(w, h.sessions, sessionID); !ok {
		return
	}

	if h.checkCredential != nil {
		if err := h.checkCredential(); err != nil {
			h.log.Warn().Err(err).Str("session_id", sessionID).Msg("Upload rejected: oracle not configured")
			middleware.WriteDomainError(w, err)
			return
		}
	}

	job := &jobs.ClassifyStatementJob{
		SessionID: sessionID,
		Encoding:  r.URL.Query().Get("encoding"),
	}
	if err := h.readStatement(w, r, job); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement file is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.PublishClassifyStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue statement job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue statement")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("session_id", sessionID).
		Str("filename", job.Filename).
		Int("bytes", len(job.Raw)).
		Msg("Statement job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"status":     string(job.Status),
	})
}

func (h *StatementsHandler) readStatement(w http.ResponseWriter, r *http.Request, job *jobs.ClassifyStatementJob) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return err
			}
			return errors.New("multipart field \"file\" is required")
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			return err
		}
		job.Raw = raw
		job.Filename = filepath.Base(header.Filename)

	case mediaType == "application/json":
		var req struct {
			Source   string `json:"source"`
			Encoding string `json:"encoding"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errors.New("invalid request body")
		}
		if !source.IsGCSURI(req.Source) {
			return errors.New("source must be a gs:// URI")
		}
		if _, _, err := source.SplitGCSURI(req.Source); err != nil {
			return err
		}
		job.Source = req.Source
		job.Filename = source.Filename(req.Source)
		if job.Encoding == "" {
			job.Encoding = req.Encoding
		}
		return nil

	default:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		job.Raw = raw
		job.Filename = r.URL.Query().Get("filename")
	}

	if len(bytes.TrimSpace(job.Raw)) == 0 {
		return errors.New("statement file is empty")
	}
	return nil
}
