package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/aggregate"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/domain"
)

// DashboardHandler serves the aggregated views of a session's data.
type DashboardHandler struct {
	sessions SessionStore
	log      zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(sessions SessionStore, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		sessions: sessions,
		log:      log,
	}
}

// ListMonths handles GET /api/sessions/{id}/months
func (h *DashboardHandler) ListMonths(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, h.sessions, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	months := aggregate.Months(s.Set().Records())
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"months": months,
		"count":  len(months),
	})
}

// ListCategories handles GET /api/sessions/{id}/categories
func (h *DashboardHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, h.sessions, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	categories := aggregate.CategoriesOf(s.Set().Expenses())
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// GetDashboard handles GET /api/sessions/{id}/dashboard?month=&category=&top=
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, h.sessions, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	sel, err := parseSelection(r)
	if err != nil {
		h.log.Debug().Err(err).Str("query", r.URL.RawQuery).Msg("Invalid dashboard query")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"has_data":  s.HasData(),
		"dashboard": aggregate.Build(s.Set(), sel),
	})
}

type transactionView struct {
	domain.TransactionRecord
	Month string                 `json:"month"`
	Type  domain.TransactionType `json:"type"`
}

// ListTransactions handles GET /api/sessions/{id}/transactions?month=&category=
// It lists every record of the month, income included, in statement order.
// Without a month it lists everything.
func (h *DashboardHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, h.sessions, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	sel, err := parseSelection(r)
	if err != nil {
		h.log.Debug().Err(err).Str("query", r.URL.RawQuery).Msg("Invalid dashboard query")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := s.Set().Records()
	if sel.Month != "" {
		records = aggregate.Filter(records, sel.Month, sel.Categories)
	}

	views := make([]transactionView, len(records))
	for i, rec := range records {
		views[i] = transactionView{TransactionRecord: rec, Month: rec.Month(), Type: rec.Type()}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
		"count":        len(views),
	})
}

// parseSelection reads month, category (repeatable or comma-separated)
// and top from the query string. An absent top means the default list
// length; a present one must be at least 1.
func parseSelection(r *http.Request) (aggregate.Selection, error) {
	query := r.URL.Query()
	sel := aggregate.Selection{Month: query.Get("month")}

	for _, raw := range query["category"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				sel.Categories = append(sel.Categories, c)
			}
		}
	}

	if topStr := query.Get("top"); topStr != "" {
		top, err := strconv.Atoi(topStr)
		if err != nil || top < 1 {
			return sel, errInvalidTop
		}
		sel.TopN = top
	}
	return sel, nil
}

var errInvalidTop = errors.New("top must be a positive integer")
