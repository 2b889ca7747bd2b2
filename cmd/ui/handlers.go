package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"option-screener-go/internal/codec"
	"option-screener-go/internal/evaluator"
	"option-screener-go/internal/export"
	"option-screener-go/internal/form"
	"option-screener-go/internal/ranking"
	"option-screener-go/internal/session"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log      *zap.Logger
	session  *session.Session
	validate *validator.Validate
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, s *session.Session) *APIHandler {
	return &APIHandler{log: log, session: s, validate: validator.New()}
}

// Routes builds the router for every endpoint.
func (h *APIHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.StateHandler)
		r.Get("/fields", h.FieldsHandler)

		r.Route("/trades", func(r chi.Router) {
			r.Post("/", h.AddTradeHandler)
			r.Post("/reset", h.ResetTradesHandler)
			r.Post("/{row}/duplicate", h.DuplicateTradeHandler)
			r.Delete("/{row}", h.RemoveTradeHandler)
			r.Put("/{row}/{field}", h.EditTradeHandler)
			r.Post("/{row}/{field}/commit", h.CommitTradeHandler)
		})

		r.Route("/tolerances", func(r chi.Router) {
			r.Delete("/", h.ClearTolerancesHandler)
			r.Put("/{key}", h.EditToleranceHandler)
			r.Post("/{key}/commit", h.CommitToleranceHandler)
		})

		r.Post("/evaluate", h.EvaluateHandler)

		r.Route("/results", func(r chi.Router) {
			r.Delete("/", h.ClearResultsHandler)
			r.Get("/export.csv", h.ExportHandler)
			r.Post("/{index}/toggle", h.ToggleExpandedHandler)
			r.Post("/sort/{key}", h.SortHandler)
		})
	})

	return r
}

func (h *APIHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// editRequest carries the raw text of an input after a keystroke.
type editRequest struct {
	Value *string `json:"value" validate:"required"`
}

func (e *editRequest) Bind(r *http.Request) error {
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

// failFor maps a domain error onto an HTTP status.
func (h *APIHandler) failFor(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, form.ErrRowOutOfRange):
		h.fail(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrUnknownTolerance), errors.Is(err, ranking.ErrUnknownSortKey):
		h.fail(w, r, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Request failed", zap.Error(err))
		h.fail(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (h *APIHandler) state(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.session.Snapshot())
}

func (h *APIHandler) index(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", param, chi.URLParam(r, param)))
		return 0, false
	}
	return i, true
}

func (h *APIHandler) decodeEdit(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req editRequest
	if err := render.Bind(r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if err := h.validate.Struct(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "value is required")
		return "", false
	}
	return *req.Value, true
}

type fieldSchema struct {
	Name    form.FieldName `json:"name"`
	Kind    codec.Kind     `json:"kind"`
	Numeric bool           `json:"numeric"`
}

// FieldsHandler lists the trade columns in order with the kind of input each takes.
func (h *APIHandler) FieldsHandler(w http.ResponseWriter, r *http.Request) {
	names := form.Fields()
	schema := make([]fieldSchema, 0, len(names))
	for _, name := range names {
		kind, _ := form.KindOf(name)
		schema = append(schema, fieldSchema{Name: name, Kind: kind, Numeric: kind.IsNumeric()})
	}
	render.JSON(w, r, schema)
}

// StateHandler returns the whole form state.
func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	h.state(w, r)
}

// AddTradeHandler appends an empty trade.
func (h *APIHandler) AddTradeHandler(w http.ResponseWriter, r *http.Request) {
	h.session.AddTrade()
	render.Status(r, http.StatusCreated)
	h.state(w, r)
}

// ResetTradesHandler empties the roster and the results.
func (h *APIHandler) ResetTradesHandler(w http.ResponseWriter, r *http.Request) {
	h.session.ResetTrades()
	h.state(w, r)
}

// DuplicateTradeHandler copies a row below itself.
func (h *APIHandler) DuplicateTradeHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := h.index(w, r, "row")
	if !ok {
		return
	}
	h.session.DuplicateTrade(i)
	h.state(w, r)
}

// RemoveTradeHandler deletes a row.
func (h *APIHandler) RemoveTradeHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := h.index(w, r, "row")
	if !ok {
		return
	}
	h.session.RemoveTrade(i)
	h.state(w, r)
}

// EditTradeHandler applies a keystroke to one trade field.
func (h *APIHandler) EditTradeHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := h.index(w, r, "row")
	if !ok {
		return
	}
	value, ok := h.decodeEdit(w, r)
	if !ok {
		return
	}
	if err := h.session.EditTrade(i, form.FieldName(chi.URLParam(r, "field")), value); err != nil {
		h.failFor(w, r, err)
		return
	}
	h.state(w, r)
}

// CommitTradeHandler normalizes one trade field when it loses focus.
func (h *APIHandler) CommitTradeHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := h.index(w, r, "row")
	if !ok {
		return
	}
	if err := h.session.CommitTrade(i, form.FieldName(chi.URLParam(r, "field"))); err != nil {
		h.failFor(w, r, err)
		return
	}
	h.state(w, r)
}

// EditToleranceHandler applies a keystroke to one threshold.
func (h *APIHandler) EditToleranceHandler(w http.ResponseWriter, r *http.Request) {
	value, ok := h.decodeEdit(w, r)
	if !ok {
		return
	}
	if err := h.session.EditTolerance(form.ToleranceKey(chi.URLParam(r, "key")), value); err != nil {
		h.failFor(w, r, err)
		return
	}
	h.state(w, r)
}

// CommitToleranceHandler clamps one threshold when it loses focus.
func (h *APIHandler) CommitToleranceHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.CommitTolerance(form.ToleranceKey(chi.URLParam(r, "key"))); err != nil {
		h.failFor(w, r, err)
		return
	}
	h.state(w, r)
}

// ClearTolerancesHandler unsets every threshold.
func (h *APIHandler) ClearTolerancesHandler(w http.ResponseWriter, r *http.Request) {
	h.session.ClearTolerances()
	h.state(w, r)
}

// EvaluateHandler submits the roster for scoring. Failures are reported as 502
// and leave the previous results in place.
func (h *APIHandler) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Evaluate(r.Context()); err != nil {
		var statusErr *evaluator.StatusError
		if errors.As(err, &statusErr) {
			h.fail(w, r, http.StatusBadGateway, fmt.Sprintf("Error evaluating trades: %s\n%s", statusErr.Status, statusErr.Body))
			return
		}
		h.fail(w, r, http.StatusBadGateway, fmt.Sprintf("Network error: %v", err))
		return
	}
	h.state(w, r)
}

// ClearResultsHandler discards the results.
func (h *APIHandler) ClearResultsHandler(w http.ResponseWriter, r *http.Request) {
	h.session.ClearResults()
	h.state(w, r)
}

// ToggleExpandedHandler opens or closes a result's breakdown.
func (h *APIHandler) ToggleExpandedHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := h.index(w, r, "index")
	if !ok {
		return
	}
	if !h.session.ToggleExpanded(i) {
		h.fail(w, r, http.StatusNotFound, fmt.Sprintf("no result at position %d", i))
		return
	}
	h.state(w, r)
}

// SortHandler selects the sort column, toggling direction when it is already active.
func (h *APIHandler) SortHandler(w http.ResponseWriter, r *http.Request) {
	key, err := ranking.ParseSortKey(chi.URLParam(r, "key"))
	if err != nil {
		h.failFor(w, r, err)
		return
	}
	h.session.SelectSort(key)
	h.state(w, r)
}

// ExportHandler downloads the results as CSV in the order the evaluator returned them.
func (h *APIHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv;charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	if err := export.WriteCSV(w, h.session.Results()); err != nil {
		h.log.Error("Failed to write export", zap.Error(err))
	}
}
