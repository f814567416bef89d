package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
)

// StudentHandler serves the roster
type StudentHandler struct {
	downloadUC interfaces.DownloadUseCase
}

// NewStudentHandler creates a new StudentHandler
func NewStudentHandler(downloadUC interfaces.DownloadUseCase) *StudentHandler {
	return &StudentHandler{downloadUC: downloadUC}
}

// List returns the upstream roster unchanged, or the filtered entries when
// any filter or pagination parameter is given
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := parseRosterQuery(r, true)
	if err != nil {
		handleError(w, r, err)
		return
	}

	list, err := h.downloadUC.ListStudents(ctx, query)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if list.Raw != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(list.Raw); err != nil {
			ctxlog.From(ctx).Warn("Failed to write roster response", "error", err)
		}
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(list.Total))
	writeJSON(ctx, w, http.StatusOK, list.Entries)
}

// Get returns one student record
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	student, err := h.downloadUC.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, student)
}

// InvalidateCache drops the cached roster
func (h *StudentHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.downloadUC.InvalidateRoster(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"message": "Roster cache invalidated",
	})
}

// parseRosterQuery reads q, batch, from and to, plus page and per_page when
// paginate is set
func parseRosterQuery(r *http.Request, paginate bool) (*model.RosterQuery, error) {
	values := r.URL.Query()
	query := &model.RosterQuery{
		Query: strings.TrimSpace(values.Get("q")),
		Batch: strings.TrimSpace(values.Get("batch")),
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &query.From},
		{"to", &query.To},
	} {
		v := strings.TrimSpace(values.Get(p.name))
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, goerr.New("invalid "+p.name+" date, expected YYYY-MM-DD",
				goerr.V(p.name, v), goerr.T(types.ErrTagBadRequest))
		}
		*p.dst = &t
	}

	if !paginate {
		return query, nil
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &query.Page},
		{"per_page", &query.PerPage},
	} {
		v := strings.TrimSpace(values.Get(p.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, goerr.New("invalid "+p.name+", expected a positive integer",
				goerr.V(p.name, v), goerr.T(types.ErrTagBadRequest))
		}
		*p.dst = n
	}

	return query, nil
}
