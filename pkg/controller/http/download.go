package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/utils/errutil"
)

// DownloadHandler streams zip archives
type DownloadHandler struct {
	downloadUC interfaces.DownloadUseCase
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(downloadUC interfaces.DownloadUseCase) *DownloadHandler {
	return &DownloadHandler{downloadUC: downloadUC}
}

// All streams the documents of every student matching the filters
func (h *DownloadHandler) All(w http.ResponseWriter, r *http.Request) {
	query, err := parseRosterQuery(r, false)
	if err != nil {
		handleError(w, r, err)
		return
	}

	job, err := h.downloadUC.PlanAll(r.Context(), query)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.stream(w, r, job)
}

// Student streams the documents of one student
func (h *DownloadHandler) Student(w http.ResponseWriter, r *http.Request) {
	job, err := h.downloadUC.PlanStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.stream(w, r, job)
}

// stream writes the archive as the response body. Once the header is sent a
// failure can only be signalled by cutting the connection.
func (h *DownloadHandler) stream(w http.ResponseWriter, r *http.Request, job *model.ArchiveJob) {
	ctx := ctxlog.With(r.Context(), ctxlog.From(r.Context()).With("archive_id", job.ID))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", contentDisposition(job.Filename))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Archive-Id", job.ID)
	w.WriteHeader(http.StatusOK)

	if _, err := h.downloadUC.WriteArchive(ctx, job, w); err != nil {
		if errors.Is(err, context.Canceled) {
			ctxlog.From(ctx).Info("Client went away during archive download", "error", err)
		} else {
			errutil.Handle(ctx, err)
		}
		panic(http.ErrAbortHandler)
	}
}

// contentDisposition builds an attachment header with an ASCII fallback name
// and the RFC 5987 UTF-8 form
func contentDisposition(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r == '"' || r == '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f || r > 0x7e:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	value := `attachment; filename="` + b.String() + `"`
	if b.String() != filename {
		value += "; filename*=UTF-8''" + url.PathEscape(filename)
	}
	return value
}
