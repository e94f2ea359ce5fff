package audithttp

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/audit"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

// Reader is the tenant-scoped audit read contract.
type Reader interface {
	ReadRecentForSession(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Handler serves audit views for the session tenant.
type Handler struct {
	logger *slog.Logger
	reader Reader
	now    func() time.Time
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, reader Reader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reader: reader, now: time.Now}
}

type recentResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.reader.ReadRecentForSession(r.Context(), limit)
	if err != nil {
		h.logger.Warn("audit read failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recentResponse{Entries: entries, Count: len(entries)})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.reader.ReadRecentForSession(r.Context(), limit)
	if err != nil {
		h.logger.Warn("audit export failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, entries); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filename := "audit-" + h.now().UTC().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
