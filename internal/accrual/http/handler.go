// Package accrualhttp exposes the accrual engine over JSON endpoints.
package accrualhttp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vasu15/record-to-report/internal/accrual"
	"github.com/vasu15/record-to-report/internal/accrual/export"
	"github.com/vasu15/record-to-report/internal/observability"
	"github.com/vasu15/record-to-report/internal/platform/httpx"
)

// Handler serves the accrual endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *accrual.Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *accrual.Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  metrics,
	}
}

// MountRoutes registers accrual routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/period", h.handlePeriodLines)
	r.Get("/activity", h.handleActivityLines)
	r.Get("/exceptions", h.handleExceptions)
	r.Get("/export", h.handleExport)
	r.Patch("/lines/{id}/true-up", h.handleTrueUp)
	r.Patch("/lines/{id}/remarks", h.handleRemarks)
}

type linesResponse struct {
	Month string             `json:"month"`
	Lines []accrual.LineView `json:"lines"`
}

func (h *Handler) handlePeriodLines(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.PeriodBasedLines(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.logger.Error("period lines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.AddLinesComputed(len(views))
	httpx.JSON(w, http.StatusOK, linesResponse{Month: monthOf(views), Lines: views})
}

func (h *Handler) handleActivityLines(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ActivityBasedLines(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.logger.Error("activity lines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.AddLinesComputed(len(views))
	httpx.JSON(w, http.StatusOK, linesResponse{Month: monthOf(views), Lines: views})
}

func (h *Handler) handleExceptions(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ExceptionSummary(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.logger.Error("exception summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	category := r.URL.Query().Get("category")

	var (
		views []accrual.LineView
		err   error
	)
	switch category {
	case "", "period":
		category = "period"
		views, err = h.service.PeriodBasedLines(r.Context(), month)
	case "activity":
		views, err = h.service.ActivityBasedLines(r.Context(), month)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("unknown category %q", category))
		return
	}
	if err != nil {
		h.logger.Error("export lines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName(category, "csv"))
		if err := export.WriteLineViewsCSV(w, views); err != nil {
			h.logger.Error("write csv", slog.Any("error", err))
		}
		return
	}

	book, err := export.BuildWorkbook(views, monthOf(views))
	if err != nil {
		h.logger.Error("build workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName(category, "xlsx"))
	if err := book.Write(w); err != nil {
		h.logger.Error("write workbook", slog.Any("error", err))
	}
}

type trueUpRequest struct {
	Field  string      `json:"field" validate:"required,oneof=prev_month current_month"`
	Value  json.Number `json:"value" validate:"required"`
	Editor string      `json:"editor" validate:"max=120"`
}

func (h *Handler) handleTrueUp(w http.ResponseWriter, r *http.Request) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}
	var req trueUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	value, err := decimal.NewFromString(req.Value.String())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "value must be numeric")
		return
	}
	if err := h.service.UpdateTrueUp(r.Context(), lineID, accrual.TrueUpField(req.Field), value, req.Editor); err != nil {
		h.logger.Error("update true-up", slog.Int64("line", lineID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

type remarksRequest struct {
	Remarks string `json:"remarks" validate:"max=2000"`
	Editor  string `json:"editor" validate:"max=120"`
}

func (h *Handler) handleRemarks(w http.ResponseWriter, r *http.Request) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}
	var req remarksRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateRemarks(r.Context(), lineID, req.Remarks, req.Editor); err != nil {
		h.logger.Error("update remarks", slog.Int64("line", lineID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func monthOf(views []accrual.LineView) string {
	if len(views) == 0 {
		return ""
	}
	return views[0].Month
}
