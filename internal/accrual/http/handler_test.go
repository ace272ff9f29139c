package accrualhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vasu15/record-to-report/internal/accrual"
	"github.com/vasu15/record-to-report/internal/observability"
)

type fakeRepo struct {
	lines       map[int64]accrual.POLine
	grn         map[int64][]accrual.GRNTransaction
	adjustments map[int64]accrual.PeriodCalculation
}

func (f *fakeRepo) ListPOLines(_ context.Context, category accrual.Category) ([]accrual.POLine, error) {
	var out []accrual.POLine
	for _, line := range f.lines {
		if line.Category == category {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPOLine(_ context.Context, id int64) (accrual.POLine, error) {
	line, ok := f.lines[id]
	if !ok {
		return accrual.POLine{}, accrual.ErrNotFound
	}
	return line, nil
}

func (f *fakeRepo) ListGRNTransactions(_ context.Context, lineIDs []int64) (map[int64][]accrual.GRNTransaction, error) {
	out := make(map[int64][]accrual.GRNTransaction)
	for _, id := range lineIDs {
		if txns, ok := f.grn[id]; ok {
			out[id] = txns
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPeriodCalculation(_ context.Context, lineID int64, _ string) (accrual.PeriodCalculation, error) {
	adj, ok := f.adjustments[lineID]
	if !ok {
		return accrual.PeriodCalculation{}, accrual.ErrNotFound
	}
	return adj, nil
}

func (f *fakeRepo) UpsertTrueUp(_ context.Context, lineID int64, month string, field accrual.TrueUpField, value decimal.Decimal, editor string) error {
	adj := f.adjustments[lineID]
	adj.POLineID = lineID
	adj.Month = month
	if field == accrual.TrueUpPrevMonth {
		adj.PrevTrueUp = value
	} else {
		adj.CurrentTrueUp = value
	}
	adj.UpdatedBy = editor
	f.adjustments[lineID] = adj
	return nil
}

func (f *fakeRepo) UpsertRemarks(_ context.Context, lineID int64, month, remarks, editor string) error {
	adj := f.adjustments[lineID]
	adj.POLineID = lineID
	adj.Month = month
	adj.Remarks = remarks
	adj.UpdatedBy = editor
	f.adjustments[lineID] = adj
	return nil
}

func (f *fakeRepo) GetConfig(_ context.Context, _ string) (string, error) {
	return "", accrual.ErrNotFound
}

func (f *fakeRepo) AssignmentFor(_ context.Context, _ int64) (accrual.Assignment, error) {
	return accrual.Assignment{}, accrual.ErrNotFound
}

func newTestRouter(repo *fakeRepo) http.Handler {
	service := accrual.NewService(repo, repo, accrual.ServiceConfig{
		Logger:        slog.Default(),
		FallbackMonth: "Feb 2026",
	})
	handler := NewHandler(slog.Default(), service, observability.NewMetrics())
	r := chi.NewRouter()
	r.Route("/api/accruals", handler.MountRoutes)
	return r
}

func seededRepo() *fakeRepo {
	return &fakeRepo{
		lines: map[int64]accrual.POLine{
			1: {
				ID: 1, PONumber: "PO-1000", LineNo: 10, Vendor: "Acme",
				NetAmount: decimal.RequireFromString("192240"),
				StartDate: "2026-01-01", EndDate: "2026-06-30",
				Category: accrual.CategoryPeriod, Status: accrual.StatusDraft,
			},
		},
		grn:         map[int64][]accrual.GRNTransaction{},
		adjustments: map[int64]accrual.PeriodCalculation{},
	}
}

func TestHandlePeriodLines(t *testing.T) {
	router := newTestRouter(seededRepo())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accruals/period?month=Feb+2026", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Month string `json:"month"`
		Lines []struct {
			PONumber       string          `json:"poNumber"`
			TotalDays      int             `json:"totalDays"`
			FinalProvision decimal.Decimal `json:"finalProvision"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Feb 2026", body.Month)
	require.Len(t, body.Lines, 1)
	require.Equal(t, "PO-1000", body.Lines[0].PONumber)
	require.Equal(t, 181, body.Lines[0].TotalDays)
	require.True(t, decimal.RequireFromString("62664").Equal(body.Lines[0].FinalProvision))
}

func TestHandleActivityLinesEmpty(t *testing.T) {
	router := newTestRouter(seededRepo())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accruals/activity?month=Feb+2026", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Lines []json.RawMessage `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Lines)
}

func TestHandleExceptions(t *testing.T) {
	router := newTestRouter(seededRepo())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accruals/exceptions?month=Feb+2026", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary accrual.ExceptionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "Feb 2026", summary.Month)
	require.Equal(t, 1, summary.TotalLines)
}

func TestHandleTrueUp(t *testing.T) {
	repo := seededRepo()
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"field":"current_month","value":-2500,"editor":"priya"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/accruals/lines/1/true-up", body))

	require.Equal(t, http.StatusOK, rec.Code)
	adj := repo.adjustments[1]
	require.True(t, decimal.RequireFromString("-2500").Equal(adj.CurrentTrueUp))
	require.Equal(t, "priya", adj.UpdatedBy)
}

func TestHandleTrueUpValidation(t *testing.T) {
	router := newTestRouter(seededRepo())

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad field", "/api/accruals/lines/1/true-up", `{"field":"sideways","value":10}`, http.StatusBadRequest},
		{"missing value", "/api/accruals/lines/1/true-up", `{"field":"prev_month"}`, http.StatusBadRequest},
		{"non numeric value", "/api/accruals/lines/1/true-up", `{"field":"prev_month","value":"abc"}`, http.StatusBadRequest},
		{"malformed body", "/api/accruals/lines/1/true-up", `{`, http.StatusBadRequest},
		{"bad id", "/api/accruals/lines/zero/true-up", `{"field":"prev_month","value":1}`, http.StatusBadRequest},
		{"unknown line", "/api/accruals/lines/99/true-up", `{"field":"prev_month","value":1}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, tc.path, strings.NewReader(tc.body)))
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHandleRemarks(t *testing.T) {
	repo := seededRepo()
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"remarks":"awaiting credit note","editor":"lee"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/accruals/lines/1/remarks", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "awaiting credit note", repo.adjustments[1].Remarks)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/accruals/lines/99/remarks", strings.NewReader(`{"remarks":"x"}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleExportCSV(t *testing.T) {
	router := newTestRouter(seededRepo())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accruals/export?month=Feb+2026&format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "PO Number")
	require.Contains(t, lines[1], "PO-1000")
}

func TestHandleExportXLSX(t *testing.T) {
	router := newTestRouter(seededRepo())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accruals/export?month=Feb+2026", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	require.NotZero(t, rec.Body.Len())
}

func TestHandleExportUnknownCategory(t *testing.T) {
	router := newTestRouter(seededRepo())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accruals/export?category=weird", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
