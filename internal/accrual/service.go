package accrual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ConfigKeyProcessingMonth is the persisted setting naming the active
// processing month.
const ConfigKeyProcessingMonth = "processing_month"

// computeConcurrency bounds the per-line fan-out on the read path.
const computeConcurrency = 8

// RepositoryPort describes the persistence capabilities the engine consumes.
type RepositoryPort interface {
	ListPOLines(ctx context.Context, category Category) ([]POLine, error)
	GetPOLine(ctx context.Context, id int64) (POLine, error)
	ListGRNTransactions(ctx context.Context, lineIDs []int64) (map[int64][]GRNTransaction, error)
	GetPeriodCalculation(ctx context.Context, lineID int64, month string) (PeriodCalculation, error)
	UpsertTrueUp(ctx context.Context, lineID int64, month string, field TrueUpField, value decimal.Decimal, editor string) error
	UpsertRemarks(ctx context.Context, lineID int64, month string, remarks string, editor string) error
	GetConfig(ctx context.Context, key string) (string, error)
}

// AssignmentPort exposes the activity-tracking collaborator.
type AssignmentPort interface {
	AssignmentFor(ctx context.Context, lineID int64) (Assignment, error)
}

// SummaryCache is the fetch-through cache used for the exception summary.
// Satisfied by platform/cache.Cache; nil disables caching.
type SummaryCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error
}

// Counter receives a tick each time the period resolver falls back to the
// default month. Satisfied by prometheus.Counter.
type Counter interface {
	Inc()
}

// ServiceConfig groups optional service dependencies.
type ServiceConfig struct {
	Logger         *slog.Logger
	FallbackMonth  string
	Cache          SummaryCache
	FallbackSignal Counter
}

// Service assembles computed line views and applies true-up/remarks edits.
// Reads are pure projections over repository state; the service holds no
// derived state of its own.
type Service struct {
	repo        RepositoryPort
	assignments AssignmentPort
	logger      *slog.Logger
	cache       SummaryCache
	fallback    string
	fallbackSig Counter
}

// NewService constructs the accrual service.
func NewService(repo RepositoryPort, assignments AssignmentPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fallback := cfg.FallbackMonth
	if fallback == "" {
		fallback = DefaultFallbackMonth
	}
	return &Service{
		repo:        repo,
		assignments: assignments,
		logger:      logger,
		cache:       cfg.Cache,
		fallback:    fallback,
		fallbackSig: cfg.FallbackSignal,
	}
}

// PeriodBasedLines computes line views for all Period-category lines whose
// contract window touches the requested month. An empty month defaults to the
// stored processing month.
func (s *Service) PeriodBasedLines(ctx context.Context, month string) ([]LineView, error) {
	period, err := s.resolveMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, CategoryPeriod, period)
}

// ActivityBasedLines computes line views for Activity-category lines,
// additionally joining assignment metadata.
func (s *Service) ActivityBasedLines(ctx context.Context, month string) ([]LineView, error) {
	period, err := s.resolveMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, CategoryActivity, period)
}

// UpdateTrueUp upserts one true-up amount for the line in the active
// processing month.
func (s *Service) UpdateTrueUp(ctx context.Context, lineID int64, field TrueUpField, value decimal.Decimal, editor string) error {
	if field != TrueUpPrevMonth && field != TrueUpCurrentMonth {
		return fmt.Errorf("%w: unknown true-up field %q", ErrValidation, field)
	}
	if _, err := s.repo.GetPOLine(ctx, lineID); err != nil {
		return err
	}
	period, err := s.resolveMonth(ctx, "")
	if err != nil {
		return err
	}
	return s.repo.UpsertTrueUp(ctx, lineID, period.Label, field, value, editor)
}

// UpdateRemarks upserts the remarks text for the line in the active
// processing month.
func (s *Service) UpdateRemarks(ctx context.Context, lineID int64, remarks, editor string) error {
	if _, err := s.repo.GetPOLine(ctx, lineID); err != nil {
		return err
	}
	period, err := s.resolveMonth(ctx, "")
	if err != nil {
		return err
	}
	return s.repo.UpsertRemarks(ctx, lineID, period.Label, remarks, editor)
}

// ExceptionSummary reduces both categories' line views into cross-cutting
// exception metrics. The result may be served from cache: it is a reporting
// view that tolerates staleness, unlike the line views themselves.
func (s *Service) ExceptionSummary(ctx context.Context, month string) (ExceptionSummary, error) {
	period, err := s.resolveMonth(ctx, month)
	if err != nil {
		return ExceptionSummary{}, err
	}
	loader := func(ctx context.Context) (interface{}, error) {
		return s.computeSummary(ctx, period)
	}
	if s.cache == nil {
		summary, err := s.computeSummary(ctx, period)
		if err != nil {
			return ExceptionSummary{}, err
		}
		return summary, nil
	}
	key, err := s.cache.BuildKey(ctx, "accrual", "exceptions", period.Label)
	if err != nil {
		return ExceptionSummary{}, err
	}
	var summary ExceptionSummary
	if err := s.cache.FetchJSON(ctx, key, &summary, loader); err != nil {
		return ExceptionSummary{}, err
	}
	return summary, nil
}

// ActiveMonth resolves the label of the month currently being processed.
func (s *Service) ActiveMonth(ctx context.Context) (string, error) {
	period, err := s.resolveMonth(ctx, "")
	if err != nil {
		return "", err
	}
	return period.Label, nil
}

func (s *Service) computeSummary(ctx context.Context, period ProcessingPeriod) (ExceptionSummary, error) {
	periodViews, err := s.assemble(ctx, CategoryPeriod, period)
	if err != nil {
		return ExceptionSummary{}, err
	}
	activityViews, err := s.assemble(ctx, CategoryActivity, period)
	if err != nil {
		return ExceptionSummary{}, err
	}
	return Reduce(period.Label, append(periodViews, activityViews...)), nil
}

func (s *Service) resolveMonth(ctx context.Context, month string) (ProcessingPeriod, error) {
	if month == "" {
		stored, err := s.repo.GetConfig(ctx, ConfigKeyProcessingMonth)
		switch {
		case err == nil:
			month = stored
		case errors.Is(err, ErrNotFound):
			// No stored setting; the resolver falls back below.
		default:
			return ProcessingPeriod{}, err
		}
	}
	period, fellBack := ResolvePeriod(month, s.fallback)
	if fellBack {
		s.logger.Warn("processing month fell back to default",
			slog.String("requested", month),
			slog.String("resolved", period.Label))
		if s.fallbackSig != nil {
			s.fallbackSig.Inc()
		}
	}
	return period, nil
}

func (s *Service) assemble(ctx context.Context, category Category, period ProcessingPeriod) ([]LineView, error) {
	lines, err := s.repo.ListPOLines(ctx, category)
	if err != nil {
		return nil, err
	}
	selected := lines[:0:0]
	for _, line := range lines {
		if lineInMonth(line, period) {
			selected = append(selected, line)
		}
	}
	if len(selected) == 0 {
		return []LineView{}, nil
	}

	ids := make([]int64, len(selected))
	for i, line := range selected {
		ids[i] = line.ID
	}
	grnByLine, err := s.repo.ListGRNTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]LineView, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(computeConcurrency)
	for i, line := range selected {
		i, line := i, line
		g.Go(func() error {
			view, err := s.buildView(gctx, line, grnByLine[line.ID], period)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].PONumber == views[j].PONumber {
			return views[i].LineNo < views[j].LineNo
		}
		return views[i].PONumber < views[j].PONumber
	})
	return views, nil
}

func (s *Service) buildView(ctx context.Context, line POLine, txns []GRNTransaction, period ProcessingPeriod) (LineView, error) {
	adjustment, err := s.repo.GetPeriodCalculation(ctx, line.ID, period.Label)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return LineView{}, err
		}
		adjustment = PeriodCalculation{POLineID: line.ID, Month: period.Label}
	}

	buckets := BucketGRN(txns, period)

	var start, end *time.Time
	if t, ok := ParseDate(line.StartDate); ok {
		start = &t
	}
	if t, ok := ParseDate(line.EndDate); ok {
		end = &t
	}

	result := Compute(CalcInput{
		NetAmount:     line.NetAmount,
		StartDate:     start,
		EndDate:       end,
		Period:        period,
		GRN:           buckets,
		PrevTrueUp:    adjustment.PrevTrueUp,
		CurrentTrueUp: adjustment.CurrentTrueUp,
	})

	view := LineView{
		ID:           line.ID,
		PONumber:     line.PONumber,
		LineNo:       line.LineNo,
		Vendor:       line.Vendor,
		Description:  line.Description,
		NetAmount:    line.NetAmount,
		GLAccount:    line.GLAccount,
		CostCenter:   line.CostCenter,
		ProfitCenter: line.ProfitCenter,
		Plant:        line.Plant,
		Category:     line.Category,
		Status:       line.Status,
		StartDate:    line.StartDate,
		EndDate:      line.EndDate,

		Month:     period.Label,
		PrevMonth: period.PrevLabel,

		TotalDays:        result.TotalDays,
		DailyRate:        result.DailyRate,
		PrevMonthDays:    result.PrevMonthDays,
		CurrentMonthDays: result.CurrentMonthDays,

		PrevMonthProvision: result.PrevMonthProvision,
		SuggestedProvision: result.SuggestedProvision,

		PrevMonthGRN:    buckets.PrevMonth,
		CurrentMonthGRN: buckets.CurrentMonth,
		TotalGRNToDate:  buckets.ToDate,

		PrevTrueUp:    adjustment.PrevTrueUp,
		CurrentTrueUp: adjustment.CurrentTrueUp,

		CarryForward:   result.CarryForward,
		FinalProvision: result.FinalProvision,

		Remarks:   adjustment.Remarks,
		UpdatedBy: adjustment.UpdatedBy,
	}

	if line.Category == CategoryActivity && s.assignments != nil {
		assignment, err := s.assignments.AssignmentFor(ctx, line.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return LineView{}, err
		}
		view.Assignee = assignment.Assignee
		view.AssignmentStatus = assignment.Status
	}

	return view, nil
}

// lineInMonth applies the month-window filter. Lines missing either contract
// date are never filtered out, so incomplete records stay visible for
// correction.
func lineInMonth(line POLine, period ProcessingPeriod) bool {
	start, okStart := ParseDate(line.StartDate)
	end, okEnd := ParseDate(line.EndDate)
	if !okStart || !okEnd {
		return true
	}
	return !start.After(period.MonthEnd) && !end.Before(period.MonthStart)
}
