package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vasu15/record-to-report/internal/accrual"
)

const (
	// QueueDefault is the queue name for background jobs.
	QueueDefault = "default"
	// TaskExceptionsWarmup recomputes the exception summary for the active
	// processing month and warms the report cache.
	TaskExceptionsWarmup = "accrual:exceptions_warmup"
)

// ExceptionsWarmupPayload selects which month to warm. An empty month means
// the stored processing month.
type ExceptionsWarmupPayload struct {
	Month string `json:"month"`
}

// NewExceptionsWarmupTask constructs the warmup task.
func NewExceptionsWarmupTask(month string) (*asynq.Task, error) {
	data, err := json.Marshal(ExceptionsWarmupPayload{Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExceptionsWarmup, data, asynq.Queue(QueueDefault)), nil
}

// WarmupHandler processes TaskExceptionsWarmup tasks.
type WarmupHandler struct {
	service *accrual.Service
	logger  *slog.Logger
	metrics *Metrics
}

// NewWarmupHandler builds the handler. A nil metrics disables job
// instrumentation.
func NewWarmupHandler(service *accrual.Service, logger *slog.Logger, metrics *Metrics) *WarmupHandler {
	return &WarmupHandler{service: service, logger: logger, metrics: metrics}
}

// ProcessTask computes the exception summary; the service's fetch-through
// cache stores the result for subsequent report reads.
func (h *WarmupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExceptionsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := h.metrics.Track(TaskExceptionsWarmup)
	summary, err := h.service.ExceptionSummary(ctx, payload.Month)
	if err != nil {
		return tracker.End(err)
	}
	_ = tracker.End(nil)
	h.logger.Info("exception summary warmed",
		slog.String("month", summary.Month),
		slog.Int("lines", summary.TotalLines),
		slog.Int("negative", summary.NegativeProvisionCount))
	return nil
}
