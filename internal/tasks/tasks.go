// Package tasks defines the background cache-warming jobs run on asynq.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kindfund/kindfund/internal/service"
)

// Task types.
const (
	TypeWarmPopular   = "cache:warm_popular"
	TypeWarmCampaigns = "cache:warm_campaigns"
)

const (
	// Queue is the asynq queue warm tasks run on.
	Queue = "cache"

	maxRetry    = 3
	taskTimeout = 2 * time.Minute
)

// ErrAlreadyQueued means an identical warm task is already pending.
var ErrAlreadyQueued = errors.New("warm task already queued")

// WarmCampaignsPayload is the payload of a TypeWarmCampaigns task. Empty
// CampaignIDs warms the default candidate set.
type WarmCampaignsPayload struct {
	CampaignIDs []int64 `json:"campaign_ids,omitempty"`
}

// NewWarmPopularTask builds a warm-popular task, unique for uniqueFor.
func NewWarmPopularTask(uniqueFor time.Duration) *asynq.Task {
	return asynq.NewTask(TypeWarmPopular, nil, taskOptions(uniqueFor)...)
}

// NewWarmCampaignsTask builds a warm-campaigns task, unique for uniqueFor.
func NewWarmCampaignsTask(ids []int64, uniqueFor time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(WarmCampaignsPayload{CampaignIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encode warm payload: %w", err)
	}
	return asynq.NewTask(TypeWarmCampaigns, payload, taskOptions(uniqueFor)...), nil
}

func taskOptions(uniqueFor time.Duration) []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(Queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(taskTimeout),
	}
	if uniqueFor > 0 {
		opts = append(opts, asynq.Unique(uniqueFor))
	}
	return opts
}

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues warm tasks.
type Dispatcher struct {
	client    Enqueuer
	uniqueFor time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. Identical tasks enqueued within
// uniqueFor are rejected with ErrAlreadyQueued.
func NewDispatcher(client Enqueuer, uniqueFor time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:    client,
		uniqueFor: uniqueFor,
		logger:    logger.With("component", "tasks.dispatcher"),
	}
}

// EnqueueWarmPopular queues a warm-popular run and returns its task id.
func (d *Dispatcher) EnqueueWarmPopular(ctx context.Context) (string, error) {
	return d.enqueue(ctx, NewWarmPopularTask(d.uniqueFor))
}

// EnqueueWarmCampaigns queues a warm run for ids and returns its task id.
func (d *Dispatcher) EnqueueWarmCampaigns(ctx context.Context, ids []int64) (string, error) {
	task, err := NewWarmCampaignsTask(ids, d.uniqueFor)
	if err != nil {
		return "", err
	}
	return d.enqueue(ctx, task)
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := d.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return "", ErrAlreadyQueued
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	d.logger.Info("warm task enqueued", "task_type", task.Type(), "task_id", info.ID, "queue", info.Queue)
	return info.ID, nil
}

// Warmer runs cache warming.
type Warmer interface {
	WarmPopularCampaignsCache(ctx context.Context) (*service.WarmReport, error)
	WarmCacheForCampaigns(ctx context.Context, ids []int64) (*service.WarmReport, error)
}

// Handlers executes warm tasks.
type Handlers struct {
	warmer Warmer
	logger *slog.Logger
}

// NewHandlers creates task Handlers.
func NewHandlers(warmer Warmer, logger *slog.Logger) *Handlers {
	return &Handlers{warmer: warmer, logger: logger.With("component", "tasks.handlers")}
}

// Register mounts the handlers on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeWarmPopular, h.HandleWarmPopular)
	mux.HandleFunc(TypeWarmCampaigns, h.HandleWarmCampaigns)
}

// HandleWarmPopular runs WarmPopularCampaignsCache.
func (h *Handlers) HandleWarmPopular(ctx context.Context, t *asynq.Task) error {
	report, err := h.warmer.WarmPopularCampaignsCache(ctx)
	if err != nil {
		return fmt.Errorf("warm popular: %w", err)
	}
	h.logDone(t, report)
	return nil
}

// HandleWarmCampaigns runs WarmCacheForCampaigns. A malformed payload is
// not retried.
func (h *Handlers) HandleWarmCampaigns(ctx context.Context, t *asynq.Task) error {
	var payload WarmCampaignsPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			h.logger.Error("invalid warm payload", "task_type", t.Type(), "error", err)
			return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	report, err := h.warmer.WarmCacheForCampaigns(ctx, payload.CampaignIDs)
	if err != nil {
		return fmt.Errorf("warm campaigns: %w", err)
	}
	h.logDone(t, report)
	return nil
}

func (h *Handlers) logDone(t *asynq.Task, r *service.WarmReport) {
	h.logger.Info("warm task finished",
		"task_type", t.Type(),
		"attempted", r.Attempted,
		"warmed", r.Warmed,
		"skipped", r.Skipped,
		"failed", len(r.Failures),
	)
}
