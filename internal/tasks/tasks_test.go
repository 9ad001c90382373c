package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindfund/kindfund/internal/service"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: Queue, Type: task.Type()}, nil
}

type fakeWarmer struct {
	popular int
	ids     [][]int64
	err     error
}

func (f *fakeWarmer) WarmPopularCampaignsCache(context.Context) (*service.WarmReport, error) {
	f.popular++
	if f.err != nil {
		return nil, f.err
	}
	return &service.WarmReport{Attempted: 2, Warmed: 2}, nil
}

func (f *fakeWarmer) WarmCacheForCampaigns(_ context.Context, ids []int64) (*service.WarmReport, error) {
	f.ids = append(f.ids, ids)
	if f.err != nil {
		return nil, f.err
	}
	return &service.WarmReport{Attempted: len(ids), Warmed: len(ids)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_EnqueueWarmCampaigns(t *testing.T) {
	t.Parallel()

	enq := &fakeEnqueuer{}
	d := NewDispatcher(enq, 10*time.Minute, discardLogger())

	id, err := d.EnqueueWarmCampaigns(context.Background(), []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	require.Len(t, enq.tasks, 1)
	task := enq.tasks[0]
	assert.Equal(t, TypeWarmCampaigns, task.Type())
	assert.JSONEq(t, `{"campaign_ids":[3,4]}`, string(task.Payload()))
}

func TestDispatcher_EnqueueWarmPopular(t *testing.T) {
	t.Parallel()

	enq := &fakeEnqueuer{}
	d := NewDispatcher(enq, 0, discardLogger())

	_, err := d.EnqueueWarmPopular(context.Background())
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeWarmPopular, enq.tasks[0].Type())
}

func TestDispatcher_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate", asynq.ErrDuplicateTask, ErrAlreadyQueued},
		{"conflict", asynq.ErrTaskIDConflict, ErrAlreadyQueued},
		{"broker down", errors.New("dial tcp: connection refused"), nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDispatcher(&fakeEnqueuer{err: tt.err}, time.Minute, discardLogger())
			_, err := d.EnqueueWarmPopular(context.Background())
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.NotErrorIs(t, err, ErrAlreadyQueued)
			}
		})
	}
}

func TestHandlers_WarmCampaigns(t *testing.T) {
	t.Parallel()

	w := &fakeWarmer{}
	h := NewHandlers(w, discardLogger())

	task, err := NewWarmCampaignsTask([]int64{9}, 0)
	require.NoError(t, err)
	require.NoError(t, h.HandleWarmCampaigns(context.Background(), task))

	empty := asynq.NewTask(TypeWarmCampaigns, nil)
	require.NoError(t, h.HandleWarmCampaigns(context.Background(), empty))

	assert.Equal(t, [][]int64{{9}, nil}, w.ids)
}

func TestHandlers_WarmCampaigns_BadPayloadSkipsRetry(t *testing.T) {
	t.Parallel()

	w := &fakeWarmer{}
	h := NewHandlers(w, discardLogger())

	err := h.HandleWarmCampaigns(context.Background(), asynq.NewTask(TypeWarmCampaigns, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, w.ids)
}

func TestHandlers_WarmPopular(t *testing.T) {
	t.Parallel()

	w := &fakeWarmer{}
	h := NewHandlers(w, discardLogger())
	require.NoError(t, h.HandleWarmPopular(context.Background(), NewWarmPopularTask(time.Minute)))
	assert.Equal(t, 1, w.popular)

	w.err = errors.New("redis timeout")
	err := h.HandleWarmPopular(context.Background(), NewWarmPopularTask(time.Minute))
	require.ErrorIs(t, err, w.err)
}

func TestHandlers_Register(t *testing.T) {
	t.Parallel()

	w := &fakeWarmer{}
	mux := asynq.NewServeMux()
	NewHandlers(w, discardLogger()).Register(mux)

	require.NoError(t, mux.ProcessTask(context.Background(), NewWarmPopularTask(0)))
	assert.Equal(t, 1, w.popular)
}

func TestLogger_RoutesThroughSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.Warn("queue ", Queue, " paused")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="queue cache paused"`)
	assert.Contains(t, out, "component=asynq")
}
