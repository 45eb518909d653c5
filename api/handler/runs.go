package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/pipeline"
	"github.com/use-agent/savings/webhook"
)

// Runner executes one pipeline run.
type Runner interface {
	Execute(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// RunStore tracks API-started runs and admits one at a time.
type RunStore struct {
	ctx    context.Context
	runner Runner
	jobs   sync.Map
	active atomic.Bool

	// notify delivers webhook events; swapped in tests.
	notify func(url, secret string, ev *webhook.Event)
}

// NewRunStore creates a RunStore. Runs inherit ctx, so cancelling it aborts
// the run in flight. Finished jobs are dropped after an hour.
func NewRunStore(ctx context.Context, runner Runner) *RunStore {
	s := &RunStore{ctx: ctx, runner: runner, notify: webhook.DeliverAsync}
	go s.expireLoop()
	return s
}

// Active reports whether a run is in progress.
func (s *RunStore) Active() bool {
	return s.active.Load()
}

func (s *RunStore) expireLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.expire(time.Now().Add(-1 * time.Hour).Unix())
		}
	}
}

func (s *RunStore) expire(cutoff int64) {
	s.jobs.Range(func(key, value any) bool {
		if value.(*models.RunJob).CreatedAt < cutoff {
			s.jobs.Delete(key)
		}
		return true
	})
}

// PostRun returns a handler for POST /api/v1/runs.
func PostRun(s *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, models.RunResponse{
					Status: models.RunStatusFailed,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: err.Error(),
					},
				})
				return
			}
		}

		if !s.active.CompareAndSwap(false, true) {
			c.JSON(http.StatusConflict, models.RunResponse{
				Status: models.RunStatusFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRunInProgress,
					Message: "a run is already in progress",
				},
			})
			return
		}

		job := &models.RunJob{
			ID:        "run-" + randomID(),
			Status:    models.RunStatusProcessing,
			CreatedAt: time.Now().Unix(),
		}
		s.jobs.Store(job.ID, job)

		go s.execute(job, req)

		c.JSON(http.StatusAccepted, models.RunResponse{
			ID:     job.ID,
			Status: models.RunStatusProcessing,
		})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(s *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := s.jobs.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.RunStatusResponse{
				ID:     c.Param("id"),
				Status: models.RunStatusFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "run not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, val.(*models.RunJob).Snapshot())
	}
}

func (s *RunStore) execute(job *models.RunJob, req models.RunRequest) {
	defer s.active.Store(false)

	res, err := s.runner.Execute(s.ctx, pipeline.Options{
		SourceURL:   req.URL,
		EnrichLimit: req.EnrichLimit,
		Format:      req.Format,
	})

	ev := &webhook.Event{RunID: job.ID, Timestamp: time.Now().Unix()}
	if err != nil {
		detail := models.AsScrapeError(err).ToDetail()
		job.Finish(nil, detail)
		slog.Error("run failed", "id", job.ID, "code", detail.Code, "error", err)
		ev.Type, ev.Data = webhook.EventRunFailed, detail
	} else {
		job.Finish(res.Report, nil)
		slog.Info("run finished",
			"id", job.ID,
			"records", res.Report.RecordsExtracted,
			"enriched", res.Report.Enriched,
			"output", res.Report.OutputPath,
		)
		ev.Type, ev.Data = webhook.EventRunCompleted, res.Report
	}

	if req.WebhookURL != "" {
		s.notify(req.WebhookURL, req.WebhookSecret, ev)
	}
}

// randomID generates a short random hex string for run IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
