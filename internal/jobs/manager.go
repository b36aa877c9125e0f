// Package jobs tracks render jobs in memory and runs them one at a
// time on a single worker goroutine.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"montaj/internal/models"
)

// Runner executes one render job. It reports coarse progress through
// the stage callback and returns the path of the finished output file.
type Runner interface {
	Run(ctx context.Context, job models.Job, stage func(string)) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job models.Job, stage func(string)) (string, error)

func (f RunnerFunc) Run(ctx context.Context, job models.Job, stage func(string)) (string, error) {
	return f(ctx, job, stage)
}

// Manager owns the job table and the queue feeding the worker loop.
// All map access goes through the mutex; the worker holds no locks
// while a render is running.
type Manager struct {
	log    *zap.Logger
	runner Runner

	mu    sync.Mutex
	jobs  map[uuid.UUID]*models.Job
	order []uuid.UUID

	queue chan uuid.UUID
}

func NewManager(log *zap.Logger, runner Runner, queueSize int) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Manager{
		log:    log.Named("jobs"),
		runner: runner,
		jobs:   make(map[uuid.UUID]*models.Job),
		queue:  make(chan uuid.UUID, queueSize),
	}
}

// Enqueue registers a new job and hands it to the worker. It fails
// when the queue buffer is full rather than blocking the caller.
func (m *Manager) Enqueue(req models.RenderRequest) (models.Job, error) {
	job := &models.Job{
		ID:         uuid.New(),
		Status:     models.JobStatusQueued,
		Request:    req,
		OutputName: req.OutputName,
		CreatedAt:  time.Now().UTC(),
	}
	if job.OutputName == "" {
		job.OutputName = job.ID.String() + ".mp4"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case m.queue <- job.ID:
	default:
		return models.Job{}, fmt.Errorf("render queue is full (%d pending)", cap(m.queue))
	}

	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.log.Info("job queued", zap.String("job_id", job.ID.String()))
	return *job, nil
}

// Get returns a snapshot of the job, if known.
func (m *Manager) Get(id uuid.UUID) (models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.jobs[m.order[i]])
	}
	return out
}

// Run is the worker loop. Jobs execute strictly one at a time; renders
// never interleave. It returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.log.Info("job worker started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info("job worker stopped")
			return
		case id := <-m.queue:
			m.process(ctx, id)
		}
	}
}

func (m *Manager) process(ctx context.Context, id uuid.UUID) {
	snapshot, ok := m.start(id)
	if !ok {
		return
	}

	m.log.Info("job started", zap.String("job_id", id.String()))
	began := time.Now()

	output, err := m.runner.Run(ctx, snapshot, func(stage string) {
		m.setStage(id, stage)
	})

	m.mu.Lock()
	job := m.jobs[id]
	now := time.Now().UTC()
	job.FinishedAt = &now
	job.Stage = ""
	if err != nil {
		job.Status = models.JobStatusFailed
		msg := err.Error()
		job.Error = &msg
	} else {
		job.Status = models.JobStatusCompleted
		job.OutputPath = output
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error("job failed",
			zap.String("job_id", id.String()),
			zap.Duration("took", time.Since(began)),
			zap.Error(err))
		return
	}
	m.log.Info("job completed",
		zap.String("job_id", id.String()),
		zap.Duration("took", time.Since(began)),
		zap.String("output", output))
}

func (m *Manager) start(id uuid.UUID) (models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	return *job, true
}

func (m *Manager) setStage(id uuid.UUID, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == models.JobStatusRunning {
		job.Stage = stage
	}
}

// Pending reports how many jobs are waiting in the queue buffer.
func (m *Manager) Pending() int {
	return len(m.queue)
}
