package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"montaj/internal/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within 5s")
}

func TestEnqueueDefaultsOutputName(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", nil
	}), 4)

	job, err := m.Enqueue(models.RenderRequest{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != models.JobStatusQueued {
		t.Errorf("status = %q, want queued", job.Status)
	}
	want := job.ID.String() + ".mp4"
	if job.OutputName != want {
		t.Errorf("OutputName = %q, want %q", job.OutputName, want)
	}

	got, ok := m.Get(job.ID)
	if !ok {
		t.Fatalf("Get returned not found for enqueued job")
	}
	if got.ID != job.ID {
		t.Errorf("Get returned job %s, want %s", got.ID, job.ID)
	}
}

func TestEnqueueKeepsRequestedName(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", nil
	}), 4)

	job, err := m.Enqueue(models.RenderRequest{OutputName: "final.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.OutputName != "final.mp4" {
		t.Errorf("OutputName = %q, want final.mp4", job.OutputName)
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", nil
	}), 1)

	if _, err := m.Enqueue(models.RenderRequest{}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if _, err := m.Enqueue(models.RenderRequest{}); err == nil {
		t.Fatalf("expected error when queue buffer is full")
	}
}

func TestRunCompletesJob(t *testing.T) {
	ran := make(chan models.Job, 1)
	m := NewManager(zap.NewNop(), RunnerFunc(func(_ context.Context, job models.Job, _ func(string)) (string, error) {
		ran <- job
		return "/tmp/out.mp4", nil
	}), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	job, err := m.Enqueue(models.RenderRequest{Quality: models.QualityFast})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case got := <-ran:
		if got.Request.Quality != models.QualityFast {
			t.Errorf("runner saw quality %q, want fast", got.Request.Quality)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runner was never invoked")
	}

	waitFor(t, func() bool {
		got, _ := m.Get(job.ID)
		return got.Status == models.JobStatusCompleted
	})

	got, _ := m.Get(job.ID)
	if got.OutputPath != "/tmp/out.mp4" {
		t.Errorf("OutputPath = %q, want /tmp/out.mp4", got.OutputPath)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Errorf("StartedAt/FinishedAt not recorded: %+v", got)
	}
	if got.Error != nil {
		t.Errorf("unexpected error on completed job: %v", *got.Error)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", errors.New("ffmpeg exited with status 1")
	}), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	job, err := m.Enqueue(models.RenderRequest{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, func() bool {
		got, _ := m.Get(job.ID)
		return got.Status == models.JobStatusFailed
	})

	got, _ := m.Get(job.ID)
	if got.Error == nil || *got.Error != "ffmpeg exited with status 1" {
		t.Errorf("Error = %v, want ffmpeg exited with status 1", got.Error)
	}
	if got.OutputPath != "" {
		t.Errorf("failed job should not carry an output path, got %q", got.OutputPath)
	}
}

func TestStageVisibleWhileRunning(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(zap.NewNop(), RunnerFunc(func(_ context.Context, _ models.Job, stage func(string)) (string, error) {
		stage("rasterizing subtitles")
		<-release
		return "/tmp/out.mp4", nil
	}), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	job, err := m.Enqueue(models.RenderRequest{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, func() bool {
		got, _ := m.Get(job.ID)
		return got.Stage == "rasterizing subtitles"
	})
	close(release)

	waitFor(t, func() bool {
		got, _ := m.Get(job.ID)
		return got.Status == models.JobStatusCompleted
	})
	got, _ := m.Get(job.ID)
	if got.Stage != "" {
		t.Errorf("stage should be cleared after completion, got %q", got.Stage)
	}
}

func TestJobsRunOneAtATime(t *testing.T) {
	var active, peak int
	gate := make(chan struct{}, 3)
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		active++
		if active > peak {
			peak = active
		}
		time.Sleep(20 * time.Millisecond)
		active--
		gate <- struct{}{}
		return "", nil
	}), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	for i := 0; i < 3; i++ {
		if _, err := m.Enqueue(models.RenderRequest{}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-gate:
		case <-time.After(5 * time.Second):
			t.Fatalf("job %d never finished", i)
		}
	}
	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

func TestListNewestFirst(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", nil
	}), 8)

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := m.Enqueue(models.RenderRequest{})
		if err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
		ids = append(ids, job.ID.String())
	}

	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d jobs, want 3", len(list))
	}
	for i, job := range list {
		want := ids[len(ids)-1-i]
		if job.ID.String() != want {
			t.Errorf("List[%d] = %s, want %s", i, job.ID, want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", nil
	}), 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestGetUnknownJob(t *testing.T) {
	m := NewManager(zap.NewNop(), RunnerFunc(func(context.Context, models.Job, func(string)) (string, error) {
		return "", nil
	}), 4)
	if _, ok := m.Get([16]byte{1, 2, 3}); ok {
		t.Fatalf("Get returned ok for unknown id")
	}
}
