package jobs

import (
	"context"
	"log/slog"
	"time"

	"kpiconsole/internal/platform/ids"
	"kpiconsole/internal/platform/store"
)

// Task is the work of one run. Its result is kept as the run's details.
type Task func(ctx context.Context) (any, error)

type Recorder interface {
	IncJob(jobType, status string)
}

type Service struct {
	runs     *store.Collection[[]Run]
	queue    chan job
	Recorder Recorder
	Now      func() time.Time
}

type job struct {
	RunID string
	Type  string
	Run   Task
}

func New(st *store.Store) *Service {
	return &Service{
		runs:  store.NewCollection(st, store.KeyJobRuns, func() []Run { return []Run{} }),
		queue: make(chan job, 128),
		Now:   time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Schedule enqueues task every interval until ctx is done.
func (s *Service) Schedule(ctx context.Context, jobType string, interval time.Duration, task Task) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Enqueue(ctx, jobType, task); err != nil {
					slog.Warn("scheduled job enqueue failed", "jobType", jobType, "err", err)
				}
			}
		}
	}()
}

// Enqueue records a queued run and hands it to the worker.
func (s *Service) Enqueue(ctx context.Context, jobType string, task Task) (Run, error) {
	run := s.record(ctx, jobType)
	select {
	case s.queue <- job{RunID: run.ID, Type: jobType, Run: task}:
		return run, nil
	default:
		slog.Warn("job queue full", "jobType", jobType)
		s.count(jobType, "dropped")
		s.transition(ctx, run.ID, func(r *Run) {
			r.Status = StatusFailed
			r.Error = ErrQueueFull.Error()
		})
		return Run{}, ErrQueueFull
	}
}

// RunNow executes task on the caller's goroutine and records the run.
func (s *Service) RunNow(ctx context.Context, jobType string, task Task) (Run, error) {
	run := s.record(ctx, jobType)
	return s.runJob(ctx, job{RunID: run.ID, Type: jobType, Run: task})
}

func (s *Service) record(ctx context.Context, jobType string) Run {
	now := s.Now().UTC()
	run := Run{ID: ids.New(now), Type: jobType, Status: StatusQueued, CreatedAt: now}
	if err := s.runs.Update(ctx, func(runs *[]Run) error {
		*runs = store.AppendCapped(*runs, run, runCap)
		return nil
	}); err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
	}
	return run
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "runId", j.RunID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (Run, error) {
	started := s.Now().UTC()
	s.transition(ctx, j.RunID, func(r *Run) {
		r.Status = StatusRunning
		r.StartedAt = &started
	})

	details, err := j.Run(ctx)
	completed := s.Now().UTC()
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	s.count(j.Type, status)

	final := s.transition(ctx, j.RunID, func(r *Run) {
		r.Status = status
		r.Details = details
		r.CompletedAt = &completed
		if err != nil {
			r.Error = err.Error()
		}
	})
	if final.ID == "" {
		final = Run{ID: j.RunID, Type: j.Type, Status: status, Details: details, StartedAt: &started, CompletedAt: &completed}
		if err != nil {
			final.Error = err.Error()
		}
	}
	return final, err
}

// transition applies fn to the stored run and returns the result. Runs
// already evicted from the history are left alone.
func (s *Service) transition(ctx context.Context, runID string, fn func(*Run)) Run {
	var updated Run
	err := s.runs.Update(ctx, func(runs *[]Run) error {
		updated = Run{}
		for i := range *runs {
			if (*runs)[i].ID == runID {
				fn(&(*runs)[i])
				updated = (*runs)[i]
				return nil
			}
		}
		return store.ErrNoChange
	})
	if err != nil {
		slog.Warn("job run update failed", "runId", runID, "err", err)
	}
	return updated
}

func (s *Service) Get(ctx context.Context, runID string) (Run, error) {
	runs, err := s.runs.Get(ctx)
	if err != nil {
		return Run{}, err
	}
	for _, r := range runs {
		if r.ID == runID {
			return r, nil
		}
	}
	return Run{}, ErrRunNotFound
}

// List returns runs newest first, optionally of one type.
func (s *Service) List(ctx context.Context, jobType string, limit int) ([]Run, error) {
	runs, err := s.runs.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		if jobType != "" && runs[i].Type != jobType {
			continue
		}
		out = append(out, runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) count(jobType, status string) {
	if s.Recorder != nil {
		s.Recorder.IncJob(jobType, status)
	}
}
