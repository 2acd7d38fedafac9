package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/slogx"
)

// Local runs registered handlers in-process.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	store  *MemoryJobStore
	inline bool
	wg     sync.WaitGroup
	now    func() time.Time
	log    *slog.Logger
}

// LocalOption customizes a Local runner.
type LocalOption func(*Local)

// Synchronous makes StartJob run the handler before returning and return
// its error.
func Synchronous() LocalOption {
	return func(l *Local) { l.inline = true }
}

// WithLocalLogger replaces the default component logger.
func WithLocalLogger(log *slog.Logger) LocalOption {
	return func(l *Local) { l.log = log }
}

// NewLocal creates a runner with no registered jobs.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		handlers: make(map[string]Handler),
		store:    NewMemoryJobStore(),
		now:      time.Now,
		log:      slogx.Component("runner"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Register binds name to h, replacing any previous handler.
func (l *Local) Register(name string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[name] = h
}

// Names returns the registered job names, sorted.
func (l *Local) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.handlers))
	for n := range l.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StartJob records a new run of name and executes it. Unknown names fail
// with ErrUnknownJob before any run is recorded.
func (l *Local) StartJob(ctx context.Context, name string, args map[string]string) (string, error) {
	l.mu.RLock()
	h, ok := l.handlers[name]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("job %q: %w", name, errors.ErrUnknownJob)
	}

	job := Job{
		ID:        uuid.NewString(),
		Name:      name,
		Args:      args,
		Status:    StatusPending,
		CreatedAt: l.now(),
	}
	if err := l.store.Create(job); err != nil {
		return "", err
	}
	l.log.Info("job started", "job", name, "run_id", job.ID)

	if l.inline {
		if err := l.run(ctx, job.ID, h, args); err != nil {
			return job.ID, fmt.Errorf("job %s run %s: %w", name, job.ID, err)
		}
		return job.ID, nil
	}

	l.wg.Add(1)
	// The run outlives the caller's request, not its values.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer l.wg.Done()
		_ = l.run(runCtx, job.ID, h, args)
	}()
	return job.ID, nil
}

func (l *Local) run(ctx context.Context, id string, h Handler, args map[string]string) error {
	_ = l.store.Update(id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = l.now()
	})

	err := h(ctx, args)

	_ = l.store.Update(id, func(j *Job) {
		j.CompletedAt = l.now()
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
	})
	if err != nil {
		l.log.Error("job failed", "run_id", id, "error", err)
	} else {
		l.log.Info("job completed", "run_id", id)
	}
	return err
}

// Job returns the current state of a run.
func (l *Local) Job(id string) (Job, error) {
	return l.store.Get(id)
}

// Jobs returns every recorded run, oldest first.
func (l *Local) Jobs() []Job {
	return l.store.List()
}

// Wait blocks until every asynchronous run has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}
