package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Result is the terminal state of a submitted job.
type Result struct {
	Job Job
	Err error
}

// Runner executes each submitted job in its own goroutine. Jobs share only
// the pipeline's analyzers, which hold no per-job state.
type Runner struct {
	p   *Pipeline
	wg  sync.WaitGroup
	log *logrus.Entry

	mu      sync.Mutex
	results []Result
}

func NewRunner(p *Pipeline, log *logrus.Entry) *Runner {
	return &Runner{p: p, log: log.WithField("component", "runner")}
}

// Submit starts job and returns its ID immediately.
func (r *Runner) Submit(ctx context.Context, job Job) string {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, err := r.p.Run(ctx, job)
		if err != nil {
			r.log.WithError(err).WithField("session_id", job.SessionID).Error("job failed")
		}
		r.mu.Lock()
		r.results = append(r.results, Result{Job: job, Err: err})
		r.mu.Unlock()
	}()
	r.log.WithFields(logrus.Fields{"session_id": job.SessionID, "job_id": job.ID}).Info("job submitted")
	return job.ID
}

// Wait blocks until every submitted job has finished and returns their
// results in completion order.
func (r *Runner) Wait() []Result {
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}
