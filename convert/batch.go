package convert

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"epdf/common"
	"epdf/progress"
)

// Batch runs jobs one after another. Failed job does not stop the batch,
// cancellation does: job being processed is marked cancelled and the rest
// stay pending.
type Batch struct {
	engine *Engine
	log    *zap.Logger

	mu    sync.Mutex
	state BatchState
}

func NewBatch(engine *Engine) *Batch {
	return &Batch{engine: engine, log: engine.log.Named("batch")}
}

// State returns current batch state.
func (b *Batch) State() BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Batch) setState(s BatchState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

// Run processes jobs in order and returns aggregated summary.
func (b *Batch) Run(ctx context.Context, jobs []*Job) Summary {
	b.setState(BatchRunning)
	sum := Summary{Total: len(jobs)}

	b.log.Info("Batch starting", zap.Int("jobs", len(jobs)))
	for i, job := range jobs {
		if common.CheckCancelled(ctx) != nil {
			break
		}

		job.Status = JobRunning
		sink := progress.Range(b.engine.sink, progress.Step(i, len(jobs)), progress.Step(i+1, len(jobs)))
		job.Result = b.engine.run(ctx, job, sink)

		switch {
		case job.Result.Success:
			job.Status = JobSucceeded
			sum.Succeeded++
		case common.IsCancelled(job.Result.Err):
			job.Status = JobCancelled
			sum.Cancelled++
		default:
			job.Status = JobFailed
			sum.Failed++
		}
		if job.Status == JobCancelled {
			break
		}
	}

	sum.State = BatchCompleted
	if sum.Cancelled > 0 || sum.Succeeded+sum.Failed < sum.Total {
		sum.State = BatchCancelled
	}
	b.setState(sum.State)
	b.log.Info("Batch finished", zap.Stringer("state", sum.State), zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded), zap.Int("failed", sum.Failed), zap.Int("cancelled", sum.Cancelled))
	return sum
}
