package detector

import (
	"sync"

	"go.uber.org/zap"
)

// workerPool is the bounded off-path job queue for triangular/multi-leg
// scans (spec.md §4.3 "both run off-path using a bounded worker-task
// budget; they never block the hot path"). Grounded on the teacher's
// internal/bot/engine.go shard-worker idiom: a fixed number of
// goroutines draining a single buffered channel, with submit using a
// non-blocking select so a saturated pool drops the job instead of
// queueing it (spec.md §5 "new jobs are dropped... if the pool is
// saturated").
type workerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newWorkerPool(size int, chainID string, logger *zap.SugaredLogger) *workerPool {
	if size <= 0 {
		size = 4
	}
	p := &workerPool{jobs: make(chan func(), size*2)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// submit enqueues job without blocking; returns false if the queue is
// full, in which case the caller is responsible for counting the drop.
func (p *workerPool) submit(job func()) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// close drains and stops the pool once queued jobs finish.
func (p *workerPool) close() {
	close(p.jobs)
	p.wg.Wait()
}
