package analytics

import (
	"context"
	"sync"
)

// WorkerPool computes per-portfolio reports on a fixed number of goroutines.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// Run calls fn once per id and returns the results in input order. Portfolios
// are independent, so workers share nothing but the job channel. Ids still
// queued when ctx is cancelled get the context error instead.
func (wp *WorkerPool) Run(ctx context.Context, ids []string, fn func(ctx context.Context, id string) BatchItem) []BatchItem {
	if len(ids) == 0 {
		return []BatchItem{}
	}

	jobs := make(chan jobItem, len(ids))
	results := make(chan resultItem, len(ids))

	workers := wp.numWorkers
	if len(ids) < workers {
		workers = len(ids)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, fn)
		}()
	}

	for idx, id := range ids {
		jobs <- jobItem{index: idx, id: id}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]BatchItem, len(ids))
	for r := range results {
		out[r.index] = r.item
	}
	return out
}

type jobItem struct {
	index int
	id    string
}

type resultItem struct {
	index int
	item  BatchItem
}

func worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, fn func(ctx context.Context, id string) BatchItem) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem{index: job.index, item: BatchItem{PortfolioID: job.id, Error: err.Error()}}
			continue
		}
		results <- resultItem{index: job.index, item: fn(ctx, job.id)}
	}
}
