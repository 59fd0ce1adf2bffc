package crud

import (
	"context"
	"sync"

	"github.com/oshokin/secpi-console/internal/domain/entity"
)

// ItemResult is the outcome of one import add.
type ItemResult struct {
	// Index is the position of the record among the submitted records.
	Index int
	// Class is the target class; zero when the record's type was unknown.
	Class entity.Class
	// Type is the record's type as written in the import text.
	Type string
	// Message is the server message of a successful add.
	Message string
	// Err is set for failed adds.
	Err error
}

// BatchResult aggregates every settled item of an import.
type BatchResult struct {
	// Items are ordered by Index.
	Items []ItemResult
	// Succeeded and Failed partition the settled items.
	Succeeded int
	Failed    int
	// RefreshErr is the error of the single list refresh run after the batch, if any.
	RefreshErr error
}

// Completed is the number of settled items: failures count too.
func (r BatchResult) Completed() int {
	return r.Succeeded + r.Failed
}

// Failures returns the failed items.
func (r BatchResult) Failures() []ItemResult {
	var result []ItemResult

	for _, item := range r.Items {
		if item.Err != nil {
			result = append(result, item)
		}
	}

	return result
}

// Batch is a running import. It resolves once every item has settled
// and the list has been refreshed.
type Batch struct {
	total int
	done  chan struct{}

	mu      sync.Mutex
	settled int
	result  BatchResult
}

func newBatch(total int) *Batch {
	return &Batch{
		total:  total,
		done:   make(chan struct{}),
		result: BatchResult{Items: make([]ItemResult, total)},
	}
}

// Len returns the number of items in the batch.
func (b *Batch) Len() int {
	return b.total
}

// Settled returns how many items have finished so far.
func (b *Batch) Settled() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.settled
}

// Done is closed when the batch has resolved.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch resolves or ctx ends.
func (b *Batch) Wait(ctx context.Context) (BatchResult, error) {
	select {
	case <-b.done:
		return b.Result(), nil
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	}
}

// Result returns a snapshot of the aggregated outcome.
func (b *Batch) Result() BatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := b.result
	res.Items = append([]ItemResult(nil), b.result.Items...)

	return res
}

// settle records one item; it is safe for concurrent use.
func (b *Batch) settle(item ItemResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.result.Items[item.Index] = item
	b.settled++

	if item.Err != nil {
		b.result.Failed++
	} else {
		b.result.Succeeded++
	}
}

// resolve finishes the batch with the refresh outcome.
func (b *Batch) resolve(refreshErr error) {
	b.mu.Lock()
	b.result.RefreshErr = refreshErr
	b.mu.Unlock()

	close(b.done)
}
