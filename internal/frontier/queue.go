package frontier

import (
	"container/heap"
	"math"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// networkQueue is one network's priority queue, keyed by normalized URL.
// Pushing an already-queued URL replaces its job and priority. Not
// goroutine-safe; the Frontier guards each queue with its own mutex.
type networkQueue struct {
	pq   jobHeap
	jobs map[string]*types.CrawlJob
	// index maps normalized URL -> heap position for replacement pushes.
	index map[string]int
	seq   uint64
}

func newNetworkQueue() *networkQueue {
	return &networkQueue{
		jobs:  make(map[string]*types.CrawlJob),
		index: make(map[string]int),
	}
}

func (q *networkQueue) push(normalized string, job *types.CrawlJob) {
	q.jobs[normalized] = job
	if pos, ok := q.index[normalized]; ok {
		q.pq[pos].priority = job.Priority
		heap.Fix(&q.pq, pos)
		return
	}
	q.seq++
	heap.Push(&q.pq, &queueItem{
		key:      normalized,
		priority: job.Priority,
		seq:      q.seq,
		queue:    q,
	})
}

func (q *networkQueue) pop() *types.CrawlJob {
	if q.pq.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.pq).(*queueItem)
	job := q.jobs[item.key]
	delete(q.jobs, item.key)
	return job
}

func (q *networkQueue) len() int { return q.pq.Len() }

// queueItem is a heap entry. Priorities are float64; comparison falls back to
// insertion order on equality (and on NaN, which compares false both ways) so
// the heap is total and never panics on a NaN priority.
type queueItem struct {
	key      string
	priority float64
	seq      uint64
	queue    *networkQueue
}

// jobHeap is a max-heap on priority.
type jobHeap []*queueItem

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	pi, pj := h[i].priority, h[j].priority
	// Bit-identical floats are equal; otherwise NaN comparisons are false
	// both ways and fall through to FIFO order.
	if math.Float64bits(pi) == math.Float64bits(pj) || !(pi > pj) && !(pj > pi) {
		return h[i].seq < h[j].seq
	}
	return pi > pj
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].queue.index[h[i].key] = i
	h[j].queue.index[h[j].key] = j
}

func (h *jobHeap) Push(x any) {
	item := x.(*queueItem)
	item.queue.index[item.key] = len(*h)
	*h = append(*h, item)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	delete(item.queue.index, item.key)
	return item
}
