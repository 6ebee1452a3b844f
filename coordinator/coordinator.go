// Package coordinator serializes fetches by cache key while allowing
// cross-key parallelism up to a fixed concurrency ceiling.
//
// The coordinator guarantees at most one in-flight fetch per key: concurrent
// requests for the same key share a single completion handle, no matter how
// many callers ask while the fetch runs. Distinct keys run in parallel until
// the active limit is reached; excess requests wait in a FIFO queue and are
// started one at a time as active fetches complete.
//
// There is no per-request cancellation. A fetch that is no longer wanted is
// left to complete and populate its cache entry for possible future reuse.
// Queued requests that have not started can be discarded in bulk when a
// filter or query change makes them semantically wrong.
package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("coordinator")

// ErrDiscarded resolves handles for queued requests dropped by
// DiscardQueued before they started.
var ErrDiscarded = errors.New("queued request discarded")

// DefaultLimit is the default number of concurrently active fetches.
const DefaultLimit = 6

// FetchFunc performs one fetch. Errors are delivered to every waiter on the
// key's handle; they are never re-raised.
type FetchFunc func(ctx context.Context) error

// Coordinator deduplicates and schedules fetches. Construct one per process
// with New and share it among callers; all bookkeeping is mutex-guarded so
// the check-then-act on the in-flight map is atomic.
type Coordinator struct {
	limit int

	mutex    sync.Mutex
	inflight map[string]*Handle
	queue    deque.Deque[*Handle]
	active   int
}

// Handle is the completion signal for one in-flight or queued fetch. All
// callers that requested the same key hold the same Handle.
type Handle struct {
	key   string
	fetch FetchFunc
	done  chan struct{}
	err   error
}

// Done returns a channel closed when the fetch completes or is discarded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the fetch completes, the handle is discarded, or the
// context is canceled. It returns the fetch's terminal error, if any.
// Canceling the context abandons the wait only; the fetch itself keeps
// running.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error. Valid only after Done is closed.
func (h *Handle) Err() error {
	return h.err
}

// New creates a Coordinator with the given concurrency limit. A
// non-positive limit selects DefaultLimit.
func New(limit int) *Coordinator {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Coordinator{
		limit:    limit,
		inflight: make(map[string]*Handle),
	}
}

// Request returns the completion handle for key, starting fetch if no
// request for key is already in flight or queued. When the active count is
// at the limit, the new request is appended to the FIFO queue and starts
// once a slot frees up.
func (c *Coordinator) Request(key string, fetch FetchFunc) *Handle {
	c.mutex.Lock()
	if h, ok := c.inflight[key]; ok {
		c.mutex.Unlock()
		return h
	}

	h := &Handle{
		key:   key,
		fetch: fetch,
		done:  make(chan struct{}),
	}
	c.inflight[key] = h

	if c.active < c.limit {
		c.active++
		c.mutex.Unlock()
		go c.run(h)
	} else {
		c.queue.PushBack(h)
		c.mutex.Unlock()
	}
	return h
}

// run executes one fetch and then starts at most one queued request, so the
// active count never exceeds the limit.
func (c *Coordinator) run(h *Handle) {
	err := h.fetch(context.Background())
	if err != nil {
		log.Debugw("Fetch failed", "key", h.key, "err", err)
	}

	c.mutex.Lock()
	delete(c.inflight, h.key)
	h.err = err
	close(h.done)

	if c.queue.Len() != 0 {
		// Hand the slot directly to the next queued request.
		next := c.queue.PopFront()
		c.mutex.Unlock()
		go c.run(next)
		return
	}
	c.active--
	c.mutex.Unlock()
}

// DiscardQueued fails every queued-but-not-started request with
// ErrDiscarded. Running fetches are unaffected; their results land under
// their original keys, where future lookups under a new filter fingerprint
// simply never find them.
func (c *Coordinator) DiscardQueued() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := c.queue.Len()
	for c.queue.Len() != 0 {
		h := c.queue.PopFront()
		delete(c.inflight, h.key)
		h.err = ErrDiscarded
		close(h.done)
	}
	if n != 0 {
		log.Debugw("Discarded queued requests", "count", n)
	}
	return n
}

// InFlight reports whether a request for key is active or queued.
func (c *Coordinator) InFlight(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Active returns the number of currently running fetches.
func (c *Coordinator) Active() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.active
}

// Queued returns the number of requests waiting for a slot.
func (c *Coordinator) Queued() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.queue.Len()
}
