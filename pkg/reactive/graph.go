package reactive

import (
	"errors"
	"sort"
)

// DefaultFlushBudget is the maximum number of effect runs a single Flush
// performs before giving up.
const DefaultFlushBudget = 1000

// ErrFlushBudget is returned by Flush when effects keep rescheduling each
// other past the flush budget.
var ErrFlushBudget = errors.New("reactive: flush budget exceeded")

// Listener is notified when a source it depends on changes.
type Listener interface {
	ID() uint64
	MarkDirty()
}

// Source is a node that listeners can depend on. Signals and memos are
// sources.
type Source interface {
	ID() uint64
	subscribe(l Listener)
	unsubscribe(l Listener)
}

// Graph owns a set of reactive nodes together with their batching and
// scheduling state.
type Graph struct {
	lastID uint64

	// batchDepth tracks nested Batch calls.
	batchDepth int

	// pending accumulates listeners to notify when the outermost batch ends.
	pending []Listener

	// queue holds effects scheduled for the next Flush.
	queue []*Effect

	effects []*Effect

	flushBudget int
	flushing    bool
	disposed    bool
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithFlushBudget overrides DefaultFlushBudget.
func WithFlushBudget(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.flushBudget = n
		}
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{flushBudget: DefaultFlushBudget}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) nextID() uint64 {
	g.lastID++
	return g.lastID
}

// Batch groups signal updates into a single notification phase.
// Listeners marked during fn are deduplicated and notified once when the
// outermost batch completes. Batches may nest.
func (g *Graph) Batch(fn func()) {
	g.batchDepth++
	defer func() {
		g.batchDepth--
		if g.batchDepth == 0 {
			g.processPending()
		}
	}()
	fn()
}

// processPending deduplicates and notifies listeners queued during a batch.
func (g *Graph) processPending() {
	updates := g.pending
	g.pending = nil
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	for _, l := range updates {
		if seen[l.ID()] {
			continue
		}
		seen[l.ID()] = true
		l.MarkDirty()
	}
}

// notify marks listeners dirty, or queues them while a batch is open.
func (g *Graph) notify(subs []Listener) {
	if g.batchDepth > 0 {
		g.pending = append(g.pending, subs...)
		return
	}
	for _, l := range subs {
		l.MarkDirty()
	}
}

// schedule queues an effect for the next Flush.
func (g *Graph) schedule(e *Effect) {
	if g.disposed {
		return
	}
	g.queue = append(g.queue, e)
}

// Pending reports how many effects are waiting for Flush.
func (g *Graph) Pending() int {
	return len(g.queue)
}

// Flush runs scheduled effects in creation order until none remain.
// It returns the number of effect runs performed. Effects scheduled while
// flushing run in the same call. Flush is a no-op when called re-entrantly
// from inside an effect.
func (g *Graph) Flush() (int, error) {
	if g.flushing {
		return 0, nil
	}
	g.flushing = true
	defer func() { g.flushing = false }()

	runs := 0
	for len(g.queue) > 0 {
		batch := g.queue
		g.queue = nil
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].id < batch[j].id })

		for _, e := range batch {
			if runs >= g.flushBudget {
				g.queue = nil
				return runs, ErrFlushBudget
			}
			if e.run() {
				runs++
			}
		}
	}
	return runs, nil
}

// Dispose disposes every effect in the graph. Signals keep their values but
// no longer trigger effects.
func (g *Graph) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	for _, e := range g.effects {
		e.Dispose()
	}
	g.effects = nil
	g.queue = nil
	g.pending = nil
}

// Disposed reports whether Dispose has been called.
func (g *Graph) Disposed() bool {
	return g.disposed
}
