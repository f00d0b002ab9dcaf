package reactive

// Memo is a cached computation over a declared set of sources.
// When any source changes the memo is invalidated and recomputes on the
// next Get. Memos are sources themselves, so derived values can chain.
type Memo[T any] struct {
	base    signalBase
	compute func() T
	value   T
	valid   bool

	sources []Source

	// computing guards against a compute function reading its own memo.
	computing bool

	computations int
}

// NewMemo creates a memo in g that depends on sources.
// The computation does not run until the first Get.
func NewMemo[T any](g *Graph, compute func() T, sources ...Source) *Memo[T] {
	m := &Memo[T]{
		base:    signalBase{id: g.nextID(), graph: g},
		compute: compute,
		sources: sources,
	}
	for _, src := range sources {
		src.subscribe(m)
	}
	return m
}

// Get returns the cached value, recomputing it first if it is invalid.
func (m *Memo[T]) Get() T {
	if !m.valid {
		m.recompute()
	}
	return m.value
}

// Valid reports whether the cached value is current.
func (m *Memo[T]) Valid() bool {
	return m.valid
}

// Computations returns how many times the compute function has run.
func (m *Memo[T]) Computations() int {
	return m.computations
}

// MarkDirty invalidates the memo and propagates to subscribers.
// Implements Listener. An already invalid memo still propagates, so a
// subscriber is notified of every change whether or not the memo was
// read in between.
func (m *Memo[T]) MarkDirty() {
	m.valid = false
	m.base.notifySubscribers()
}

// ID returns the unique identifier of the memo within its graph.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// Dispose unsubscribes the memo from its sources. The last value stays
// readable.
func (m *Memo[T]) Dispose() {
	for _, src := range m.sources {
		src.unsubscribe(m)
	}
	m.sources = nil
}

func (m *Memo[T]) subscribe(l Listener)   { m.base.subscribe(l) }
func (m *Memo[T]) unsubscribe(l Listener) { m.base.unsubscribe(l) }

func (m *Memo[T]) recompute() {
	if m.computing {
		panic("reactive: memo read during its own computation")
	}
	m.computing = true
	defer func() { m.computing = false }()

	m.value = m.compute()
	m.computations++
	m.valid = true
}
