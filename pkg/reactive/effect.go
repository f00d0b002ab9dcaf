package reactive

// Cleanup is returned by an effect and runs before the effect runs again
// or when it is disposed.
type Cleanup func()

// Effect is a side effect that re-runs when any of its declared sources
// changes. Re-runs happen on Graph.Flush, never inside Set.
type Effect struct {
	id      uint64
	graph   *Graph
	fn      func() Cleanup
	cleanup Cleanup
	sources []Source

	pending  bool
	disposed bool
	runs     int
}

// NewEffect creates an effect in g that depends on sources and runs it once
// immediately.
func NewEffect(g *Graph, fn func() Cleanup, sources ...Source) *Effect {
	e := &Effect{
		id:      g.nextID(),
		graph:   g,
		fn:      fn,
		sources: sources,
	}
	for _, src := range sources {
		src.subscribe(e)
	}
	g.effects = append(g.effects, e)

	e.pending = true
	e.run()
	return e
}

// MarkDirty schedules the effect for the next flush. Implements Listener.
func (e *Effect) MarkDirty() {
	if e.disposed || e.pending {
		return
	}
	e.pending = true
	e.graph.schedule(e)
}

// ID returns the unique identifier of the effect within its graph.
func (e *Effect) ID() uint64 {
	return e.id
}

// Runs returns how many times the effect function has executed.
func (e *Effect) Runs() int {
	return e.runs
}

// run executes the effect if it is pending. It reports whether it ran.
func (e *Effect) run() bool {
	if e.disposed || !e.pending {
		return false
	}
	e.pending = false

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.cleanup = e.fn()
	e.runs++
	return true
}

// Dispose runs the pending cleanup and unsubscribes from all sources.
func (e *Effect) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	for _, src := range e.sources {
		src.unsubscribe(e)
	}
	e.sources = nil
}
