// Package reactive provides a small, explicit dependency graph of signals,
// memos and effects.
//
// Every node belongs to a Graph. Dependencies are declared when a node is
// created rather than discovered by tracking reads, so the read-set of a
// memo or effect is fixed and visible at the call site:
//
//	g := reactive.NewGraph()
//	count := reactive.NewSignal(g, 1)
//	double := reactive.NewMemo(g, func() int { return count.Get() * 2 }, count)
//	reactive.NewEffect(g, func() reactive.Cleanup {
//	    fmt.Println("double is", double.Get())
//	    return nil
//	}, double)
//
//	count.Set(2)
//	g.Flush() // prints "double is 4"
//
// # Update model
//
// Setting a signal marks its subscribers dirty. A memo becomes invalid and
// propagates the mark to its own subscribers every time, read or not; it
// recomputes lazily on the next Get and does not compare the new value
// with the old one. An effect is queued on its Graph and runs on the next Flush,
// in creation order.
//
// Batch defers notifications until the outermost batch returns, so several
// signal writes produce one round of invalidation.
//
// A Graph is not safe for concurrent use. Callers serialize access, usually
// by driving a Graph from a single event loop.
package reactive
