package reactive

import (
	"errors"
	"testing"
)

func TestSignalSetNotifiesOnlyOnChange(t *testing.T) {
	g := NewGraph()
	s := NewSignal(g, 1)

	runs := 0
	NewEffect(g, func() Cleanup {
		runs++
		return nil
	}, s)
	if runs != 1 {
		t.Fatalf("effect should run once on creation, ran %d times", runs)
	}

	if s.Set(1) {
		t.Error("Set with equal value reported a change")
	}
	if g.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after no-op Set", g.Pending())
	}

	if !s.Set(2) {
		t.Error("Set with new value reported no change")
	}
	if _, err := g.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
	if got := s.Get(); got != 2 {
		t.Errorf("Get() = %d, want 2", got)
	}
}

func TestSignalUpdateAndCustomEquals(t *testing.T) {
	g := NewGraph()
	s := NewSignal(g, []int{1, 2}).WithEquals(func(a, b []int) bool { return len(a) == len(b) })

	if s.Set([]int{3, 4}) {
		t.Error("custom equality should treat equal-length slices as unchanged")
	}
	if !s.Update(func(v []int) []int { return append(v, 5) }) {
		t.Error("Update should report a change")
	}
	if got := len(s.Get()); got != 3 {
		t.Errorf("len = %d, want 3", got)
	}
}

func TestMemoIsLazyAndCached(t *testing.T) {
	g := NewGraph()
	a := NewSignal(g, 2)
	b := NewSignal(g, 10)

	m := NewMemo(g, func() int { return a.Get() * 3 }, a)

	if m.Computations() != 0 {
		t.Fatalf("memo computed eagerly")
	}
	if got := m.Get(); got != 6 {
		t.Fatalf("Get() = %d, want 6", got)
	}
	m.Get()
	if m.Computations() != 1 {
		t.Errorf("Computations() = %d, want 1 after cached read", m.Computations())
	}

	// b is not a declared source.
	b.Set(11)
	if !m.Valid() {
		t.Error("memo invalidated by undeclared source")
	}

	a.Set(3)
	if m.Valid() {
		t.Error("memo still valid after source change")
	}
	if got := m.Get(); got != 9 {
		t.Errorf("Get() = %d, want 9", got)
	}
	if m.Computations() != 2 {
		t.Errorf("Computations() = %d, want 2", m.Computations())
	}
}

func TestMemoChainPropagatesToEffects(t *testing.T) {
	g := NewGraph()
	base := NewSignal(g, 1)
	double := NewMemo(g, func() int { return base.Get() * 2 }, base)
	quad := NewMemo(g, func() int { return double.Get() * 2 }, double)

	var seen []int
	NewEffect(g, func() Cleanup {
		seen = append(seen, quad.Get())
		return nil
	}, quad)

	base.Set(5)
	if _, err := g.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []int{4, 20}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestUnreadMemoKeepsNotifying(t *testing.T) {
	g := NewGraph()
	src := NewSignal(g, 0)
	m := NewMemo(g, func() int { return src.Get() + 1 }, src)
	m.Get()

	runs := 0
	NewEffect(g, func() Cleanup {
		runs++
		return nil
	}, m)

	for i := 1; i <= 3; i++ {
		src.Set(i)
		if _, err := g.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}

	if runs != 4 {
		t.Errorf("runs = %d, want 4", runs)
	}
	if m.Computations() != 1 {
		t.Errorf("Computations() = %d, want 1 (never read after the first Get)", m.Computations())
	}
}

func TestEffectOnlyRunsForDeclaredSources(t *testing.T) {
	g := NewGraph()
	data := NewSignal(g, "x")
	knob := NewSignal(g, 1)
	filtered := NewMemo(g, func() string { return data.Get() + "!" }, data)

	chartRuns, tableRuns := 0, 0
	NewEffect(g, func() Cleanup {
		_ = filtered.Get()
		_ = knob.Get()
		chartRuns++
		return nil
	}, filtered, knob)
	NewEffect(g, func() Cleanup {
		_ = filtered.Get()
		tableRuns++
		return nil
	}, filtered)

	knob.Set(2)
	g.Flush()

	if chartRuns != 2 || tableRuns != 1 {
		t.Errorf("chartRuns=%d tableRuns=%d, want 2 and 1", chartRuns, tableRuns)
	}
	if filtered.Computations() != 1 {
		t.Errorf("memo recomputed on unrelated change: %d computations", filtered.Computations())
	}
}

func TestBatchDeduplicatesNotifications(t *testing.T) {
	g := NewGraph()
	a := NewSignal(g, 0)
	b := NewSignal(g, 0)
	sum := NewMemo(g, func() int { return a.Get() + b.Get() }, a, b)

	runs := 0
	NewEffect(g, func() Cleanup {
		_ = sum.Get()
		runs++
		return nil
	}, sum)

	g.Batch(func() {
		a.Set(1)
		g.Batch(func() {
			b.Set(2)
		})
		if g.Pending() != 0 {
			t.Error("effects scheduled before the outer batch finished")
		}
	})

	n, err := g.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n != 1 {
		t.Errorf("Flush ran %d effects, want 1", n)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
	if sum.Computations() != 2 {
		t.Errorf("Computations() = %d, want 2", sum.Computations())
	}
}

func TestFlushRunsInCreationOrder(t *testing.T) {
	g := NewGraph()
	s := NewSignal(g, 0)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		NewEffect(g, func() Cleanup {
			if s.Get() > 0 {
				order = append(order, name)
			}
			return nil
		}, s)
	}

	s.Set(1)
	g.Flush()

	want := []string{"first", "second", "third"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEffectCleanupAndDispose(t *testing.T) {
	g := NewGraph()
	s := NewSignal(g, 0)

	cleanups := 0
	e := NewEffect(g, func() Cleanup {
		return func() { cleanups++ }
	}, s)

	s.Set(1)
	g.Flush()
	if cleanups != 1 {
		t.Errorf("cleanups = %d after rerun, want 1", cleanups)
	}

	e.Dispose()
	if cleanups != 2 {
		t.Errorf("cleanups = %d after dispose, want 2", cleanups)
	}

	s.Set(2)
	g.Flush()
	if e.Runs() != 2 {
		t.Errorf("disposed effect ran again: %d runs", e.Runs())
	}
}

func TestGraphDispose(t *testing.T) {
	g := NewGraph()
	s := NewSignal(g, 0)
	e := NewEffect(g, func() Cleanup { return nil }, s)

	g.Dispose()
	if !g.Disposed() {
		t.Fatal("Disposed() = false")
	}

	s.Set(1)
	if g.Pending() != 0 {
		t.Errorf("Pending() = %d after dispose", g.Pending())
	}
	if e.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", e.Runs())
	}
	if s.Get() != 1 {
		t.Error("signal should keep accepting writes after dispose")
	}
}

func TestFlushBudget(t *testing.T) {
	g := NewGraph(WithFlushBudget(5))
	a := NewSignal(g, 0)
	b := NewSignal(g, 0)

	// Two effects that keep poking each other.
	NewEffect(g, func() Cleanup {
		b.Set(a.Get() + 1)
		return nil
	}, a)
	NewEffect(g, func() Cleanup {
		a.Set(b.Get() + 1)
		return nil
	}, b)

	_, err := g.Flush()
	if !errors.Is(err, ErrFlushBudget) {
		t.Fatalf("Flush error = %v, want ErrFlushBudget", err)
	}
	if g.Pending() != 0 {
		t.Errorf("queue not cleared after budget error")
	}
}

func TestMemoSelfReadPanics(t *testing.T) {
	g := NewGraph()
	var m *Memo[int]
	m = NewMemo(g, func() int { return m.Get() + 1 })

	defer func() {
		if recover() == nil {
			t.Error("expected panic on self read")
		}
	}()
	m.Get()
}
