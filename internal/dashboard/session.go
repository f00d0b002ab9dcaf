package dashboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/render"
	"github.com/vango-dev/penguins/pkg/dataset"
	"github.com/vango-dev/penguins/pkg/reactive"
)

// OutputID names one rendered output.
type OutputID string

const (
	OutputPlot1   OutputID = "plot1"
	OutputPlot2   OutputID = "plot2"
	OutputScatter OutputID = "scatter"
	OutputTable   OutputID = "table"
	OutputGrid    OutputID = "grid"
)

// OutputIDs lists the outputs in the order their effects are created, which
// is also the order they are redrawn in.
var OutputIDs = []OutputID{OutputPlot1, OutputPlot2, OutputScatter, OutputTable, OutputGrid}

// Fallback attributes used by the histograms when no attribute is selected.
const (
	Plot1Fallback = dataset.BillLength
	Plot2Fallback = dataset.FlipperLength
)

// Recorder receives session metrics. middleware.Metrics implements it.
type Recorder interface {
	RecordRecompute(node string)
	RecordInputChange(field string)
	RecordPatch(outputs int)
}

type nopRecorder struct{}

func (nopRecorder) RecordRecompute(string)   {}
func (nopRecorder) RecordInputChange(string) {}
func (nopRecorder) RecordPatch(int)          {}

// Patch is the set of outputs redrawn by one Apply.
type Patch struct {
	Seq     uint64
	Outputs map[OutputID]template.HTML
}

// Session owns the input state of one dashboard viewer and keeps its
// outputs consistent with it.
//
// The filtered view is a memo over the species and attribute signals only,
// so bin count changes redraw their histogram without refiltering. Each
// output is an effect with an explicit read-set:
//
//	plot1    filtered, attribute, plotly_bin_count
//	plot2    filtered, attribute, seaborn_bin_count
//	scatter  filtered
//	table    filtered
//	grid     filtered, grid
//
// A Session is safe for concurrent use; Apply calls are serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	graph    *reactive.Graph
	table    *dataset.Table
	renderer render.Renderer

	species     *reactive.Signal[dataset.SpeciesSet]
	attribute   *reactive.Signal[dataset.Attribute]
	plotlyBins  *reactive.Signal[int]
	seabornBins *reactive.Signal[int]
	grid        *reactive.Signal[render.GridState]
	filtered    *reactive.Memo[*dataset.Table]

	effects map[OutputID]*reactive.Effect
	outputs map[OutputID]template.HTML
	redrawn []OutputID
	failed  []error

	seq        uint64
	onPatch    func(Patch)
	lastActive time.Time
	closed     bool

	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	inputs   Inputs
	grid     render.GridState
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// WithInputs starts the session from saved inputs instead of the defaults.
func WithInputs(in Inputs) SessionOption {
	return func(o *sessionOptions) { o.inputs = in }
}

// WithGridState starts the data grid on the given page and sort.
func WithGridState(st render.GridState) SessionOption {
	return func(o *sessionOptions) { o.grid = st }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = l }
}

// WithTracer sets the tracer used for Apply spans.
func WithTracer(t trace.Tracer) SessionOption {
	return func(o *sessionOptions) { o.tracer = t }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) SessionOption {
	return func(o *sessionOptions) { o.recorder = r }
}

// NewSession builds the reactive graph for table and renders every output
// once. It fails if the starting inputs are out of domain.
func NewSession(id string, table *dataset.Table, renderer render.Renderer, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{
		inputs:   DefaultInputs(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/vango-dev/penguins/internal/dashboard"),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.inputs.Validate(); err != nil {
		return nil, err
	}
	if err := o.grid.Validate(); err != nil {
		return nil, errors.New(errors.CodeInvalidGridState).Wrap(err)
	}

	g := reactive.NewGraph()
	s := &Session{
		ID:         id,
		graph:      g,
		table:      table,
		renderer:   renderer,
		effects:    make(map[OutputID]*reactive.Effect, len(OutputIDs)),
		outputs:    make(map[OutputID]template.HTML, len(OutputIDs)),
		lastActive: time.Now(),
		logger:     o.logger.With("component", "session", "session_id", id),
		tracer:     o.tracer,
		recorder:   o.recorder,
	}

	s.species = reactive.NewSignal(g, o.inputs.Species)
	s.attribute = reactive.NewSignal(g, o.inputs.Attribute)
	s.plotlyBins = reactive.NewSignal(g, o.inputs.PlotlyBins)
	s.seabornBins = reactive.NewSignal(g, o.inputs.SeabornBins)
	s.grid = reactive.NewSignal(g, o.grid)

	s.filtered = reactive.NewMemo(g, func() *dataset.Table {
		s.recorder.RecordRecompute("filtered")
		return FilterRows(s.table, s.species.Get(), s.attribute.Get())
	}, s.species, s.attribute)

	s.output(OutputPlot1, func() (template.HTML, error) {
		return s.renderer.Histogram(render.NewHistogramSpec(s.filtered.Get(), s.histogramAttribute(Plot1Fallback), s.plotlyBins.Get()))
	}, s.filtered, s.attribute, s.plotlyBins)

	s.output(OutputPlot2, func() (template.HTML, error) {
		return s.renderer.Histogram(render.NewHistogramSpec(s.filtered.Get(), s.histogramAttribute(Plot2Fallback), s.seabornBins.Get()))
	}, s.filtered, s.attribute, s.seabornBins)

	s.output(OutputScatter, func() (template.HTML, error) {
		return s.renderer.Scatter(render.NewScatterSpec(s.filtered.Get()))
	}, s.filtered)

	s.output(OutputTable, func() (template.HTML, error) {
		return s.renderer.Table(s.filtered.Get())
	}, s.filtered)

	s.output(OutputGrid, func() (template.HTML, error) {
		return s.renderer.Grid(s.filtered.Get(), s.grid.Get())
	}, s.filtered, s.grid)

	s.redrawn = nil
	if err := s.takeFailures(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) histogramAttribute(fallback dataset.Attribute) dataset.Attribute {
	if attr := s.attribute.Get(); attr != dataset.NoAttribute {
		return attr
	}
	return fallback
}

// output registers the effect that redraws id.
func (s *Session) output(id OutputID, draw func() (template.HTML, error), sources ...reactive.Source) {
	s.effects[id] = reactive.NewEffect(s.graph, func() reactive.Cleanup {
		s.recorder.RecordRecompute(string(id))
		html, err := draw()
		if err != nil {
			s.logger.Error("render failed", "output", id, "error", err)
			s.failed = append(s.failed, fmt.Errorf("%s: %w", id, err))
			html = template.HTML(`<p class="render-error">` + template.HTMLEscapeString(err.Error()) + `</p>`)
		}
		s.outputs[id] = html
		s.redrawn = append(s.redrawn, id)
		return nil
	}, sources...)
}

func (s *Session) takeFailures() error {
	if len(s.failed) == 0 {
		return nil
	}
	err := errors.New(errors.CodeRenderFailed).Wrap(stderrors.Join(s.failed...))
	s.failed = nil
	return err
}

// Apply sets every change in one batch and redraws the affected outputs.
// It returns the IDs of the redrawn outputs in OutputIDs order; an unchanged
// value redraws nothing. Changes must come from ParseChange, GridChange or
// the typed constructors; out-of-domain values are rejected before any
// field is set.
func (s *Session) Apply(ctx context.Context, changes ...Change) ([]OutputID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New(errors.CodeSessionClosed)
	}

	_, span := s.tracer.Start(ctx, "dashboard.Session.Apply",
		trace.WithAttributes(
			attribute.String("session.id", s.ID),
			attribute.Int("changes", len(changes)),
		))
	defer span.End()

	next := s.inputsLocked()
	for _, c := range changes {
		if c.Field == FieldGrid {
			if err := c.Grid.Validate(); err != nil {
				span.SetStatus(codes.Error, "invalid grid state")
				return nil, errors.New(errors.CodeInvalidGridState).Wrap(err)
			}
			continue
		}
		c.apply(&next)
	}
	if err := next.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	s.lastActive = time.Now()
	s.graph.Batch(func() {
		for _, c := range changes {
			if s.setField(c) {
				s.recorder.RecordInputChange(string(c.Field))
			}
		}
	})

	if _, err := s.graph.Flush(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	redrawn := s.takeRedrawn()
	span.SetAttributes(attribute.Int("outputs.redrawn", len(redrawn)))
	if len(redrawn) > 0 {
		s.seq++
		s.recorder.RecordPatch(len(redrawn))
		if s.onPatch != nil {
			s.onPatch(s.patchLocked(redrawn))
		}
	}

	if err := s.takeFailures(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return redrawn, err
	}
	return redrawn, nil
}

func (s *Session) setField(c Change) bool {
	switch c.Field {
	case FieldSpecies:
		return s.species.Set(c.Species)
	case FieldAttribute:
		return s.attribute.Set(c.Attribute)
	case FieldPlotlyBins:
		return s.plotlyBins.Set(c.Bins)
	case FieldSeabornBins:
		return s.seabornBins.Set(c.Bins)
	case FieldGrid:
		return s.grid.Set(c.Grid)
	}
	return false
}

// takeRedrawn returns the outputs redrawn since the last call, deduplicated
// and in OutputIDs order.
func (s *Session) takeRedrawn() []OutputID {
	seen := make(map[OutputID]bool, len(s.redrawn))
	for _, id := range s.redrawn {
		seen[id] = true
	}
	s.redrawn = nil

	var out []OutputID
	for _, id := range OutputIDs {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) patchLocked(ids []OutputID) Patch {
	p := Patch{Seq: s.seq, Outputs: make(map[OutputID]template.HTML, len(ids))}
	for _, id := range ids {
		p.Outputs[id] = s.outputs[id]
	}
	return p
}

// Inputs returns the current input state.
func (s *Session) Inputs() Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputsLocked()
}

func (s *Session) inputsLocked() Inputs {
	return Inputs{
		Species:     s.species.Get(),
		Attribute:   s.attribute.Get(),
		PlotlyBins:  s.plotlyBins.Get(),
		SeabornBins: s.seabornBins.Get(),
	}
}

// GridState returns the current data grid paging and sort.
func (s *Session) GridState() render.GridState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Get()
}

// Filtered returns the current filtered view.
func (s *Session) Filtered() *dataset.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filtered.Get()
}

// FilterComputations reports how many times the filtered view has been
// computed.
func (s *Session) FilterComputations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filtered.Computations()
}

// Output returns the last rendered HTML of id.
func (s *Session) Output(id OutputID) (template.HTML, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	html, ok := s.outputs[id]
	return html, ok
}

// Outputs returns every output as a full patch with the current sequence
// number. It is sent to a client when it (re)connects.
func (s *Session) Outputs() Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patchLocked(OutputIDs)
}

// Runs returns how many times the effect behind id has run.
func (s *Session) Runs(id OutputID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.effects[id]; ok {
		return e.Runs()
	}
	return 0
}

// OnPatch registers fn to receive every patch produced by Apply. It is
// called with the session lock held and must not call back into the
// session. Passing nil unregisters.
func (s *Session) OnPatch(fn func(Patch)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPatch = fn
}

// LastActive returns the time of the last Apply, or creation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close disposes the reactive graph. Further Apply calls fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.onPatch = nil
	s.graph.Dispose()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
