package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vango-dev/penguins/internal/dashboard"
	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/render"
	"github.com/vango-dev/penguins/pkg/dataset"
)

// handlePage renders the dashboard for the session in the cookie, or for a
// new session.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, err := s.sessions.ResumeOrCreate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.config.Session.TTL.Std().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	var buf bytes.Buffer
	if err := render.Page(&buf, pageData(sess)); err != nil {
		s.writeError(w, r, errors.New(errors.CodeRenderFailed).Wrap(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func pageData(sess *dashboard.Session) render.PageData {
	in := sess.Inputs()

	attrs := make([]render.Choice, 0, len(dataset.Attributes))
	for _, a := range dataset.Attributes {
		attrs = append(attrs, render.Choice{Value: string(a), Label: string(a), Selected: a == in.Attribute})
	}
	species := make([]render.Choice, 0, len(dataset.AllSpecies))
	for _, sp := range dataset.AllSpecies {
		species = append(species, render.Choice{Value: string(sp), Label: string(sp), Selected: in.Species.Has(sp)})
	}

	patch := sess.Outputs()
	outputs := make(map[string]template.HTML, len(patch.Outputs))
	for id, html := range patch.Outputs {
		outputs[string(id)] = html
	}

	return render.PageData{
		Title:       PageTitle,
		SessionID:   sess.ID,
		Attributes:  attrs,
		Species:     species,
		PlotlyBins:  in.PlotlyBins,
		SeabornBins: in.SeabornBins,
		SeabornMin:  dashboard.MinBins,
		SeabornMax:  dashboard.MaxSeabornBins,
		Outputs:     outputs,
		SourceURL:   SourceURL,
	}
}

// handleInputs applies a field-to-value object to a session and replies
// with the redrawn outputs as a patch message. A "grid" key carries the
// data grid state.
//
//	POST /api/sessions/{id}/inputs
//	{"selected_species":["Adelie"],"plotly_bin_count":20}
func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.sessions.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&body); err != nil {
		s.writeError(w, r, errors.New(errors.CodeBadMessage).Wrap(err))
		return
	}

	var grid *dashboard.Change
	if raw, ok := body[string(dashboard.FieldGrid)]; ok {
		delete(body, string(dashboard.FieldGrid))
		var st render.GridState
		if err := json.Unmarshal(raw, &st); err != nil {
			s.writeError(w, r, errors.New(errors.CodeMalformedValue).WithField(string(dashboard.FieldGrid)).Wrap(err))
			return
		}
		c, err := dashboard.GridChange(st)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		grid = &c
	}

	changes, err := dashboard.ParseChanges(body)
	if err != nil {
		s.metrics.RecordInvalidInput(errors.FromError(err, errors.CodeMalformedValue).Field)
		s.writeError(w, r, err)
		return
	}
	if grid != nil {
		changes = append(changes, *grid)
	}

	ids, err := s.sessions.Apply(r.Context(), sess, changes...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	full := sess.Outputs()
	patch := dashboard.Patch{Seq: full.Seq, Outputs: make(map[dashboard.OutputID]template.HTML, len(ids))}
	for _, id := range ids {
		patch.Outputs[id] = full.Outputs[id]
	}
	s.writeJSON(w, http.StatusOK, PatchMessage(patch))
}

// sessionResponse describes a session for the JSON API.
type sessionResponse struct {
	ID       string             `json:"id"`
	Snapshot dashboard.Snapshot `json:"snapshot"`
	Rows     int                `json:"rows"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.sessions.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{
		ID:       sess.ID,
		Snapshot: sess.Snapshot(),
		Rows:     sess.Filtered().Len(),
	})
}

// filteredResponse is the stateless derived view.
type filteredResponse struct {
	Species   dataset.SpeciesSet `json:"species"`
	Attribute dataset.Attribute  `json:"attribute"`
	Count     int                `json:"count"`
	Rows      []dataset.Penguin  `json:"rows"`
}

// handleFiltered computes the derived view without a session.
//
//	GET /api/filtered?species=Adelie,Gentoo&attribute=bill_length_mm
//
// Without a species parameter every species is kept; an empty one keeps
// none. Without an attribute no row is dropped for missing values.
func (s *Server) handleFiltered(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	species := dataset.AllSpeciesSet
	if values, ok := q["species"]; ok {
		set, err := dataset.ParseSpeciesSet(splitList(values))
		if err != nil {
			s.writeError(w, r, errors.New(errors.CodeInvalidSpecies).WithField("species").Wrap(err))
			return
		}
		species = set
	}

	attr, err := dataset.ParseAttribute(q.Get("attribute"))
	if err != nil {
		s.writeError(w, r, errors.New(errors.CodeInvalidAttribute).WithField("attribute").Wrap(err))
		return
	}

	view := dashboard.FilterRows(s.table, species, attr)
	rows := view.Rows()
	if rows == nil {
		rows = []dataset.Penguin{}
	}
	s.writeJSON(w, http.StatusOK, filteredResponse{
		Species:   species,
		Attribute: attr,
		Count:     view.Len(),
		Rows:      rows,
	})
}

// splitList flattens repeated and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// summaryResponse describes the loaded dataset.
type summaryResponse struct {
	Rows     int                       `json:"rows"`
	Species  map[dataset.Species]int   `json:"species"`
	Missing  map[dataset.Attribute]int `json:"missing"`
	Columns  []string                  `json:"columns"`
	Sessions int                       `json:"sessions"`
	MaxBins  map[string]int            `json:"max_bins"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	missing := make(map[dataset.Attribute]int, len(dataset.Attributes))
	for _, a := range dataset.Attributes {
		missing[a] = s.table.MissingCount(a)
	}
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Rows:     s.table.Len(),
		Species:  s.table.CountBySpecies(),
		Missing:  missing,
		Columns:  dataset.Columns,
		Sessions: s.sessions.Count(),
		MaxBins: map[string]int{
			string(dashboard.FieldPlotlyBins):  render.MaxBins,
			string(dashboard.FieldSeabornBins): dashboard.MaxSeabornBins,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"rows":     s.table.Len(),
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

// writeError replies with an error message frame and the status of its
// code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.Status(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeJSON(w, status, ErrorMessage(err))
}
