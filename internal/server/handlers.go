package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/knitfamily/knit/pkg/buildinfo"
	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
	"github.com/knitfamily/knit/pkg/pipeline"
)

var contentTypes = map[string]string{
	pipeline.FormatJSON: "application/json",
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatDOT:  "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.store.ListSpaces(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"spaces": spaces})
}

// spaceID returns the validated {spaceID} path parameter.
func spaceID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "spaceID")
	return id, kerrors.ValidateID("family space", id)
}

type putSnapshotResponse struct {
	FamilySpaceID string         `json:"family_space_id"`
	People        int            `json:"people"`
	Relationships int            `json:"relationships"`
	Warnings      []family.Issue `json:"warnings"`
}

// handlePutSnapshot replaces a space. The body is JSON, or YAML when the
// Content-Type says so.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	snap, err := family.ReadSnapshot(body, requestFormat(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if snap.FamilySpaceID == "" {
		snap.FamilySpaceID = id
		snap.ApplyDefaults()
	}
	if snap.FamilySpaceID != id {
		s.respondError(w, r, kerrors.New(kerrors.ErrCodeInvalidSnapshot,
			"snapshot belongs to family space %s, not %s", snap.FamilySpaceID, id))
		return
	}

	if err := s.store.PutSnapshot(r.Context(), snap); err != nil {
		s.respondError(w, r, err)
		return
	}

	warnings := kin.Check(snap).Warnings()
	if warnings == nil {
		warnings = []family.Issue{}
	}
	respondJSON(w, http.StatusOK, putSnapshotResponse{
		FamilySpaceID: id,
		People:        len(snap.People),
		Relationships: len(snap.Relationships),
		Warnings:      warnings,
	})
}

func requestFormat(r *http.Request) family.Format {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return family.FormatYAML
	}
	return family.FormatJSON
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.store.Snapshot(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == string(family.FormatYAML) {
		w.Header().Set("Content-Type", "application/yaml")
		_ = family.WriteSnapshot(w, snap, family.FormatYAML)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleLayout renders a space. Query parameters: format (json, svg, dot,
// png, pdf), renderer, engine, detailed, title, birth_dates, h_step,
// v_step, spouse_offset, refresh.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts, err := s.layoutOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	format := opts.Formats[0]

	res, err := s.runner.ExecuteSpace(r.Context(), id, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Knit-Layout-Cache", cacheHeader(res.CacheInfo.LayoutHit))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[format])
}

func cacheHeader(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (s *Server) layoutOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := s.opts.Layout
	opts.Logger = nil

	format := q.Get("format")
	if format == "" {
		format = pipeline.FormatJSON
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		return opts, err
	}
	opts.Formats = []string{format}
	opts.Renderer = q.Get("renderer")
	opts.Engine = q.Get("engine")
	opts.Title = q.Get("title")

	for name, dst := range map[string]*float64{
		"h_step":        &opts.HStep,
		"v_step":        &opts.VStep,
		"spouse_offset": &opts.SpouseOffset,
		"scale":         &opts.Scale,
	} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return opts, kerrors.New(kerrors.ErrCodeInvalidInput, "%s must be a number", name)
			}
			*dst = f
		}
	}
	for name, dst := range map[string]*bool{
		"detailed":    &opts.Detailed,
		"birth_dates": &opts.BirthDates,
		"refresh":     &opts.Refresh,
	} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, kerrors.New(kerrors.ErrCodeInvalidInput, "%s must be true or false", name)
			}
			*dst = b
		}
	}
	return opts, nil
}

type validateResponse struct {
	Valid    bool           `json:"valid"`
	Errors   []family.Issue `json:"errors"`
	Warnings []family.Issue `json:"warnings"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.store.Snapshot(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report := kin.Check(snap)
	resp := validateResponse{
		Valid:    !report.HasErrors(),
		Errors:   report.Errors(),
		Warnings: report.Warnings(),
	}
	if resp.Errors == nil {
		resp.Errors = []family.Issue{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []family.Issue{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelatives(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	personID := chi.URLParam(r, "personID")

	snap, err := s.store.Snapshot(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rel, ok := kin.NewIndex(snap.People, snap.Relationships).Relatives(personID)
	if !ok {
		s.respondError(w, r, kerrors.New(kerrors.ErrCodePersonNotFound, "person %s in family space %s", personID, id))
		return
	}
	respondJSON(w, http.StatusOK, rel)
}

// decodeJSON decodes the request body strictly into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return kerrors.New(kerrors.ErrCodeInvalidInput, "request body is empty")
		}
		return kerrors.Wrap(kerrors.ErrCodeInvalidInput, err, "invalid JSON body")
	}
	return nil
}

// handleCreatePerson adds a person. A missing id gets a fresh uuid and a
// missing status becomes placeholder.
func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var p family.Person
	if err := s.decodeJSON(w, r, &p); err != nil {
		s.respondError(w, r, err)
		return
	}
	if p.FamilySpaceID != "" && p.FamilySpaceID != id {
		s.respondError(w, r, kerrors.New(kerrors.ErrCodeInvalidInput, "person belongs to family space %s, not %s", p.FamilySpaceID, id))
		return
	}
	p.FamilySpaceID = id
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = family.StatusPlaceholder
	}

	if err := s.store.UpsertPerson(r.Context(), p); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

type createRelationshipRequest struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	PersonAID string `json:"person_a_id"`
	PersonBID string `json:"person_b_id"`
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req createRelationshipRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	t, err := family.ParseRelationType(req.Type)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rel := family.NewRelationship(id, t, strings.TrimSpace(req.PersonAID), strings.TrimSpace(req.PersonBID))
	if req.ID != "" {
		rel.ID = req.ID
	}
	if err := s.store.UpsertRelationship(r.Context(), rel); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rel)
}

type activateRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id, err := spaceID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req activateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	p, err := s.store.ActivatePerson(r.Context(), id, chi.URLParam(r, "personID"), req.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
