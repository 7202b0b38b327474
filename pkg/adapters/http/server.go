// Package http exposes the draft/publish workflow as a JSON API.
//
// Authorization is out of scope by design: callers arrive already
// authorized, and the X-Editor-Actor header only identifies them for
// audit logging.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/library"
	"github.com/aretw0/espalier/pkg/state"
	"github.com/aretw0/espalier/pkg/workflow"
	"github.com/go-chi/chi/v5"
)

// actorHeader carries the already-authorized caller identity.
const actorHeader = "X-Editor-Actor"

// Server wires the workflow layer to HTTP.
type Server struct {
	workflow *workflow.Workflow
	library  *library.Library
	logger   *slog.Logger
	metrics  http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLibrary enables the template-instantiating component endpoint.
func WithLibrary(lib *library.Library) Option {
	return func(s *Server) {
		s.library = lib
	}
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts a metrics endpoint (e.g. promhttp) at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(wf *workflow.Workflow, opts ...Option) http.Handler {
	s := &Server{
		workflow: wf,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/sites/{entityID}", func(r chi.Router) {
		r.Get("/draft", s.getDraft)
		r.Get("/published", s.getPublished)
		r.Get("/preview", s.preview)
		r.Get("/history/{partition}", s.history)

		r.Post("/publish", s.publish)
		r.Post("/published/rollback", s.rollbackPublished)
		r.Post("/draft/rollback", s.rollbackDraft)

		r.Post("/draft/sections", s.addSection)
		r.Post("/draft/components", s.addComponent)
		r.Patch("/draft/components/{componentID}", s.updateComponent)
		r.Delete("/draft/components/{componentID}", s.removeComponent)
		r.Put("/draft/theme/{token}", s.setThemeToken)
	})

	return r
}

func actor(r *http.Request) string {
	if a := r.Header.Get(actorHeader); a != "" {
		return a
	}
	return "anonymous"
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.workflow.GetDraft(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) getPublished(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.workflow.GetPublished(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// preview returns the draft as a rendering-ready projection. With
// ?resolve=true the visibility rules are evaluated against a viewer
// described by the authenticated, role and flag query parameters, and
// only the surviving sections are returned.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.workflow.Preview(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	if query.Get("resolve") != "true" {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}

	viewer := domain.ViewerContext{
		Authenticated: query.Get("authenticated") == "true",
		Roles:         query["role"],
	}
	if flags := query["flag"]; len(flags) > 0 {
		viewer.Flags = make(map[string]string, len(flags))
		for _, pair := range flags {
			if key, value, ok := splitFlag(pair); ok {
				viewer.Flags[key] = value
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": snapshot.EntityID,
		"sequence":  snapshot.Sequence,
		"theme":     snapshot.Theme,
		"sections":  snapshot.Resolve(viewer),
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, "partition")
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	snapshots, err := s.workflow.History(r.Context(), chi.URLParam(r, "entityID"), partition, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.workflow.Publish(r.Context(), chi.URLParam(r, "entityID"), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type rollbackRequest struct {
	TargetSequence uint64 `json:"target_sequence"`
}

func (s *Server) rollbackPublished(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, err := s.workflow.RollbackPublished(r.Context(), chi.URLParam(r, "entityID"), actor(r), req.TargetSequence)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) rollbackDraft(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, err := s.workflow.RollbackDraft(r.Context(), chi.URLParam(r, "entityID"), actor(r), req.TargetSequence)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type addSectionRequest struct {
	ID         string         `json:"id"`
	Visibility map[string]any `json:"visibility,omitempty"`
}

func (s *Server) addSection(w http.ResponseWriter, r *http.Request) {
	var req addSectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rule, err := domain.DecodeVisibilityRule(req.Visibility)
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}

	snapshot, err := s.workflow.EditDraft(r.Context(), chi.URLParam(r, "entityID"), actor(r),
		state.AddSection(req.ID, rule))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

type addComponentRequest struct {
	SectionID  string         `json:"section_id"`
	Template   string         `json:"template"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Visibility map[string]any `json:"visibility,omitempty"`
}

// addComponent instantiates a library template into the draft:
// the editor's "add a preset component" action.
func (s *Server) addComponent(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		s.writeError(w, r, badRequest(errors.New("no template library configured")))
		return
	}

	var req addComponentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	component, err := s.library.Instantiate(req.Template, req.Parameters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Visibility != nil {
		rule, err := domain.DecodeVisibilityRule(req.Visibility)
		if err != nil {
			s.writeError(w, r, badRequest(err))
			return
		}
		component.Visibility = rule
	}

	snapshot, err := s.workflow.EditDraft(r.Context(), chi.URLParam(r, "entityID"), actor(r),
		state.AddComponent(req.SectionID, component))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

type updateComponentRequest struct {
	Parameters map[string]any `json:"parameters,omitempty"`
	Visibility map[string]any `json:"visibility,omitempty"`
}

func (s *Server) updateComponent(w http.ResponseWriter, r *http.Request) {
	var req updateComponentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	componentID := chi.URLParam(r, "componentID")
	edits := make([]state.EditFunc, 0, 2)
	if req.Parameters != nil {
		edits = append(edits, state.UpdateComponentParams(componentID, req.Parameters))
	}
	if req.Visibility != nil {
		rule, err := domain.DecodeVisibilityRule(req.Visibility)
		if err != nil {
			s.writeError(w, r, badRequest(err))
			return
		}
		edits = append(edits, state.SetComponentVisibility(componentID, rule))
	}
	if len(edits) == 0 {
		s.writeError(w, r, badRequest(errors.New("nothing to update")))
		return
	}

	snapshot, err := s.workflow.EditDraft(r.Context(), chi.URLParam(r, "entityID"), actor(r),
		func(c domain.Content) (domain.Content, error) {
			var err error
			for _, edit := range edits {
				if c, err = edit(c); err != nil {
					return c, err
				}
			}
			return c, nil
		})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) removeComponent(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.workflow.EditDraft(r.Context(), chi.URLParam(r, "entityID"), actor(r),
		state.RemoveComponent(chi.URLParam(r, "componentID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type themeTokenRequest struct {
	Value any `json:"value"`
}

func (s *Server) setThemeToken(w http.ResponseWriter, r *http.Request) {
	var req themeTokenRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, err := s.workflow.EditDraft(r.Context(), chi.URLParam(r, "entityID"), actor(r),
		state.SetThemeToken(chi.URLParam(r, "token"), req.Value))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
