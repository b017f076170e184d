// Package api exposes the issue collection, session, and feedback
// converter over a small REST surface.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trkhq/trk/internal/feedback"
	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/models"
	"github.com/trkhq/trk/internal/session"
)

// Server provides the REST API handlers.
type Server struct {
	issues  *issues.Collection
	session *session.Manager
	ai      *feedback.Client // nil when no API key is configured
}

// NewServer creates a new API server. The ai client may be nil if no
// API key is configured; the feedback route then returns 503.
func NewServer(c *issues.Collection, m *session.Manager, ai *feedback.Client) *Server {
	return &Server{
		issues:  c,
		session: m,
		ai:      ai,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("POST /api/v1/issues", s.createIssue)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PATCH /api/v1/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.deleteIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/archive", s.archiveIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/restore", s.restoreIssue)

	mux.HandleFunc("POST /api/v1/feedback", s.processFeedback)

	mux.HandleFunc("GET /api/v1/session", s.getSession)
	mux.HandleFunc("POST /api/v1/session/login", s.login)
	mux.HandleFunc("POST /api/v1/session/logout", s.logout)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := issues.Filter{
		Status:   models.IssueStatus(q.Get("status")),
		Priority: models.IssuePriority(q.Get("priority")),
		Search:   q.Get("q"),
		Archived: q.Get("archived") == "true",
	}
	list := issues.FilterIssues(s.issues.List(), filter)
	if list == nil {
		list = []models.Issue{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var fields issues.CreateFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(fields.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if fields.Status == "" {
		fields.Status = models.IssueStatusOpen
	}
	if fields.Priority == "" {
		fields.Priority = models.IssuePriorityMedium
	}
	if !models.ValidStatus(fields.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if !models.ValidPriority(fields.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}

	issue := s.issues.Create(fields)
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	issue, ok := s.issues.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "issue not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// issuePatch mirrors issues.Patch with JSON field names; nil fields are
// absent from the request, and "assignee": "" clears the assignee.
type issuePatch struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Status      *models.IssueStatus   `json:"status"`
	Priority    *models.IssuePriority `json:"priority"`
	Assignee    *string               `json:"assignee"`
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch issuePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}

	issue, found := s.issues.Update(id, issues.Patch{
		Title:       patch.Title,
		Description: patch.Description,
		Status:      patch.Status,
		Priority:    patch.Priority,
		Assignee:    patch.Assignee,
	})
	if !found {
		writeError(w, http.StatusNotFound, "issue not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.issues.Delete(id) {
		writeError(w, http.StatusNotFound, "issue not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) archiveIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	issue, ok := s.issues.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "issue not found: "+id)
		return
	}
	if issue.Archived {
		writeJSON(w, http.StatusOK, issue)
		return
	}
	toggled, _, err := s.issues.ToggleArchive(id)
	if errors.Is(err, issues.ErrNotArchivable) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

func (s *Server) restoreIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	issue, ok := s.issues.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "issue not found: "+id)
		return
	}
	if !issue.Archived {
		writeJSON(w, http.StatusOK, issue)
		return
	}
	toggled, _, err := s.issues.ToggleArchive(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

// --- Feedback ---

func (s *Server) processFeedback(w http.ResponseWriter, r *http.Request) {
	if s.ai == nil {
		writeError(w, http.StatusServiceUnavailable, "no AI API key configured")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	drafts, err := s.ai.ProposeIssues(r.Context(), req.Text)
	if err != nil {
		slog.Warn("feedback conversion failed", "error", err)
		var svcErr *feedback.ServiceError
		status := http.StatusBadGateway
		if errors.As(err, &svcErr) {
			switch svcErr.Category {
			case feedback.CategoryRateLimited:
				status = http.StatusTooManyRequests
			case feedback.CategoryUnavailable:
				status = http.StatusServiceUnavailable
			}
		}
		writeError(w, status, err.Error())
		return
	}

	created := feedback.Apply(s.issues, drafts)
	writeJSON(w, http.StatusCreated, created)
}

// --- Session ---

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.Current()
	if !ok {
		writeJSON(w, http.StatusOK, session.Session{})
		return
	}
	writeJSON(w, http.StatusOK, session.Session{User: &user, Authenticated: true})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := s.session.Login(req.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}
