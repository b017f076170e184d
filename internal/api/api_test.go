package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/models"
	"github.com/trkhq/trk/internal/session"
)

func setupTestServer(t *testing.T) (*Server, *issues.Collection) {
	t.Helper()
	c := issues.New()
	m := session.New()
	srv := NewServer(c, m, nil)
	return srv, c
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListIssues_Empty(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "GET", "/api/v1/issues", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var list []models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestIssueCRUD_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	// Create
	w := doJSON(t, router, "POST", "/api/v1/issues", `{"title":"Fix login bug","description":"crash","priority":"HIGH"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.IssueStatusOpen, created.Status, "status defaults to OPEN")
	assert.Equal(t, models.IssuePriorityHigh, created.Priority)

	// Get
	w = doJSON(t, router, "GET", "/api/v1/issues/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Patch
	w = doJSON(t, router, "PATCH", "/api/v1/issues/"+created.ID, `{"status":"DONE","assignee":"alice"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.IssueStatusDone, updated.Status)
	assert.Equal(t, "alice", updated.Assignee)
	assert.Equal(t, "Fix login bug", updated.Title, "unpatched fields survive")

	// Clear assignee explicitly
	w = doJSON(t, router, "PATCH", "/api/v1/issues/"+created.ID, `{"assignee":""}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Empty(t, updated.Assignee)

	// Delete
	w = doJSON(t, router, "DELETE", "/api/v1/issues/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/issues/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateIssue_Validation(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/issues", `{"title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/issues", `{"title":"ok","status":"BOGUS"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/issues", `{"title":"ok","priority":"URGENT"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/issues", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateIssue_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "PATCH", "/api/v1/issues/NOPE", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "DELETE", "/api/v1/issues/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveRestore_API(t *testing.T) {
	srv, c := setupTestServer(t)
	router := srv.Router()

	open := c.Create(issues.CreateFields{Title: "open", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow})
	done := c.Create(issues.CreateFields{Title: "done", Status: models.IssueStatusDone, Priority: models.IssuePriorityLow})

	// The archive gate rejects OPEN issues
	w := doJSON(t, router, "POST", "/api/v1/issues/"+open.ID+"/archive", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// DONE issues archive fine
	w = doJSON(t, router, "POST", "/api/v1/issues/"+done.ID+"/archive", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var archived models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archived))
	assert.True(t, archived.Archived)

	// Archiving again is idempotent
	w = doJSON(t, router, "POST", "/api/v1/issues/"+done.ID+"/archive", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Archived issues are hidden from the default list
	w = doJSON(t, router, "GET", "/api/v1/issues", "")
	var list []models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	// And visible in the archived view
	w = doJSON(t, router, "GET", "/api/v1/issues?archived=true", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].ID)

	// Restore
	w = doJSON(t, router, "POST", "/api/v1/issues/"+done.ID+"/restore", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var restored models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &restored))
	assert.False(t, restored.Archived)
	assert.Equal(t, models.IssueStatusDone, restored.Status)
}

func TestListIssues_Filters(t *testing.T) {
	srv, c := setupTestServer(t)
	router := srv.Router()

	c.Create(issues.CreateFields{Title: "Fix login bug", Description: "crash", Status: models.IssueStatusOpen, Priority: models.IssuePriorityHigh})
	c.Create(issues.CreateFields{Title: "Dark mode", Description: "theme", Status: models.IssueStatusInProgress, Priority: models.IssuePriorityLow})

	var list []models.Issue

	w := doJSON(t, router, "GET", "/api/v1/issues?status=OPEN", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Fix login bug", list[0].Title)

	w = doJSON(t, router, "GET", "/api/v1/issues?priority=LOW", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Dark mode", list[0].Title)

	w = doJSON(t, router, "GET", "/api/v1/issues?q=LOGIN", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Fix login bug", list[0].Title)
}

func TestFeedback_NoClient(t *testing.T) {
	srv, c := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/feedback", `{"text":"the app is broken"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, c.Len(), "no issues created when conversion is unavailable")
}

func TestSession_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	// Anonymous by default
	w := doJSON(t, router, "GET", "/api/v1/session", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.False(t, sess.Authenticated)
	assert.Nil(t, sess.User)

	// Login
	w = doJSON(t, router, "POST", "/api/v1/session/login", `{"email":"alice@example.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Name)

	w = doJSON(t, router, "GET", "/api/v1/session", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.True(t, sess.Authenticated)
	require.NotNil(t, sess.User)
	assert.Equal(t, "alice", sess.User.Name)

	// Empty email rejected
	w = doJSON(t, router, "POST", "/api/v1/session/login", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Logout
	w = doJSON(t, router, "POST", "/api/v1/session/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/session", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.False(t, sess.Authenticated)
}

func TestCORS(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest("OPTIONS", "/api/v1/issues", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
