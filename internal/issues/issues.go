// Package issues implements the issue collection: the single source of
// truth for all issue records and the only sanctioned mutation surface.
package issues

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trkhq/trk/internal/models"
	"github.com/trkhq/trk/internal/state"
	"github.com/trkhq/trk/internal/store"
)

// ErrNotArchivable is returned when archiving an issue whose status is
// not DONE or CANCELED. Restoring is never gated.
var ErrNotArchivable = errors.New("only DONE or CANCELED issues can be archived")

// CreateFields holds the caller-supplied fields for a new issue.
type CreateFields struct {
	Title       string
	Description string
	Status      models.IssueStatus
	Priority    models.IssuePriority
	Assignee    string
}

// Patch is a partial update. Nil fields are left untouched; a non-nil
// Assignee pointing at an empty string clears the assignee.
type Patch struct {
	Title       *string
	Description *string
	Status      *models.IssueStatus
	Priority    *models.IssuePriority
	Assignee    *string
}

// envelope is the persisted blob layout for the issue collection.
type envelope struct {
	Issues []models.Issue `json:"issues"`
}

// Collection holds the ordered issue list, newest first. Every
// mutation replaces the whole list and is flushed to the blob store
// synchronously afterwards.
type Collection struct {
	state *state.Container[[]models.Issue]
}

// New creates an empty in-memory collection with no persistence.
func New() *Collection {
	return &Collection{state: state.New[[]models.Issue](nil)}
}

// Open loads the collection from blobs and wires a persist-after-mutate
// hook. A missing blob yields an empty collection. Save failures are
// fire-and-forget: a mutation never fails because its flush did.
func Open(ctx context.Context, blobs store.Blobs) (*Collection, error) {
	var env envelope
	data, ok, err := blobs.Load(ctx, store.KeyIssues)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
	}

	c := &Collection{state: state.New(env.Issues)}
	c.state.OnChange(func(list []models.Issue) {
		data, err := json.Marshal(envelope{Issues: list})
		if err != nil {
			return
		}
		_ = blobs.Save(context.Background(), store.KeyIssues, data)
	})
	return c, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Create assigns a fresh ID, stamps both timestamps to now, and
// prepends the record so the collection stays newest-first.
func (c *Collection) Create(f CreateFields) models.Issue {
	now := time.Now().UTC()
	issue := models.Issue{
		ID:          newULID(),
		Title:       f.Title,
		Description: f.Description,
		Status:      f.Status,
		Priority:    f.Priority,
		Assignee:    f.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.state.Set(func(list []models.Issue) []models.Issue {
		next := make([]models.Issue, 0, len(list)+1)
		next = append(next, issue)
		return append(next, list...)
	})
	return issue
}

// Update merges patch into the issue with the given id and refreshes
// UpdatedAt. ID and CreatedAt are never touched. A missing id is a
// silent no-op reported through found=false.
func (c *Collection) Update(id string, patch Patch) (updated models.Issue, found bool) {
	c.state.Set(func(list []models.Issue) []models.Issue {
		next := make([]models.Issue, len(list))
		for i, issue := range list {
			if issue.ID == id {
				if patch.Title != nil {
					issue.Title = *patch.Title
				}
				if patch.Description != nil {
					issue.Description = *patch.Description
				}
				if patch.Status != nil {
					issue.Status = *patch.Status
				}
				if patch.Priority != nil {
					issue.Priority = *patch.Priority
				}
				if patch.Assignee != nil {
					issue.Assignee = *patch.Assignee
				}
				issue.UpdatedAt = time.Now().UTC()
				updated = issue
				found = true
			}
			next[i] = issue
		}
		return next
	})
	return updated, found
}

// Delete removes the issue with the given id permanently. A missing id
// is a silent no-op reported through found=false.
func (c *Collection) Delete(id string) (found bool) {
	c.state.Set(func(list []models.Issue) []models.Issue {
		next := make([]models.Issue, 0, len(list))
		for _, issue := range list {
			if issue.ID == id {
				found = true
				continue
			}
			next = append(next, issue)
		}
		return next
	})
	return found
}

// ToggleArchive flips the archived flag. Archiving is permitted only
// when the status gate allows it (DONE or CANCELED); restoring is
// unconditional. A missing id is a no-op with found=false.
func (c *Collection) ToggleArchive(id string) (toggled models.Issue, found bool, err error) {
	c.state.Set(func(list []models.Issue) []models.Issue {
		next := make([]models.Issue, len(list))
		for i, issue := range list {
			if issue.ID == id {
				found = true
				if !issue.Archived && !issue.Archivable() {
					err = ErrNotArchivable
				} else {
					issue.Archived = !issue.Archived
					issue.UpdatedAt = time.Now().UTC()
					toggled = issue
				}
			}
			next[i] = issue
		}
		return next
	})
	return toggled, found, err
}

// Get returns the issue with the given id. Pure, no side effects.
func (c *Collection) Get(id string) (models.Issue, bool) {
	for _, issue := range c.state.Get() {
		if issue.ID == id {
			return issue, true
		}
	}
	return models.Issue{}, false
}

// List returns a copy of the full collection, newest first.
func (c *Collection) List() []models.Issue {
	list := c.state.Get()
	out := make([]models.Issue, len(list))
	copy(out, list)
	return out
}

// Len returns the number of issues, archived included.
func (c *Collection) Len() int {
	return len(c.state.Get())
}

// Subscribe registers a listener notified with the new list after
// every mutation. It returns an unsubscribe function.
func (c *Collection) Subscribe(fn func([]models.Issue)) func() {
	return c.state.Subscribe(fn)
}

// Filter describes a derived view of the collection. Zero values mean
// "no constraint" except Archived, which selects between the archived
// view and the default view.
type Filter struct {
	Status   models.IssueStatus
	Priority models.IssuePriority
	Search   string
	Archived bool
}

// Matches reports whether the issue belongs in the filtered view.
func (f Filter) Matches(issue models.Issue) bool {
	if issue.Archived != f.Archived {
		return false
	}
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Priority != "" && issue.Priority != f.Priority {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(issue.Title), q) &&
			!strings.Contains(strings.ToLower(issue.Description), q) {
			return false
		}
	}
	return true
}

// FilterIssues returns the issues matching f, preserving order. It is
// pure: the input slice is never mutated.
func FilterIssues(list []models.Issue, f Filter) []models.Issue {
	var out []models.Issue
	for _, issue := range list {
		if f.Matches(issue) {
			out = append(out, issue)
		}
	}
	return out
}
