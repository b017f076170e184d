package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/models"
)

func TestFindIssue_ExactMatch(t *testing.T) {
	c := issues.New()
	issue := c.Create(issues.CreateFields{Title: "a", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow})

	found, err := findIssue(c, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, found.ID)
}

func TestFindIssue_PrefixMatch(t *testing.T) {
	c := issues.New()
	issue := c.Create(issues.CreateFields{Title: "a", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow})

	found, err := findIssue(c, issue.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, issue.ID, found.ID)
}

func TestFindIssue_NotFound(t *testing.T) {
	c := issues.New()

	_, err := findIssue(c, "ZZZZ")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFindIssue_Ambiguous(t *testing.T) {
	c := issues.New()
	a := c.Create(issues.CreateFields{Title: "a", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow})
	b := c.Create(issues.CreateFields{Title: "b", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow})

	// ULIDs created in the same millisecond share a timestamp prefix.
	prefix := commonPrefix(a.ID, b.ID)
	if len(prefix) < 2 {
		t.Skip("IDs share no usable prefix")
	}

	_, err := findIssue(c, prefix[:2])
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func commonPrefix(a, b string) string {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "01ARZ3NDEKTS", shortID("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	assert.Equal(t, "short", shortID("short"))
}

func TestListFilter(t *testing.T) {
	issueStatus = "open"
	issuePriority = "high"
	issueSearch = "login"
	t.Cleanup(func() {
		issueStatus = ""
		issuePriority = ""
		issueSearch = ""
	})

	f := listFilter(true)
	assert.Equal(t, models.IssueStatusOpen, f.Status, "status is uppercased")
	assert.Equal(t, models.IssuePriorityHigh, f.Priority, "priority is uppercased")
	assert.Equal(t, "login", f.Search)
	assert.True(t, f.Archived)
}
