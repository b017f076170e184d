package models

import "time"

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "OPEN"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusDone       IssueStatus = "DONE"
	IssueStatusCanceled   IssueStatus = "CANCELED"
)

// ValidStatus reports whether s is one of the known issue statuses.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusDone, IssueStatusCanceled:
		return true
	}
	return false
}

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "LOW"
	IssuePriorityMedium IssuePriority = "MEDIUM"
	IssuePriorityHigh   IssuePriority = "HIGH"
)

// ValidPriority reports whether p is one of the known issue priorities.
func ValidPriority(p IssuePriority) bool {
	switch p {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh:
		return true
	}
	return false
}

// Issue represents a tracked unit of work.
type Issue struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	Archived    bool          `json:"isArchived"`
	Assignee    string        `json:"assignee,omitempty"` // display name, no user registry behind it
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Archivable reports whether the issue's status permits archiving.
// Restoring an archived issue is always permitted.
func (i Issue) Archivable() bool {
	return i.Status == IssueStatusDone || i.Status == IssueStatusCanceled
}
