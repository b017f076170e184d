package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/models"
	"github.com/trkhq/trk/internal/output"
)

var (
	issueTitle    string
	issueDesc     string
	issueStatus   string
	issuePriority string
	issueAssignee string
	issueSearch   string
	issueArchived bool
	issueAll      bool
	issueUnassign bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Create, update, filter, archive, and delete issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long:    "List issues. Archived issues are hidden unless --archived or --all is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue permanently",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

var issueArchiveCmd = &cobra.Command{
	Use:   "archive <issue-id>",
	Short: "Archive an issue",
	Long:  "Archive an issue, hiding it from the default list. Only DONE or CANCELED issues can be archived.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueArchiveRun(args[0])
	},
}

var issueRestoreCmd = &cobra.Command{
	Use:   "restore <issue-id>",
	Short: "Restore an archived issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueRestoreRun(args[0])
	},
}

var issueTakeCmd = &cobra.Command{
	Use:   "take <issue-id>",
	Short: "Assign an issue to yourself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueTakeRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issueStatus, "status", "OPEN", "Status: OPEN, IN_PROGRESS, DONE, CANCELED")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "MEDIUM", "Priority: LOW, MEDIUM, HIGH")
	issueAddCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Assignee display name")
	_ = issueAddCmd.MarkFlagRequired("title")

	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status")
	issueListCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority")
	issueListCmd.Flags().StringVar(&issueSearch, "search", "", "Case-insensitive search over title and description")
	issueListCmd.Flags().BoolVar(&issueArchived, "archived", false, "Show archived issues instead")
	issueListCmd.Flags().BoolVar(&issueAll, "all", false, "Show active and archived issues")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New status")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")
	issueUpdateCmd.Flags().StringVar(&issueAssignee, "assignee", "", "New assignee display name")
	issueUpdateCmd.Flags().BoolVar(&issueUnassign, "unassign", false, "Clear the assignee")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueArchiveCmd)
	issueCmd.AddCommand(issueRestoreCmd)
	issueCmd.AddCommand(issueTakeCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueAddRun() error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	if strings.TrimSpace(issueTitle) == "" {
		return fmt.Errorf("title must not be empty")
	}
	status := models.IssueStatus(strings.ToUpper(issueStatus))
	if !models.ValidStatus(status) {
		return fmt.Errorf("invalid status: %s (use OPEN, IN_PROGRESS, DONE, or CANCELED)", issueStatus)
	}
	priority := models.IssuePriority(strings.ToUpper(issuePriority))
	if !models.ValidPriority(priority) {
		return fmt.Errorf("invalid priority: %s (use LOW, MEDIUM, or HIGH)", issuePriority)
	}

	if dryRun {
		ui.DryRunMsg("Would add issue: %s [%s/%s]", issueTitle, status, priority)
		return nil
	}

	issue := c.Create(issues.CreateFields{
		Title:       issueTitle,
		Description: issueDesc,
		Status:      status,
		Priority:    priority,
		Assignee:    issueAssignee,
	})

	ui.Success("Created issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueListRun() error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	list := c.List()
	if issueAll {
		// Both views, active first
		active := issues.FilterIssues(list, listFilter(false))
		archived := issues.FilterIssues(list, listFilter(true))
		list = append(active, archived...)
	} else {
		list = issues.FilterIssues(list, listFilter(issueArchived))
	}

	if len(list) == 0 {
		ui.Info("No issues found. Use 'trk issue add --title ...' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Assignee", "Archived"})
	for _, issue := range list {
		archived := ""
		if issue.Archived {
			archived = "yes"
		}
		_ = table.Append([]string{
			shortID(issue.ID),
			issue.Title,
			output.StatusColor(string(issue.Status)),
			output.PriorityColor(string(issue.Priority)),
			issue.Assignee,
			archived,
		})
	}
	_ = table.Render()
	return nil
}

func listFilter(archived bool) issues.Filter {
	return issues.Filter{
		Status:   models.IssueStatus(strings.ToUpper(issueStatus)),
		Priority: models.IssuePriority(strings.ToUpper(issuePriority)),
		Search:   issueSearch,
		Archived: archived,
	}
}

func issueShowRun(id string) error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(issue.Priority)))
	if issue.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", issue.Description)
	}
	if issue.Assignee != "" {
		fmt.Fprintf(ui.Out, "  Assignee:   %s\n", issue.Assignee)
	}
	if issue.Archived {
		fmt.Fprintf(ui.Out, "  Archived:   yes\n")
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", issue.ID)

	return nil
}

func issueUpdateRun(id string) error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	var patch issues.Patch
	if issueTitle != "" {
		patch.Title = &issueTitle
	}
	if issueDesc != "" {
		patch.Description = &issueDesc
	}
	if issueStatus != "" {
		status := models.IssueStatus(strings.ToUpper(issueStatus))
		if !models.ValidStatus(status) {
			return fmt.Errorf("invalid status: %s", issueStatus)
		}
		patch.Status = &status
	}
	if issuePriority != "" {
		priority := models.IssuePriority(strings.ToUpper(issuePriority))
		if !models.ValidPriority(priority) {
			return fmt.Errorf("invalid priority: %s", issuePriority)
		}
		patch.Priority = &priority
	}
	if issueUnassign {
		empty := ""
		patch.Assignee = &empty
	} else if issueAssignee != "" {
		patch.Assignee = &issueAssignee
	}

	if patch == (issues.Patch{}) {
		return fmt.Errorf("no updates specified (use --title, --desc, --status, --priority, --assignee, or --unassign)")
	}

	if dryRun {
		ui.DryRunMsg("Would update issue %s", shortID(issue.ID))
		return nil
	}

	updated, _ := c.Update(issue.ID, patch)
	ui.Success("Updated issue %s", output.Cyan(shortID(updated.ID)))
	return nil
}

func issueDeleteRun(id string) error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	if !issue.Archived {
		ui.Warning("Deleting an issue that was never archived; this is permanent")
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}

	c.Delete(issue.ID)
	ui.Success("Deleted issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueArchiveRun(id string) error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}
	if issue.Archived {
		ui.Info("Issue %s is already archived.", shortID(issue.ID))
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would archive issue %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}

	if _, _, err := c.ToggleArchive(issue.ID); err != nil {
		return fmt.Errorf("archive issue: %w", err)
	}

	ui.Success("Archived issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueRestoreRun(id string) error {
	c, err := getCollection()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}
	if !issue.Archived {
		ui.Info("Issue %s is not archived.", shortID(issue.ID))
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would restore issue %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}

	if _, _, err := c.ToggleArchive(issue.ID); err != nil {
		return fmt.Errorf("restore issue: %w", err)
	}

	ui.Success("Restored issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueTakeRun(id string) error {
	c, err := getCollection()
	if err != nil {
		return err
	}
	m, err := getSession()
	if err != nil {
		return err
	}

	user, ok := m.Current()
	if !ok {
		return fmt.Errorf("not logged in (use 'trk login <email>' first)")
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would assign issue %s to %s", shortID(issue.ID), user.Name)
		return nil
	}

	c.Update(issue.ID, issues.Patch{Assignee: &user.Name})
	ui.Success("Assigned issue %s to %s", output.Cyan(shortID(issue.ID)), user.Name)
	return nil
}

// findIssue finds an issue by full ID or prefix match.
func findIssue(c *issues.Collection, id string) (models.Issue, error) {
	// Try exact match first
	if issue, ok := c.Get(id); ok {
		return issue, nil
	}

	// Try prefix match
	upper := strings.ToUpper(id)
	var matches []models.Issue
	for _, issue := range c.List() {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return models.Issue{}, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return models.Issue{}, fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
