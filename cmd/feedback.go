package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trkhq/trk/internal/feedback"
)

var feedbackDryRun bool

var feedbackCmd = &cobra.Command{
	Use:   "feedback <file|->",
	Short: "Convert feedback text into issues with AI",
	Long: `Convert free-form feedback text into issues using an AI triage pass.

Reads the feedback from a file, or from stdin when the argument is '-'.
Each actionable item becomes one OPEN issue with an inferred priority.
If the AI call fails for any reason, no issues are created.

Requires ANTHROPIC_API_KEY environment variable or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackRun(args[0])
	},
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackDryRun, "dry-run", false, "Preview proposed issues without creating them")
	rootCmd.AddCommand(feedbackCmd)
}

func feedbackRun(source string) error {
	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return fmt.Errorf("read feedback: %w", err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("feedback text is empty")
	}

	client := newAIClient()
	if client == nil {
		return fmt.Errorf("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
	}

	c, err := getCollection()
	if err != nil {
		return err
	}

	ui.Info("Triaging feedback with AI (%s)...", viper.GetString("anthropic.model"))
	drafts, err := client.ProposeIssues(context.Background(), text)
	if err != nil {
		return err
	}

	if len(drafts) == 0 {
		ui.Info("No actionable issues found in feedback.")
		return nil
	}

	// Preview table
	table := ui.Table([]string{"#", "Title", "Priority"})
	for i, d := range drafts {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			d.Title,
			string(d.Priority),
		})
	}
	_ = table.Render()

	if feedbackDryRun || dryRun {
		ui.DryRun = true
		ui.DryRunMsg("Would create %d issues", len(drafts))
		return nil
	}

	created := feedback.Apply(c, drafts)
	ui.Success("Created %d issues from feedback", len(created))
	return nil
}
