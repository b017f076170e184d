// Package feedback converts free-form feedback text into proposed
// issues via the Anthropic API. The conversion is all-or-nothing: if
// the call or the response parse fails, zero issues are created.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/models"
)

// Category classifies a converter failure for user display.
type Category string

const (
	CategoryRateLimited Category = "rate_limited"
	CategoryUnavailable Category = "unavailable"
	CategoryGeneric     Category = "generic"
)

// ServiceError is the single error surfaced for any converter failure:
// network error, quota rejection, or malformed response body.
type ServiceError struct {
	Category Category
	Err      error
}

func (e *ServiceError) Error() string {
	switch e.Category {
	case CategoryRateLimited:
		return "AI usage limit exceeded, wait a minute and try again"
	case CategoryUnavailable:
		return "AI service temporarily unavailable, try again"
	default:
		return fmt.Sprintf("process feedback: %v", e.Err)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// classify derives a failure category from the error's characteristics.
func classify(err error) *ServiceError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return &ServiceError{Category: CategoryRateLimited, Err: err}
	case strings.Contains(msg, "503"), strings.Contains(msg, "overloaded"):
		return &ServiceError{Category: CategoryUnavailable, Err: err}
	default:
		return &ServiceError{Category: CategoryGeneric, Err: err}
	}
}

// Draft is one proposed issue extracted from feedback text. Status is
// always OPEN and priority falls back to MEDIUM on anything invalid.
type Draft struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      models.IssueStatus   `json:"status"`
	Priority    models.IssuePriority `json:"priority"`
}

// Client wraps the Anthropic API for feedback conversion.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates a converter client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for feedback conversion.
func buildPrompt(text string) (system string, user string) {
	system = `You analyze feedback text and extract actionable tasks for an issue tracker. Return ONLY a raw JSON array of objects (no markdown code blocks, no explanation).

Each object must have these fields:
- "title": a concise summary of the task (max 50 chars)
- "description": the full context of the task based on the feedback
- "status": always "OPEN"
- "priority": one of "LOW", "MEDIUM", "HIGH", inferred from urgency and emotion in the text, defaulting to "MEDIUM"

Rules:
- Each distinct complaint or request is one task
- Never invent tasks the feedback does not support
- Return valid JSON only`

	var sb strings.Builder
	sb.WriteString("Feedback text:\n\n")
	sb.WriteString(text)
	user = sb.String()
	return
}

// ProposeIssues sends feedback text to the LLM and returns the proposed
// drafts. Every failure surfaces as a *ServiceError; on error no drafts
// are returned.
func (c *Client) ProposeIssues(ctx context.Context, text string) ([]Draft, error) {
	systemPrompt, userPrompt := buildPrompt(text)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("anthropic API call: %w", err))
	}

	// Extract text from response
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out = block.Text
			break
		}
	}
	if out == "" {
		return nil, classify(fmt.Errorf("no text content in API response"))
	}

	return parseDrafts(out)
}

// parseDrafts cleans up the raw model output and decodes it into
// drafts. Non-JSON bodies surface as a single generic ServiceError; no
// partial parse is attempted.
func parseDrafts(raw string) ([]Draft, error) {
	// Strip markdown fencing if present, despite prompt instructions
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, classify(fmt.Errorf("parse LLM response as JSON: %w", err))
	}

	for i := range drafts {
		drafts[i].Status = models.IssueStatusOpen
		if !models.ValidPriority(drafts[i].Priority) {
			drafts[i].Priority = models.IssuePriorityMedium
		}
	}
	return drafts, nil
}

// Apply feeds each draft through the collection's create operation
// exactly once, in the order received, and returns the created issues.
func Apply(c *issues.Collection, drafts []Draft) []models.Issue {
	created := make([]models.Issue, 0, len(drafts))
	for _, d := range drafts {
		created = append(created, c.Create(issues.CreateFields{
			Title:       d.Title,
			Description: d.Description,
			Status:      d.Status,
			Priority:    d.Priority,
		}))
	}
	return created
}
