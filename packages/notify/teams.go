package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsClient replaces the HTTP client used to post cards
func WithTeamsClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the name of the notifier
func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage represents a Microsoft Teams Adaptive Card message
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

// teamsCard represents an Adaptive Card
type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

// teamsCardContent is the content of an Adaptive Card
type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

// teamsBlock represents a block in the Adaptive Card
type teamsBlock struct {
	Type      string        `json:"type"`
	Size      string        `json:"size,omitempty"`
	Weight    string        `json:"weight,omitempty"`
	Text      string        `json:"text,omitempty"`
	Color     string        `json:"color,omitempty"`
	Wrap      bool          `json:"wrap,omitempty"`
	Columns   []teamsColumn `json:"columns,omitempty"`
	Items     []teamsBlock  `json:"items,omitempty"`
	Spacing   string        `json:"spacing,omitempty"`
	Separator bool          `json:"separator,omitempty"`
}

// teamsColumn represents a column in a ColumnSet
type teamsColumn struct {
	Type  string       `json:"type"`
	Width string       `json:"width"`
	Items []teamsBlock `json:"items"`
}

func statColumn(label, value, color string) teamsColumn {
	return teamsColumn{
		Type:  "Column",
		Width: "stretch",
		Items: []teamsBlock{
			{Type: "TextBlock", Text: fmt.Sprintf("**%s**", label), Wrap: true},
			{Type: "TextBlock", Text: value, Color: color, Wrap: true},
		},
	}
}

// Notify sends a notification to Microsoft Teams
func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	title, ok := summary.title()
	color, emoji := "good", "✓"
	switch {
	case !ok:
		color, emoji = "attention", "✗"
	case summary.IsRecovery:
		emoji = "🎉"
	}

	body := []teamsBlock{
		{
			Type:   "TextBlock",
			Size:   "Large",
			Weight: "Bolder",
			Text:   fmt.Sprintf("%s %s", emoji, title),
			Color:  color,
		},
		{
			Type:      "ColumnSet",
			Separator: true,
			Spacing:   "Medium",
			Columns: []teamsColumn{
				statColumn("Total Tests", fmt.Sprintf("%d", summary.TotalTests), ""),
				statColumn("Passed", fmt.Sprintf("%d", summary.PassedTests), "good"),
				statColumn("Failed", fmt.Sprintf("%d", summary.FailedTests), "attention"),
				statColumn("Skipped", fmt.Sprintf("%d", summary.SkippedTests), ""),
				statColumn("Duration", summary.Duration.Round(time.Millisecond).String(), ""),
			},
		},
	}

	if summary.Environment != "" {
		body = append(body, teamsBlock{
			Type: "TextBlock",
			Text: fmt.Sprintf("**Environment:** %s", summary.Environment),
			Wrap: true,
		})
	}

	if len(summary.FailedResults) > 0 {
		body = append(body, teamsBlock{
			Type:      "TextBlock",
			Text:      "**Failed:**",
			Separator: true,
			Spacing:   "Medium",
		})

		for _, ft := range summary.FailedResults {
			text := fmt.Sprintf("- `%s`", ft.Name)
			if ft.Kind != "" && ft.Kind != "test" {
				text += fmt.Sprintf(" (%s)", ft.Kind)
			}
			if ft.Error != "" {
				text += ": " + firstLine(ft.Error)
			}
			body = append(body, teamsBlock{Type: "TextBlock", Text: text, Wrap: true})
		}

		if summary.OmittedFailures > 0 {
			body = append(body, teamsBlock{
				Type: "TextBlock",
				Text: fmt.Sprintf("_and %d more_", summary.OmittedFailures),
				Wrap: true,
			})
		}
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_control run %s - %s_", summary.RunID, time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{
			{
				ContentType: "application/vnd.microsoft.card.adaptive",
				Content: teamsCardContent{
					Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
					Type:    "AdaptiveCard",
					Version: "1.2",
					Body:    body,
				},
			},
		},
	}

	if err := postJSON(ctx, t.client, t.webhookURL, msg, http.StatusOK, http.StatusAccepted); err != nil {
		return fmt.Errorf("teams: %w", err)
	}
	return nil
}
