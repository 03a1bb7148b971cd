package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "control",
		iconEmoji:  ":test_tube:",
		client:     newHTTPClient(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

// slackMessage represents a Slack webhook message
type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// slackAttachment represents a Slack message attachment
type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

// slackField represents a field in a Slack attachment
type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	title, ok := summary.title()
	color, emoji := "good", ":white_check_mark:"
	switch {
	case !ok:
		color, emoji = "danger", ":x:"
	case summary.IsRecovery:
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Total Tests", Value: fmt.Sprintf("%d", summary.TotalTests), Short: true},
		{Title: "Passed", Value: fmt.Sprintf("%d", summary.PassedTests), Short: true},
		{Title: "Failed", Value: fmt.Sprintf("%d", summary.FailedTests), Short: true},
		{Title: "Skipped", Value: fmt.Sprintf("%d", summary.SkippedTests), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}

	if summary.HookFailures > 0 {
		fields = append(fields, slackField{
			Title: "Failed Hooks",
			Value: fmt.Sprintf("%d", summary.HookFailures),
			Short: true,
		})
	}

	if summary.Environment != "" {
		fields = append(fields, slackField{
			Title: "Environment",
			Value: summary.Environment,
			Short: true,
		})
	}

	var text strings.Builder
	if len(summary.FailedResults) > 0 {
		text.WriteString("*Failed:*\n")
		for _, ft := range summary.FailedResults {
			fmt.Fprintf(&text, "• `%s`", ft.Name)
			if ft.Kind != "" && ft.Kind != "test" {
				fmt.Fprintf(&text, " (%s)", ft.Kind)
			}
			text.WriteString("\n")
			if ft.Error != "" {
				fmt.Fprintf(&text, "  - %s\n", firstLine(ft.Error))
			}
		}
		if summary.OmittedFailures > 0 {
			fmt.Fprintf(&text, "_and %d more_\n", summary.OmittedFailures)
		}
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, title),
			Text:   text.String(),
			Fields: fields,
			Footer: fmt.Sprintf("control run %s", summary.RunID),
			TS:     time.Now().Unix(),
		}},
	}

	if err := postJSON(ctx, s.client, s.webhookURL, msg, http.StatusOK); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i] + " […]"
	}
	return s
}
