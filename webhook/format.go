package webhook

import (
	"fmt"
	"strings"

	"github.com/go-playground/webhooks/v6/github"
)

// Built-in Markdown formatters for the event types that ship without a
// template file. All of them are pure and total: missing optional
// fields render as placeholders, never as errors.

// FormatPush renders a digest of the pushed commits.
func FormatPush(event github.PushPayload) string {
	entries := make([]string, 0, len(event.Commits))
	for _, commit := range event.Commits {
		email := commit.Author.Email
		if email == "" {
			email = "<no email>"
		}
		entries = append(entries, fmt.Sprintf(
			"- **Commit**: [%s](%s)\n  **Author**: %s <%s>\n  **Message**: %s\n",
			shortHash(commit.ID),
			commit.URL,
			commit.Author.Name,
			email,
			firstLine(commit.Message),
		))
	}

	return fmt.Sprintf(
		"New commits pushed to [%s](%s)\n\n%s",
		event.Repository.Name,
		event.Repository.HTMLURL,
		strings.Join(entries, "\n"),
	)
}

// FormatIssueAction renders issue opened/closed/reopened notifications.
func FormatIssueAction(event github.IssuesPayload) string {
	return fmt.Sprintf(
		"[%s](%s) has %s [issue #%d](%s) in [%s](%s)\n\n**Title**: %s",
		event.Issue.User.Login,
		event.Issue.User.HTMLURL,
		event.Action,
		event.Issue.Number,
		event.Issue.HTMLURL,
		event.Repository.Name,
		event.Repository.HTMLURL,
		event.Issue.Title,
	)
}

// FormatIssueCommentCreated renders a new comment notification.
func FormatIssueCommentCreated(event github.IssueCommentPayload) string {
	return fmt.Sprintf(
		"[%s](%s) commented on [issue #%d](%s) in [%s](%s)\n\n**Title**: %s",
		event.Comment.User.Login,
		event.Comment.User.HTMLURL,
		event.Issue.Number,
		event.Issue.HTMLURL,
		event.Repository.Name,
		event.Repository.HTMLURL,
		event.Issue.Title,
	)
}

func shortHash(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}
