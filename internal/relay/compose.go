package relay

import (
	"fmt"
	"html"
	"strings"

	"github.com/storyproof/lead-relay/internal/models"
	"github.com/storyproof/lead-relay/internal/providers/graph"
	"github.com/storyproof/lead-relay/internal/util"
)

// Field names the composer treats specially. The relay enforces no schema:
// these are the conventional keys the lead form sends, and every path
// degrades gracefully when they are absent.
const (
	organizationField = "organization"
	emailField        = "email"
	phoneField        = "phone"

	subjectFallback = "Website Visitor"
)

// BuildEmail renders a submission as the notification email delivered to the
// configured recipient. The subject carries the organization field when one
// was submitted, the body is an HTML table over every field in submission
// order, and reply-to is set when the submitter left a parseable address.
func BuildEmail(sub *models.Submission, recipient string) *graph.Message {
	org, ok := sub.Data.Get(organizationField)
	if !ok || strings.TrimSpace(org) == "" {
		org = subjectFallback
	}

	msg := &graph.Message{
		Subject: "New lead from " + org,
		Body: graph.Body{
			ContentType: "HTML",
			Content:     renderBody(sub),
		},
		ToRecipients: []graph.Recipient{graph.NewRecipient(recipient)},
	}

	if replyTo, ok := sub.Data.Get(emailField); ok && util.ValidEmailAddress(replyTo) {
		msg.ReplyTo = []graph.Recipient{graph.NewRecipient(replyTo)}
	}

	return msg
}

// renderBody builds the HTML table over the submitted fields. Keys and values
// are escaped at render time; the phone field is re-normalized server side so
// the email always shows the dashed form even when the form client was
// bypassed. An empty field map still yields a well-formed, empty table.
func renderBody(sub *models.Submission) string {
	var b strings.Builder
	b.WriteString("<h2>New lead submission</h2>\n")
	b.WriteString(`<table border="1" cellpadding="6" cellspacing="0">` + "\n")

	for _, key := range sub.Data.Keys() {
		value, _ := sub.Data.Get(key)
		if key == phoneField {
			value = util.FormatPhone(value)
		}
		b.WriteString("<tr><td><strong>")
		b.WriteString(html.EscapeString(key))
		b.WriteString("</strong></td><td>")
		b.WriteString(html.EscapeString(value))
		b.WriteString("</td></tr>\n")
	}

	b.WriteString("</table>\n")
	fmt.Fprintf(&b, "<p>Form: %s<br>Site: %s<br>Submitted: %s</p>\n",
		html.EscapeString(sub.FormName),
		html.EscapeString(sub.Site.URL),
		html.EscapeString(sub.CreatedAt))

	return b.String()
}
