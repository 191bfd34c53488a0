package mailer

import (
	"bytes"
	"fmt"
	htmlTemplate "html/template"
	textTemplate "text/template"
)

// reminderData is the data fed into the reminder templates
type reminderData struct {
	Name        string
	CompanyName string
	ExpiryDate  string
	LinkExpiry  string
	Link        string
}

const reminderSubject = `Your subscription expires on {{.ExpiryDate}}`

const reminderHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2>Subscription Renewal Reminder</h2>
  <p>Dear {{.Name}},</p>
  <p>Your subscription with {{.CompanyName}} expires on <strong>{{.ExpiryDate}}</strong>.</p>
  <p>Please let us know whether you would like to renew:</p>
  <p style="margin: 24px 0;">
    <a href="{{.Link}}" style="background-color: #4CAF50; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Respond Now</a>
  </p>
  <p>This link is personal to you, can be used once, and remains valid until {{.LinkExpiry}}.</p>
  <p style="color: #666; font-size: 12px; margin-top: 30px;">If you did not expect this email, you can safely ignore it.</p>
</body>
</html>`

const reminderText = `Dear {{.Name}},

Your subscription with {{.CompanyName}} expires on {{.ExpiryDate}}.

Please let us know whether you would like to renew by visiting:

{{.Link}}

This link is personal to you, can be used once, and remains valid
until {{.LinkExpiry}}.

If you did not expect this email, you can safely ignore it.
`

var (
	subjectTmpl = textTemplate.Must(textTemplate.New("subject").Parse(reminderSubject))
	htmlTmpl    = htmlTemplate.Must(htmlTemplate.New("html").Parse(reminderHTML))
	textTmpl    = textTemplate.Must(textTemplate.New("text").Parse(reminderText))
)

// renderReminder renders the subject, HTML, and text bodies
func renderReminder(data reminderData) (subject, html, text string, err error) {
	var buf bytes.Buffer
	if err := subjectTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	subject = buf.String()

	buf.Reset()
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render html: %w", err)
	}
	html = buf.String()

	buf.Reset()
	if err := textTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render text: %w", err)
	}
	text = buf.String()

	return subject, html, text, nil
}
