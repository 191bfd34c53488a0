package mailer

import (
	"strings"
	"testing"
	"time"
)

func TestRenderReminder(t *testing.T) {
	subject, html, text, err := renderReminder(reminderData{
		Name:        "Test Client",
		CompanyName: "Test Corp",
		ExpiryDate:  "September 5, 2026",
		LinkExpiry:  "September 7, 2026",
		Link:        "https://renew.test.com/response/abc.def",
	})
	if err != nil {
		t.Fatalf("renderReminder() error = %v", err)
	}

	if subject != "Your subscription expires on September 5, 2026" {
		t.Errorf("subject = %q", subject)
	}

	for _, want := range []string{"Test Client", "Test Corp", "September 5, 2026", "https://renew.test.com/response/abc.def"} {
		if !strings.Contains(html, want) {
			t.Errorf("html body missing %q", want)
		}
		if !strings.Contains(text, want) {
			t.Errorf("text body missing %q", want)
		}
	}
	if !strings.Contains(html, "September 7, 2026") {
		t.Error("html body missing link expiry")
	}
}

func TestRenderReminderEscapesHTML(t *testing.T) {
	_, html, text, err := renderReminder(reminderData{
		Name: `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("renderReminder() error = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("html body did not escape the client name")
	}
	// The text part is not HTML and must carry the raw value
	if !strings.Contains(text, `<script>alert("x")</script>`) {
		t.Error("text body altered the client name")
	}
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	data := string(buildMessage(
		"reminders@test.com", "client@test.com",
		"Your subscription expires soon",
		"<p>html part</p>", "text part", now,
	))

	headers := []string{
		"From: reminders@test.com\r\n",
		"To: client@test.com\r\n",
		"Subject: Your subscription expires soon\r\n",
		"Date: Mon, 31 Aug 2026 09:00:00 +0000\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/alternative; boundary=",
	}
	for _, h := range headers {
		if !strings.Contains(data, h) {
			t.Errorf("message missing header %q", h)
		}
	}

	if !strings.Contains(data, "Message-ID: <") || !strings.Contains(data, "@test.com>\r\n") {
		t.Error("message missing a Message-ID at the sending domain")
	}

	// Text part precedes the HTML part
	textIdx := strings.Index(data, "text part")
	htmlIdx := strings.Index(data, "<p>html part</p>")
	if textIdx == -1 || htmlIdx == -1 || textIdx > htmlIdx {
		t.Error("multipart body parts missing or out of order")
	}

	if !strings.HasSuffix(data, "--\r\n") {
		t.Error("message missing closing boundary")
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"reminders@test.com", "test.com"},
		{"Renewals <reminders@test.com>", "test.com"},
		{"no-at-sign", "localhost"},
		{"trailing@", "localhost"},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.email); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
