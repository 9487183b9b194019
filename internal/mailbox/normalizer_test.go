package mailbox

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
)

const fullMessage = "From: Alice Smith <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>, carol@example.com\r\n" +
	"Subject: Project update\r\n" +
	"Date: Mon, 03 Jun 2024 10:30:00 +0000\r\n" +
	"Message-Id: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Here is the latest status.\r\n"

func TestNormalizeFullMessage(t *testing.T) {
	n := NewNormalizer(services.NewLogService(nil))

	doc, err := n.Normalize([]byte(fullMessage), "acc@example.com", models.FolderInbox)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if doc.AccountID != "acc@example.com" {
		t.Errorf("account = %q, want acc@example.com", doc.AccountID)
	}
	if doc.Folder != models.FolderInbox {
		t.Errorf("folder = %q, want INBOX", doc.Folder)
	}
	if doc.Subject != "Project update" {
		t.Errorf("subject = %q", doc.Subject)
	}
	if doc.MessageID != "abc123@example.com" {
		t.Errorf("message id = %q", doc.MessageID)
	}

	from := doc.From()
	if from.Name != "Alice Smith" || from.Address != "alice@example.com" {
		t.Errorf("from = %+v", from)
	}

	to := doc.ToList()
	if len(to) != 2 {
		t.Fatalf("got %d recipients, want 2", len(to))
	}
	if to[0].Address != "bob@example.com" || to[1].Address != "carol@example.com" {
		t.Errorf("recipients = %+v", to)
	}

	want := time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC)
	if !doc.ReceivedAt.Equal(want) {
		t.Errorf("received at = %v, want %v", doc.ReceivedAt, want)
	}

	if !strings.Contains(doc.Body, "latest status") {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestNormalizeMissingMessageID(t *testing.T) {
	n := NewNormalizer(services.NewLogService(nil))
	raw := []byte("From: a@example.com\r\nSubject: no id\r\n\r\nbody\r\n")

	first, err := n.Normalize(raw, "acc@example.com", models.FolderInbox)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	second, err := n.Normalize(raw, "acc@example.com", models.FolderInbox)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if !strings.HasPrefix(first.MessageID, "gen:") {
		t.Errorf("synthetic id = %q, want gen: prefix", first.MessageID)
	}
	// Synthetic identifiers are not reproducible across ingestions.
	if first.MessageID == second.MessageID {
		t.Errorf("two ingestions produced the same synthetic id %q", first.MessageID)
	}
}

func TestNormalizeMissingAddresses(t *testing.T) {
	n := NewNormalizer(services.NewLogService(nil))
	raw := []byte("Subject: bare\r\nMessage-Id: <bare@example.com>\r\n\r\nbody\r\n")

	doc, err := n.Normalize(raw, "acc@example.com", models.FolderInbox)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if from := doc.From(); from.Address != "" || from.Name != "" {
		t.Errorf("from = %+v, want empty", from)
	}
	if to := doc.ToList(); len(to) != 0 {
		t.Errorf("recipients = %+v, want empty", to)
	}
}

func TestNormalizeMissingDateDefaultsToNow(t *testing.T) {
	n := NewNormalizer(services.NewLogService(nil))
	raw := []byte("From: a@example.com\r\nMessage-Id: <nodate@example.com>\r\nSubject: x\r\n\r\nbody\r\n")

	before := time.Now()
	doc, err := n.Normalize(raw, "acc@example.com", models.FolderInbox)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	after := time.Now()

	if doc.ReceivedAt.Before(before) || doc.ReceivedAt.After(after) {
		t.Errorf("received at = %v, want ingestion time", doc.ReceivedAt)
	}
}

func TestNormalizeMultipartPrefersPlainText(t *testing.T) {
	n := NewNormalizer(services.NewLogService(nil))
	raw := []byte("From: a@example.com\r\n" +
		"Message-Id: <multi@example.com>\r\n" +
		"Subject: multipart\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>rich version</p>\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--BOUND--\r\n")

	doc, err := n.Normalize(raw, "acc@example.com", models.FolderInbox)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !strings.Contains(doc.Body, "plain version") {
		t.Errorf("body = %q, want the text/plain part", doc.Body)
	}
	if strings.Contains(doc.Body, "rich version") {
		t.Errorf("body contains the HTML part: %q", doc.Body)
	}
}

func TestNormalizeEmptyMessage(t *testing.T) {
	n := NewNormalizer(services.NewLogService(nil))

	if _, err := n.Normalize(nil, "acc@example.com", models.FolderInbox); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
	if _, err := n.Normalize([]byte{}, "acc@example.com", models.FolderInbox); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestProperty_NormalizeNeverEmptyIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	n := NewNormalizer(services.NewLogService(nil))

	properties.Property("every_document_carries_account_and_message_id", prop.ForAll(
		func(subject, body string) bool {
			raw := []byte("From: a@example.com\r\nSubject: " + subject + "\r\n\r\n" + body + "\r\n")
			doc, err := n.Normalize(raw, "acc@example.com", models.FolderInbox)
			if err != nil {
				return true
			}
			return doc.AccountID == "acc@example.com" && doc.MessageID != ""
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
