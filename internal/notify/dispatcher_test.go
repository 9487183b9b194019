package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
)

type recordingSink struct {
	mu   sync.Mutex
	name string
	sent []string
	err  error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(doc *models.Email, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, doc.MessageID)
	return nil
}

func alertDoc() *models.Email {
	doc := &models.Email{
		AccountID:  "acc@example.com",
		MessageID:  "<alert@host>",
		FromName:   "Alice",
		FromAddr:   "alice@example.com",
		Subject:    "Re: demo",
		Body:       "Interested, send over the contract.",
		ReceivedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	return doc
}

func TestNotifyDeliversToAllSinks(t *testing.T) {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	d := NewDispatcher([]Sink{first, second}, services.NewLogService(nil))

	d.Notify(alertDoc(), "Interested")

	if len(first.sent) != 1 || len(second.sent) != 1 {
		t.Errorf("deliveries = %d/%d, want 1 per sink", len(first.sent), len(second.sent))
	}
}

func TestNotifySinkFailureIsIsolated(t *testing.T) {
	broken := &recordingSink{name: "broken", err: errors.New("endpoint down")}
	healthy := &recordingSink{name: "healthy"}
	d := NewDispatcher([]Sink{broken, healthy}, services.NewLogService(nil))

	d.Notify(alertDoc(), "Interested")

	if len(healthy.sent) != 1 {
		t.Errorf("healthy sink got %d deliveries, want 1 despite the broken sink", len(healthy.sent))
	}
}

func TestWebhookSinkPayload(t *testing.T) {
	var got []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	if err := sink.Send(alertDoc(), "Interested"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var payload struct {
		Email struct {
			From    models.Address `json:"from"`
			Subject string         `json:"subject"`
			Body    string         `json:"body"`
		} `json:"email"`
		Category  string `json:"category"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(got, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.Category != "Interested" {
		t.Errorf("category = %q", payload.Category)
	}
	if payload.Email.From.Address != "alice@example.com" || payload.Email.Subject != "Re: demo" {
		t.Errorf("email fields = %+v", payload.Email)
	}
	if _, err := time.Parse(time.RFC3339, payload.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", payload.Timestamp, err)
	}
}

func TestWebhookSinkNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	if err := sink.Send(alertDoc(), "Interested"); !errors.Is(err, ErrSinkFailed) {
		t.Errorf("err = %v, want ErrSinkFailed", err)
	}
}

func TestSlackSinkBlocks(t *testing.T) {
	var got []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewSlackSink(server.URL)
	if err := sink.Send(alertDoc(), "Interested"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	body := string(got)
	for _, want := range []string{"Interested Email Received", "alice@example.com", "Re: demo"} {
		if !strings.Contains(body, want) {
			t.Errorf("slack payload missing %q", want)
		}
	}
}

func TestBodyPreviewTruncation(t *testing.T) {
	short := "short body"
	if got := bodyPreview(short); got != short {
		t.Errorf("short body modified: %q", got)
	}

	long := strings.Repeat("x", previewLimit+50)
	got := bodyPreview(long)
	if len(got) != previewLimit+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("long body preview = %d chars", len(got))
	}
}
