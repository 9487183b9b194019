// Package notify fires best-effort notifications to external sinks when a
// document lands in the alert-triggering category. Delivery is
// fire-and-forget: no queue, no retry, and one sink's failure never blocks
// another.
package notify

import (
	"time"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
)

// previewLimit bounds the body excerpt included in notifications.
const previewLimit = 200

// Sink delivers one notification to one external channel.
type Sink interface {
	Name() string
	Send(doc *models.Email, category string) error
}

// Dispatcher fans a classification event out to every configured sink.
type Dispatcher struct {
	sinks      []Sink
	logService *services.LogService
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(sinks []Sink, logService *services.LogService) *Dispatcher {
	return &Dispatcher{
		sinks:      sinks,
		logService: logService,
	}
}

// SinkCount returns the number of configured sinks.
func (d *Dispatcher) SinkCount() int {
	return len(d.sinks)
}

// Notify delivers to each sink independently. Errors are logged per sink
// and never escalate; there is no ordering across documents.
func (d *Dispatcher) Notify(doc *models.Email, category string) {
	for _, sink := range d.sinks {
		if err := sink.Send(doc, category); err != nil {
			d.logService.LogWarn(models.LogModuleNotify, "send", "Notification sink failed", map[string]interface{}{
				"sink":       sink.Name(),
				"message_id": doc.MessageID,
				"category":   category,
				"error":      err.Error(),
			})
			continue
		}
		d.logService.LogInfo(models.LogModuleNotify, "send", "Notification sent", map[string]interface{}{
			"sink":       sink.Name(),
			"message_id": doc.MessageID,
			"category":   category,
		})
	}
}

// bodyPreview truncates a body for notification payloads. Storage is never
// truncated; only what leaves through a sink is.
func bodyPreview(body string) string {
	if len(body) <= previewLimit {
		return body
	}
	return body[:previewLimit] + "..."
}

// notificationPayload is the generic webhook body.
type notificationPayload struct {
	Email     payloadEmail `json:"email"`
	Category  string       `json:"category"`
	Timestamp string       `json:"timestamp"`
}

type payloadEmail struct {
	From       models.Address `json:"from"`
	Subject    string         `json:"subject"`
	Body       string         `json:"body"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

func newPayload(doc *models.Email, category string) notificationPayload {
	return notificationPayload{
		Email: payloadEmail{
			From:       doc.From(),
			Subject:    doc.Subject,
			Body:       bodyPreview(doc.Body),
			ReceivedAt: doc.ReceivedAt,
		},
		Category:  category,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
