package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CoderParva/Onebox/internal/database/models"
)

// ErrSinkFailed indicates a sink rejected or could not deliver a notification
var ErrSinkFailed = errors.New("notification sink failed")

func newSinkClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func postJSON(client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrSinkFailed, resp.StatusCode)
	}
	return nil
}

// SlackSink posts a block-formatted message to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
}

// NewSlackSink creates a new SlackSink instance
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     newSinkClient(),
	}
}

// Name identifies the sink in logs
func (s *SlackSink) Name() string { return "slack" }

// Send delivers the notification to the Slack webhook
func (s *SlackSink) Send(doc *models.Email, category string) error {
	from := doc.From()
	message := map[string]interface{}{
		"text": fmt.Sprintf("New %q Email", category),
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Email Received", category),
				},
			},
			{
				"type": "section",
				"fields": []map[string]interface{}{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("*From:*\n%s <%s>", from.Name, from.Address),
					},
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("*Subject:*\n%s", doc.Subject),
					},
				},
			},
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Preview:*\n%s", bodyPreview(doc.Body)),
				},
			},
		},
	}

	return postJSON(s.client, s.webhookURL, message)
}

// WebhookSink posts the generic JSON notification payload to an arbitrary
// HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a new WebhookSink instance
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: newSinkClient(),
	}
}

// Name identifies the sink in logs
func (w *WebhookSink) Name() string { return "webhook" }

// Send delivers the notification to the webhook endpoint
func (w *WebhookSink) Send(doc *models.Email, category string) error {
	return postJSON(w.client, w.url, newPayload(doc, category))
}
