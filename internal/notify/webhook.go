package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/earshot-audio/earshot/internal/util"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

// webhookTimeout bounds a single delivery attempt.
const webhookTimeout = 10 * time.Second

// WebhookPayload is the body posted to the configured webhook endpoint.
type WebhookPayload struct {
	Event     string `json:"event"`
	Keyword   string `json:"keyword,omitempty"`
	Index     int    `json:"index,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SendDetectionWebhook posts a wakeword detection to the webhook URL.
func SendDetectionWebhook(webhookURL string, det wakeword.Detection) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "wakeword_detected",
		Keyword:   det.Keyword,
		Index:     det.Index,
		Timestamp: det.Timestamp.UTC().Format(time.RFC3339),
	})
}

// SendTestWebhook sends a test notification so a new endpoint can be verified.
func SendTestWebhook(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from earshot",
		Timestamp: util.TimestampUTC(),
	})
}

// sendWebhook delivers one payload, skipping silently when unconfigured.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: webhookTimeout}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
