// Package notify delivers wakeword detection alerts over the configured
// channels: a JSON webhook and Microsoft Graph email.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/earshot-audio/earshot/internal/config"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

// DefaultCooldown suppresses repeat alerts for the same channel when the
// keyword fires in quick succession.
const DefaultCooldown = 60 * time.Second

// DetectionNotifier fans a detection out to all configured channels, rate
// limited per channel. Delivery happens on short-lived goroutines; failures
// are logged and never reach the capture pipeline.
type DetectionNotifier struct {
	cfg *config.Config

	mu          sync.Mutex
	lastWebhook time.Time
	lastEmail   time.Time
	graphClient *GraphClient
}

// NewDetectionNotifier returns a notifier backed by the live configuration.
func NewDetectionNotifier(cfg *config.Config) *DetectionNotifier {
	return &DetectionNotifier{cfg: cfg}
}

// HandleDetection delivers alerts for one detection.
func (n *DetectionNotifier) HandleDetection(det wakeword.Detection) {
	snap := n.cfg.Snapshot()
	cooldown := DefaultCooldown
	if snap.CooldownSeconds > 0 {
		cooldown = time.Duration(snap.CooldownSeconds) * time.Second
	}

	now := time.Now()
	n.mu.Lock()
	sendWebhook := snap.HasWebhook() && now.Sub(n.lastWebhook) >= cooldown
	if sendWebhook {
		n.lastWebhook = now
	}
	sendEmail := snap.HasEmail() && now.Sub(n.lastEmail) >= cooldown
	if sendEmail {
		n.lastEmail = now
	}
	n.mu.Unlock()

	if sendWebhook {
		go logResult("detection webhook", func() error {
			return SendDetectionWebhook(snap.WebhookURL, det)
		})
	}
	if sendEmail {
		go logResult("detection email", func() error {
			return n.sendDetectionEmail(&snap.Email, det)
		})
	}
}

// getOrCreateGraphClient returns the cached Graph client, creating it on
// first use.
func (n *DetectionNotifier) getOrCreateGraphClient(cfg *config.EmailConfig) (*GraphClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}
	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

func (n *DetectionNotifier) sendDetectionEmail(cfg *config.EmailConfig, det wakeword.Detection) error {
	client, err := n.getOrCreateGraphClient(cfg)
	if err != nil {
		return err
	}
	return client.SendDetectionMail(cfg.Recipients, det)
}

// logResult runs a delivery function and logs the outcome.
func logResult(channel string, fn func() error) {
	if err := fn(); err != nil {
		slog.Error("notification failed", "channel", channel, "error", err)
	} else {
		slog.Info("notification sent", "channel", channel)
	}
}
