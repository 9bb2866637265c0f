package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/earshot-audio/earshot/internal/config"
	"github.com/earshot-audio/earshot/internal/util"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

const (
	graphBaseURL     = "https://graph.microsoft.com/v1.0"
	graphScope       = "https://graph.microsoft.com/.default"
	tokenURLTemplate = "https://login.microsoftonline.com/%s/oauth2/v2.0/token" //nolint:gosec // URL template, not a credential

	graphTimeout = 30 * time.Second
)

// GraphClient sends emails via the Microsoft Graph API using application
// (client-credentials) auth.
type GraphClient struct {
	fromAddress string
	httpClient  *http.Client
}

// NewGraphClient creates an email client from the notification settings.
func NewGraphClient(cfg *config.EmailConfig) (*GraphClient, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph credentials are incomplete")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("from address (shared mailbox) is required")
	}

	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf(tokenURLTemplate, cfg.TenantID),
		Scopes:       []string{graphScope},
	}

	base := &http.Client{Timeout: graphTimeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &GraphClient{
		fromAddress: cfg.FromAddress,
		httpClient:  conf.Client(ctx),
	}, nil
}

type graphMailRequest struct {
	Message graphMessage `json:"message"`
}

type graphMessage struct {
	Subject      string           `json:"subject"`
	Body         graphBody        `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

// SendDetectionMail emails a wakeword alert to the configured recipients.
func (c *GraphClient) SendDetectionMail(recipients string, det wakeword.Detection) error {
	subject := "[ALERT] Wakeword Detected - earshot"
	body := fmt.Sprintf(
		"The capture daemon heard its trigger word.\n\n"+
			"Keyword: %s\n"+
			"Time:    %s\n",
		det.Keyword, util.HumanTime(),
	)
	return c.SendMail(ParseRecipients(recipients), subject, body)
}

// SendMail sends a plain-text mail from the shared mailbox.
func (c *GraphClient) SendMail(recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	req := graphMailRequest{
		Message: graphMessage{
			Subject: subject,
			Body:    graphBody{ContentType: "Text", Content: body},
		},
	}
	for _, r := range recipients {
		req.Message.ToRecipients = append(req.Message.ToRecipients,
			graphRecipient{EmailAddress: graphEmailAddress{Address: r}})
	}

	payload, err := json.Marshal(&req)
	if err != nil {
		return util.WrapError("marshal mail request", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", graphBaseURL, url.PathEscape(c.fromAddress))
	resp, err := c.httpClient.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return util.WrapError("call Graph sendMail", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph sendMail returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// ParseRecipients splits a comma-separated recipient list, dropping empties.
func ParseRecipients(recipients string) []string {
	var out []string
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
