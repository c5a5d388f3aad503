package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mining-ledger-go/internal/models"

	"go.uber.org/zap"
)

// Sender hands one queued email to a delivery provider
type Sender interface {
	SendEmail(ctx context.Context, email models.EmailNotification) error
}

type emailRequest struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Subject   string          `json:"subject"`
	Template  string          `json:"template"`
	Variables json.RawMessage `json:"variables"`
}

// HTTPSender posts emails as JSON to a transactional email API
type HTTPSender struct {
	client   *http.Client
	endpoint string
	token    string
	from     string
}

func NewHTTPSender(client *http.Client, endpoint, token, from string) *HTTPSender {
	return &HTTPSender{
		client:   client,
		endpoint: endpoint,
		token:    token,
		from:     from,
	}
}

func (s *HTTPSender) SendEmail(ctx context.Context, email models.EmailNotification) error {
	variables := json.RawMessage(email.Variables)
	if len(variables) == 0 {
		variables = json.RawMessage("{}")
	}

	body, err := json.Marshal(emailRequest{
		From:      s.from,
		To:        email.Recipient,
		Subject:   email.Subject,
		Template:  email.Template,
		Variables: variables,
	})
	if err != nil {
		return fmt.Errorf("unable to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// LogSender writes emails to the log instead of delivering them
type LogSender struct{}

func (LogSender) SendEmail(_ context.Context, email models.EmailNotification) error {
	zap.L().Info("Email (log only)",
		zap.String("email_id", email.Id),
		zap.String("recipient", email.Recipient),
		zap.String("subject", email.Subject),
		zap.String("template", email.Template),
		zap.String("variables", email.Variables))
	return nil
}
