// Package notifier delivers 2FA codes over the EmailJS send API.
//
// Delivery is best-effort: the pending challenge is what the verify step
// checks, not the email, so a failed send is logged and otherwise discarded.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/logger"
	"go.uber.org/zap"
)

const dispatchTimeout = 10 * time.Second

type templateParams struct {
	ToEmail string `json:"to_email"`
	ToName  string `json:"to_name"`
	Code    string `json:"code"`
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken"`
	TemplateParams templateParams `json:"template_params"`
}

// Client talks to the EmailJS REST API.
type Client struct {
	cfg  config.EmailJSConfig
	http *http.Client
}

func NewClient(cfg *config.EmailJSConfig) *Client {
	return &Client{
		cfg: *cfg,
		http: &http.Client{
			Timeout: dispatchTimeout,
		},
	}
}

// SendCode delivers one templated 2FA code message.
func (c *Client) SendCode(ctx context.Context, toEmail, toName, code string) error {
	payload := sendRequest{
		ServiceID:   c.cfg.ServiceID,
		TemplateID:  c.cfg.TemplateID,
		UserID:      c.cfg.PublicKey,
		AccessToken: c.cfg.PrivateKey,
		TemplateParams: templateParams{
			ToEmail: toEmail,
			ToName:  toName,
			Code:    code,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email send returned %d", resp.StatusCode)
	}
	return nil
}

// DispatchCode sends in a detached goroutine and discards the outcome, so
// the caller's response never waits on the email provider.
func (c *Client) DispatchCode(toEmail, toName, code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := c.SendCode(ctx, toEmail, toName, code); err != nil {
			logger.Warn("2FA code delivery failed", zap.String("email", toEmail), zap.Error(err))
		}
	}()
}
