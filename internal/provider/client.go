// Package provider implements the client for the upstream identity provider
// (a Supabase GoTrue API). The service never mints or signs session tokens
// itself; every credential decision is delegated here.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrInvalidCredentials is returned on any provider rejection of a
	// password grant. The detailed upstream reason is never surfaced, to
	// avoid account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists is returned when account creation hits a duplicate email.
	ErrUserExists = errors.New("user already exists")

	// ErrTokenRejected is returned when introspection does not accept the
	// presented session token.
	ErrTokenRejected = errors.New("token rejected by provider")
)

// UpstreamError reports an unexpected identity-provider status.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.Status, e.Message)
}

// Metadata is the identity-claim data carried on the auth user record. It is
// the fallback source for names when no profile row exists.
type Metadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User is the provider's view of an account.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Metadata Metadata `json:"user_metadata"`
}

// Session is the result of a successful password grant.
type Session struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Client talks to the GoTrue auth API.
type Client struct {
	baseURL    string
	apiKey     string
	serviceKey string
	http       *http.Client
}

func NewClient(cfg *config.SupabaseConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.ServiceKey,
		serviceKey: cfg.ServiceKey,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// serviceClient returns an HTTP client that attaches the service-role key as
// a bearer token on every request, for the admin endpoints.
func (c *Client) serviceClient(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.serviceKey,
		TokenType:   "Bearer",
	}))
}

// PasswordGrant exchanges (email, password) for a session token and the
// provider's identity claims.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("password grant request failed: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode >= 500 {
		return nil, upstreamError(resp)
	}
	if resp.StatusCode >= 400 {
		// Wrong password, unknown account, unconfirmed email: all collapse
		// into one rejection.
		return nil, ErrInvalidCredentials
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// CreateUser provisions an account through the admin API with the email
// pre-confirmed, carrying the names as identity metadata.
func (c *Client) CreateUser(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	payload := map[string]interface{}{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": Metadata{FirstName: firstName, LastName: lastName},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.serviceClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("create user request failed: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode >= 400 {
		msg := upstreamMessage(resp)
		if strings.Contains(strings.ToLower(msg), "already") {
			return nil, ErrUserExists
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode created user: %w", err)
	}
	return &user, nil
}

// UpdatePassword sets a new password on the account through the admin API.
// Callers must have re-proven the current password first.
func (c *Client) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	body, err := json.Marshal(map[string]string{"password": newPassword})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/auth/v1/admin/users/"+userID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.serviceClient(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("update password request failed: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode >= 400 {
		return upstreamError(resp)
	}
	return nil
}

// Introspect asks the provider whether a session token is still live and, if
// so, whose it is. This is the only path that catches provider-side
// revocation; callers fall back to an offline decode when it fails.
//
// Introspection is an idempotent read, so a transport failure is retried once.
func (c *Client) Introspect(ctx context.Context, token string) (*User, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			closeBody(resp)
			return nil, ErrTokenRejected
		}

		var user User
		err = json.NewDecoder(resp.Body).Decode(&user)
		closeBody(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to decode introspection response: %w", err)
		}
		return &user, nil
	}
	return nil, fmt.Errorf("introspection request failed: %w", lastErr)
}

func upstreamMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.Status
	}
	for _, m := range []string{body.Message, body.Msg, body.Error} {
		if m != "" {
			return m
		}
	}
	return resp.Status
}

func upstreamError(resp *http.Response) error {
	return &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(resp)}
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		logger.Debug("Failed to close response body", zap.Error(err))
	}
}
