// Package store reaches the records store over its PostgREST API. All
// coordination state (profiles, 2FA challenges, conversations, messages)
// lives there; nothing is cached in process.
package store

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

	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// REST is a thin client for the PostgREST endpoint, authenticated with the
// service-role key.
type REST struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewREST(cfg *config.SupabaseConfig) *REST {
	return &REST{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey:  cfg.ServiceKey,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// client attaches the service key as a bearer token on every request.
func (r *REST) client(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: r.apiKey,
		TokenType:   "Bearer",
	}))
}

// StatusError reports a non-2xx PostgREST response.
type StatusError struct {
	Method string
	Table  string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store: %s %s returned %d", e.Method, e.Table, e.Status)
}

// Select runs a filtered read and decodes the result rows into dest.
// Reads are idempotent, so a transport failure is retried once.
func (r *REST) Select(ctx context.Context, table string, query url.Values, dest interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := r.newRequest(ctx, http.MethodGet, table, query, nil)
		if err != nil {
			return err
		}

		resp, err := r.client(ctx).Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		err = decodeRows(resp, table, dest)
		if err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("store: select %s failed: %w", table, lastErr)
}

// Insert writes a row without asking for it back.
func (r *REST) Insert(ctx context.Context, table string, record interface{}) error {
	req, err := r.newRequest(ctx, http.MethodPost, table, nil, record)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return r.do(ctx, req, table)
}

// InsertReturning writes a row and decodes the stored representation,
// including store-generated columns, into dest.
func (r *REST) InsertReturning(ctx context.Context, table string, record, dest interface{}) error {
	req, err := r.newRequest(ctx, http.MethodPost, table, nil, record)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := r.client(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("store: insert %s failed: %w", table, err)
	}
	return decodeRows(resp, table, dest)
}

// Patch updates the rows matched by query.
func (r *REST) Patch(ctx context.Context, table string, query url.Values, updates interface{}) error {
	req, err := r.newRequest(ctx, http.MethodPatch, table, query, updates)
	if err != nil {
		return err
	}
	return r.do(ctx, req, table)
}

// Delete removes the rows matched by query.
func (r *REST) Delete(ctx context.Context, table string, query url.Values) error {
	req, err := r.newRequest(ctx, http.MethodDelete, table, query, nil)
	if err != nil {
		return err
	}
	return r.do(ctx, req, table)
}

func (r *REST) newRequest(ctx context.Context, method, table string, query url.Values, body interface{}) (*http.Request, error) {
	u := r.baseURL + "/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", r.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (r *REST) do(ctx context.Context, req *http.Request, table string) error {
	resp, err := r.client(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s failed: %w", strings.ToLower(req.Method), table, err)
	}
	drain(resp)
	if resp.StatusCode >= 400 {
		return &StatusError{Method: req.Method, Table: table, Status: resp.StatusCode}
	}
	return nil
}

func decodeRows(resp *http.Response, table string, dest interface{}) error {
	defer drain(resp)
	if resp.StatusCode >= 400 {
		return &StatusError{Method: resp.Request.Method, Table: table, Status: resp.StatusCode}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("store: failed to decode %s rows: %w", table, err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		logger.Debug("Failed to close response body", zap.Error(err))
	}
}
