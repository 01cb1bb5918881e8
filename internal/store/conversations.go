package store

import (
	"context"
	"net/url"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 100

// Conversation is an owner-scoped chat thread.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversations is pass-through CRUD over the conversations table. Every
// operation is scoped to the owning user id taken from the validated token.
type Conversations struct {
	rest *REST
}

func NewConversations(rest *REST) *Conversations {
	return &Conversations{rest: rest}
}

func (c *Conversations) ListByUser(ctx context.Context, userID string) ([]Conversation, error) {
	query := url.Values{
		"user_id": {"eq." + userID},
		"order":   {"updated_at.desc"},
	}
	rows := []Conversation{}
	if err := c.rest.Select(ctx, "conversations", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Conversations) Create(ctx context.Context, userID, title, modelVersion string) (*Conversation, error) {
	if modelVersion == "" {
		modelVersion = "3.0"
	}
	record := map[string]interface{}{
		"user_id":       userID,
		"title":         truncate(title, maxTitleLength),
		"model_version": modelVersion,
	}
	var rows []Conversation
	if err := c.rest.InsertReturning(ctx, "conversations", record, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &StatusError{Method: "POST", Table: "conversations", Status: 500}
	}
	return &rows[0], nil
}

// Touch renames the conversation when title is non-empty and always bumps
// updated_at so the list ordering reflects recent activity.
func (c *Conversations) Touch(ctx context.Context, id, userID, title string, now time.Time) error {
	updates := map[string]interface{}{
		"updated_at": now.UTC().Format(time.RFC3339),
	}
	if title != "" {
		updates["title"] = truncate(title, maxTitleLength)
	}
	query := url.Values{
		"id":      {"eq." + id},
		"user_id": {"eq." + userID},
	}
	return c.rest.Patch(ctx, "conversations", query, updates)
}

func (c *Conversations) Delete(ctx context.Context, id, userID string) error {
	query := url.Values{
		"id":      {"eq." + id},
		"user_id": {"eq." + userID},
	}
	return c.rest.Delete(ctx, "conversations", query)
}

// truncate caps s at max bytes without splitting a multibyte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
