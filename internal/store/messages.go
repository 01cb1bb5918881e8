package store

import (
	"context"
	"net/url"
	"time"
)

// Message is a single chat turn stored under a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Messages is pass-through CRUD over the messages table.
type Messages struct {
	rest *REST
}

func NewMessages(rest *REST) *Messages {
	return &Messages{rest: rest}
}

func (m *Messages) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	query := url.Values{
		"conversation_id": {"eq." + conversationID},
		"order":           {"created_at.asc"},
	}
	rows := []Message{}
	if err := m.rest.Select(ctx, "messages", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *Messages) Append(ctx context.Context, conversationID, role, content string) (*Message, error) {
	record := map[string]interface{}{
		"conversation_id": conversationID,
		"role":            role,
		"content":         content,
	}
	var rows []Message
	if err := m.rest.InsertReturning(ctx, "messages", record, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &StatusError{Method: "POST", Table: "messages", Status: 500}
	}
	return &rows[0], nil
}
