package chat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clarity-ai/backend/internal/auth/middleware"
	"github.com/clarity-ai/backend/internal/logger"
	"github.com/clarity-ai/backend/internal/store"
	"github.com/clarity-ai/backend/internal/utils"
	"go.uber.org/zap"
)

// Handler handles the chat proxy and the conversation/message endpoints.
type Handler struct {
	completer     *Completer
	conversations *store.Conversations
	messages      *store.Messages
	now           func() time.Time
}

func NewHandler(completer *Completer, conversations *store.Conversations, messages *store.Messages) *Handler {
	return &Handler{
		completer:     completer,
		conversations: conversations,
		messages:      messages,
		now:           time.Now,
	}
}

// HandleChat handles POST /api/chat. Pure pass-through: no state is read or
// written here.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Message string `json:"message"`
		History []Turn `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		utils.WriteHTTPError(w, utils.Validation("Message is required"))
		return
	}

	if !h.completer.Configured() {
		utils.WriteHTTPError(w, utils.Unavailable("Chat completion is not configured"))
		return
	}

	reply, err := h.completer.Complete(r.Context(), body.Message, body.History)
	if err != nil {
		utils.WriteHTTPError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// HandleConversations handles /api/conversations, scoped to the
// authenticated user. PATCH and DELETE take the conversation id as a query
// parameter.
func (h *Handler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		utils.WriteHTTPError(w, utils.Unauthenticated("Unauthorized"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		rows, err := h.conversations.ListByUser(r.Context(), info.UserID)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, rows)

	case http.MethodPost:
		var body struct {
			Title        string `json:"title"`
			ModelVersion string `json:"modelVersion"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
			utils.WriteHTTPError(w, utils.Validation("title required"))
			return
		}
		conv, err := h.conversations.Create(r.Context(), info.UserID, body.Title, body.ModelVersion)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusCreated, conv)

	case http.MethodPatch:
		id := r.URL.Query().Get("id")
		if id == "" {
			utils.WriteHTTPError(w, utils.Validation("id required"))
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if err := h.conversations.Touch(r.Context(), id, info.UserID, body.Title, h.now()); err != nil {
			h.writeStoreError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			utils.WriteHTTPError(w, utils.Validation("id required"))
			return
		}
		if err := h.conversations.Delete(r.Context(), id, info.UserID); err != nil {
			h.writeStoreError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMessages handles /api/messages.
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		utils.WriteHTTPError(w, utils.Unauthenticated("Unauthorized"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		conversationID := r.URL.Query().Get("conversationId")
		if conversationID == "" {
			utils.WriteHTTPError(w, utils.Validation("conversationId required"))
			return
		}
		rows, err := h.messages.ListByConversation(r.Context(), conversationID)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, rows)

	case http.MethodPost:
		var body struct {
			ConversationID string `json:"conversationId"`
			Role           string `json:"role"`
			Content        string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
			body.ConversationID == "" || body.Role == "" || body.Content == "" {
			utils.WriteHTTPError(w, utils.Validation("conversationId, role, and content required"))
			return
		}
		msg, err := h.messages.Append(r.Context(), body.ConversationID, body.Role, body.Content)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		// A new message bumps the parent conversation so the updated_at
		// ordering reflects recent activity. The message itself is already
		// stored, so a failed bump only costs ordering.
		if err := h.conversations.Touch(r.Context(), body.ConversationID, info.UserID, "", h.now()); err != nil {
			logger.Warn("failed to touch conversation after message insert",
				zap.String("conversation_id", body.ConversationID),
				zap.Error(err))
		}
		utils.WriteJSON(w, http.StatusCreated, msg)

	default:
		utils.WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	logger.Error("records store failure", zap.Error(err))
	utils.WriteHTTPError(w, utils.Internal(err))
}
