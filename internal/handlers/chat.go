package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ukydev/fleet-control/internal/assistant"
	"github.com/ukydev/fleet-control/internal/models"
)

// Assistant answers chat queries.
type Assistant interface {
	Handle(ctx context.Context, query string) ([]models.ChatMessage, error)
}

// Transcript exposes the chat history.
type Transcript interface {
	Chat() []models.ChatMessage
}

// ChatHandler serves the assistant transcript and accepts new queries.
type ChatHandler struct {
	assistant  Assistant
	transcript Transcript
}

// NewChatHandler creates a chat handler.
func NewChatHandler(a Assistant, t Transcript) *ChatHandler {
	return &ChatHandler{assistant: a, transcript: t}
}

// ChatRequest is one operator query.
type ChatRequest struct {
	Message string `json:"message"`
}

// History returns the whole transcript.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.transcript.Chat())
}

// Send forwards a query to the assistant and returns the messages it appended.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req ChatRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	msgs, err := h.assistant.Handle(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyQuery) {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		http.Error(w, "Assistant failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
