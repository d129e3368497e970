package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-control/internal/assistant"
	"github.com/ukydev/fleet-control/internal/models"
)

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) Handle(ctx context.Context, query string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, query)
	msgs, _ := args.Get(0).([]models.ChatMessage)
	return msgs, args.Error(1)
}

func chatMux(a Assistant, t Transcript) *http.ServeMux {
	h := NewChatHandler(a, t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat", h.History)
	mux.HandleFunc("POST /api/chat", h.Send)
	return mux
}

func TestChatHandler_History(t *testing.T) {
	store := newTestStore(t)
	w := do(t, chatMux(&mockAssistant{}, store), http.MethodGet, "/api/chat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ChatMessage
	decode(t, w, &msgs)
	assert.Len(t, msgs, 3)
}

func TestChatHandler_Send(t *testing.T) {
	a := &mockAssistant{}
	a.On("Handle", mock.Anything, "list routes").
		Return([]models.ChatMessage{{ID: "msg-1", Role: models.ChatAssistant, Content: "Here are the routes"}}, nil)

	w := do(t, chatMux(a, newTestStore(t)), http.MethodPost, "/api/chat", ChatRequest{Message: "list routes"})
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ChatMessage
	decode(t, w, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-1", msgs[0].ID)
	a.AssertExpectations(t)
}

func TestChatHandler_SendErrors(t *testing.T) {
	a := &mockAssistant{}
	a.On("Handle", mock.Anything, "").Return(nil, assistant.ErrEmptyQuery)
	a.On("Handle", mock.Anything, "boom").Return(nil, errors.New("boom"))
	mux := chatMux(a, newTestStore(t))

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/chat", ChatRequest{}).Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, mux, http.MethodPost, "/api/chat", ChatRequest{Message: "boom"}).Code)
}

func TestChatHandler_WithOrchestrator(t *testing.T) {
	store := newTestStore(t)
	o := assistant.New(store, nil)
	mux := chatMux(o, store)

	w := do(t, mux, http.MethodPost, "/api/chat", ChatRequest{Message: "show me all warehouses"})
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ChatMessage
	decode(t, w, &msgs)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Table)
	assert.Equal(t, models.TableWarehouses, msgs[0].Table.Kind)
	assert.Len(t, store.Chat(), 5)
}
