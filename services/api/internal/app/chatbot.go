package app

import (
	"context"
	"fmt"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
)

// ChatbotReply is the fixed assistant answer until a model is connected.
const ChatbotReply = "Terima kasih atas pertanyaan Anda tentang literasi syariah. Fitur chatbot AI sedang dalam pengembangan."

type ChatMessageInput struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
}

type ChatReply struct {
	SessionID string `json:"sessionId"`
	Response  string `json:"response"`
}

// SendChatMessage stores the user's message and the assistant reply in the
// caller's session.
func (a *App) SendChatMessage(ctx context.Context, uid string, in ChatMessageInput) (ChatReply, error) {
	if err := a.check(in, "message and sessionId are required"); err != nil {
		return ChatReply{}, err
	}
	now := a.clock()
	session := domain.ChatSession{
		ID:          in.SessionID,
		UserID:      uid,
		LastMessage: in.Message,
		UpdatedAt:   domain.At(now),
	}
	question := domain.ChatMessage{
		ID:        util.NewID(),
		SessionID: in.SessionID,
		UserID:    uid,
		Role:      domain.ChatRoleUser,
		Content:   in.Message,
		Timestamp: domain.At(now),
	}
	answer := domain.ChatMessage{
		ID:        util.NewID(),
		SessionID: in.SessionID,
		UserID:    uid,
		Role:      domain.ChatRoleAssistant,
		Content:   ChatbotReply,
		Timestamp: domain.At(now),
	}
	if err := a.store.AppendChatMessages(ctx, session, question, answer); err != nil {
		return ChatReply{}, fmt.Errorf("append chat messages: %w", err)
	}
	return ChatReply{SessionID: in.SessionID, Response: ChatbotReply}, nil
}

// ChatMessages returns the caller's session log, oldest first.
func (a *App) ChatMessages(ctx context.Context, uid, sessionID string) ([]domain.ChatMessage, error) {
	msgs, err := a.store.ListChatMessages(ctx, uid, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return msgs, nil
}
