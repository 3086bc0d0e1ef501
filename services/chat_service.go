package services

import (
	"context"

	"collab-hub/domain"
	"collab-hub/repositories"
)

type IChatService interface {
	GetMessages(channel domain.Channel) ([]domain.Message, error)
	PostMessage(ctx context.Context, content, senderID string, channel domain.Channel) (domain.Message, error)
}

// ChatService is the HTTP-facing facade over the message store. The
// realtime path goes through the broker instead; a message posted over
// REST is persisted but not fanned out, matching the page-level UI
// that re-fetches history on navigation.
type ChatService struct {
	messages repositories.IMessageRepository
}

func NewChatService(messages repositories.IMessageRepository) *ChatService {
	return &ChatService{messages: messages}
}

// GetMessages returns the newest entries for a channel.
func (s *ChatService) GetMessages(channel domain.Channel) ([]domain.Message, error) {
	return s.messages.GetMessages(channel)
}

func (s *ChatService) PostMessage(ctx context.Context, content, senderID string, channel domain.Channel) (domain.Message, error) {
	return s.messages.PersistMessage(ctx, content, senderID, channel)
}
