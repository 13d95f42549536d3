package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/animechat/backend/internal/store"
)

// Persona replayed as the first message of every completion request.
const systemPrompt = "You are a Anime Expert and will help the user find the best anime for them."

var (
	// ErrConversationNotFound covers both a missing conversation and one owned
	// by another user; callers cannot tell the two apart.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrCompletion marks a failure of the upstream completion capability.
	ErrCompletion = errors.New("completion request failed")
)

type ChatService struct {
	dbStore *store.SQLiteStore
	llm     CompletionClient
	logger  *zap.Logger
}

func NewChatService(db *store.SQLiteStore, llm CompletionClient, logger *zap.Logger) *ChatService {
	return &ChatService{
		dbStore: db,
		llm:     llm,
		logger:  logger,
	}
}

type ChatResult struct {
	Response       string `json:"response"`
	ConversationID int64  `json:"conversation_id"`
}

// SendMessage runs one chat turn: resolve the target conversation, replay its
// history to the LLM with the new user message appended, then persist the user
// turn and the assistant turn. The two inserts are independent statements; a
// crash between them leaves a user message without a reply, which the next
// turn simply replays as history.
func (s *ChatService) SendMessage(ctx context.Context, userID int64, conversationID *int64, content string) (*ChatResult, error) {
	var conv *store.Conversation
	var err error

	if conversationID == nil {
		title := "Chat " + time.Now().Format("2006-01-02 15:04")
		conv, err = s.dbStore.CreateConversation(userID, title)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
	} else {
		conv, err = s.dbStore.GetConversationByID(*conversationID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
	}

	history, err := s.dbStore.GetConversationMessages(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})

	response, err := s.llm.Complete(ctx, messages)
	if err != nil {
		s.logger.Error("completion failed",
			zap.Int64("conversation_id", conv.ID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		// Nothing is persisted for a failed turn.
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	if _, err := s.dbStore.AddMessage(conv.ID, store.RoleUser, content); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	if _, err := s.dbStore.AddMessage(conv.ID, store.RoleAssistant, response); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	return &ChatResult{Response: response, ConversationID: conv.ID}, nil
}
