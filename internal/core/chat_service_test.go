package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/animechat/backend/internal/store"
)

// fakeCompletionClient records the prompt it was given and returns a canned
// reply or error.
type fakeCompletionClient struct {
	response string
	err      error
	calls    int
	prompt   []openai.ChatCompletionMessage
}

func (f *fakeCompletionClient) Complete(_ context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	f.calls++
	f.prompt = messages
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestChatService(t *testing.T, llm CompletionClient) (*ChatService, *store.SQLiteStore) {
	t.Helper()
	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })
	return NewChatService(dbStore, llm, zap.NewNop()), dbStore
}

func TestSendMessageCreatesConversationWhenNoneGiven(t *testing.T) {
	llm := &fakeCompletionClient{response: "watch Cowboy Bebop"}
	svc, dbStore := newTestChatService(t, llm)

	userID, err := dbStore.CreateUser("alice", "alice@example.com", "h")
	require.NoError(t, err)

	first, err := svc.SendMessage(context.Background(), userID, nil, "recommend me something")
	require.NoError(t, err)
	assert.Equal(t, "watch Cowboy Bebop", first.Response)

	// Every id-less call gets its own conversation, never an implicit reuse.
	second, err := svc.SendMessage(context.Background(), userID, nil, "something else")
	require.NoError(t, err)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)

	conversations, err := dbStore.GetUserConversations(userID)
	require.NoError(t, err)
	assert.Len(t, conversations, 2)
	assert.Contains(t, conversations[0].Title, "Chat ")
}

func TestSendMessagePromptAssembly(t *testing.T) {
	llm := &fakeCompletionClient{response: "try Frieren"}
	svc, dbStore := newTestChatService(t, llm)

	userID, err := dbStore.CreateUser("alice", "alice@example.com", "h")
	require.NoError(t, err)
	conv, err := dbStore.CreateConversation(userID, "Test")
	require.NoError(t, err)
	_, err = dbStore.AddMessage(conv.ID, store.RoleUser, "I like fantasy")
	require.NoError(t, err)
	_, err = dbStore.AddMessage(conv.ID, store.RoleAssistant, "noted!")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), userID, &conv.ID, "anything slow paced?")
	require.NoError(t, err)

	require.Len(t, llm.prompt, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, llm.prompt[0].Role)
	assert.Equal(t, systemPrompt, llm.prompt[0].Content)
	assert.Equal(t, "I like fantasy", llm.prompt[1].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, llm.prompt[2].Role)
	assert.Equal(t, "anything slow paced?", llm.prompt[3].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, llm.prompt[3].Role)
}

func TestSendMessagePersistsBothTurns(t *testing.T) {
	llm := &fakeCompletionClient{response: "try Mushishi"}
	svc, dbStore := newTestChatService(t, llm)

	userID, err := dbStore.CreateUser("alice", "alice@example.com", "h")
	require.NoError(t, err)
	conv, err := dbStore.CreateConversation(userID, "Test")
	require.NoError(t, err)

	result, err := svc.SendMessage(context.Background(), userID, &conv.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, result.ConversationID)

	messages, err := dbStore.GetConversationMessages(conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, "try Mushishi", messages[1].Content)
}

func TestSendMessageCompletionFailurePersistsNothing(t *testing.T) {
	llm := &fakeCompletionClient{err: errors.New("upstream unavailable")}
	svc, dbStore := newTestChatService(t, llm)

	userID, err := dbStore.CreateUser("alice", "alice@example.com", "h")
	require.NoError(t, err)
	conv, err := dbStore.CreateConversation(userID, "Test")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), userID, &conv.ID, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletion)

	messages, err := dbStore.GetConversationMessages(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, messages, "a failed turn must leave no rows behind")
}

func TestSendMessageUnknownOrForeignConversation(t *testing.T) {
	llm := &fakeCompletionClient{response: "irrelevant"}
	svc, dbStore := newTestChatService(t, llm)

	aliceID, err := dbStore.CreateUser("alice", "alice@example.com", "h")
	require.NoError(t, err)
	bobID, err := dbStore.CreateUser("bob", "bob@example.com", "h")
	require.NoError(t, err)
	bobConv, err := dbStore.CreateConversation(bobID, "Bob's")
	require.NoError(t, err)

	// Someone else's conversation reads the same as a missing one.
	_, err = svc.SendMessage(context.Background(), aliceID, &bobConv.ID, "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	missingID := int64(9999)
	_, err = svc.SendMessage(context.Background(), aliceID, &missingID, "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.Zero(t, llm.calls, "no completion call should happen for an unresolved conversation")
}
