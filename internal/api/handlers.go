package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/animechat/backend/internal/auth"
	"github.com/animechat/backend/internal/core"
	"github.com/animechat/backend/internal/store"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	usernameKey contextKey = "username"
)

type APIHandler struct {
	dbStore     *store.SQLiteStore
	chatService *core.ChatService
	logger      *zap.Logger
}

func NewAPIHandler(db *store.SQLiteStore, cs *core.ChatService, logger *zap.Logger) *APIHandler {
	return &APIHandler{dbStore: db, chatService: cs, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

// JWTAuthMiddleware validates the bearer token and resolves the caller to a
// user row before any other store access happens.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, username, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := h.dbStore.GetUserByID(userID)
		if err != nil {
			h.logger.Error("failed to resolve token user", zap.Int64("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to process user identity")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		ctx = context.WithValue(ctx, usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth handlers

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email and password are required")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	userID, err := h.dbStore.CreateUser(req.Username, req.Email, passwordHash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "Username or email already registered")
			return
		}
		h.logger.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user_id": userID,
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.dbStore.GetUserByUsername(req.Username)
	if err != nil {
		h.logger.Error("failed to look up user", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process login")
		return
	}
	// Unknown user and wrong password are deliberately the same response.
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      user.ID,
		"username":     user.Username,
	})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)

	user, err := h.dbStore.GetUserByID(userID)
	if err != nil {
		h.logger.Error("failed to get user", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Conversation handlers

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)

	conversations, err := h.dbStore.GetUserConversations(userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)

	var req CreateConversationRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Title == "" {
		req.Title = "New Conversation"
	}

	conv, err := h.dbStore.CreateConversation(userID, req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"conversation_id": conv.ID,
		"title":           conv.Title,
	})
}

func conversationIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	return id, err == nil
}

type ConversationDetailResponse struct {
	*store.Conversation
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)
	conversationID, ok := conversationIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	conv, err := h.dbStore.GetConversationByID(conversationID, userID)
	if err != nil {
		h.logger.Error("failed to get conversation", zap.Int64("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get conversation")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	messages, err := h.dbStore.GetConversationMessages(conversationID)
	if err != nil {
		h.logger.Error("failed to get messages", zap.Int64("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get messages")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	writeJSON(w, http.StatusOK, ConversationDetailResponse{Conversation: conv, Messages: messages})
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) UpdateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)
	conversationID, ok := conversationIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	updated, err := h.dbStore.UpdateConversationTitle(conversationID, userID, req.Title)
	if err != nil {
		h.logger.Error("failed to update conversation", zap.Int64("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update conversation")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation updated successfully"})
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)
	conversationID, ok := conversationIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	deleted, err := h.dbStore.DeleteConversation(conversationID, userID)
	if err != nil {
		h.logger.Error("failed to delete conversation", zap.Int64("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
}

// Chat handler

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	result, err := h.chatService.SendMessage(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.logger.Error("chat turn failed", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate response")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
