package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (username or email already taken). The existing row is left untouched.
var ErrDuplicate = errors.New("record already exists")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	// Foreign keys are off by default in SQLite; the conversations -> messages
	// cascade depends on them.
	if !strings.Contains(dataSourceName, "_foreign_keys") {
		dataSourceName += "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        title TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id INTEGER NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('system', 'user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id) ON DELETE CASCADE
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// User methods

func (s *SQLiteStore) CreateUser(username, email, passwordHash string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, email, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted user id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	return s.queryUser("SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE id = ?", id)
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	return s.queryUser("SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE username = ?", username)
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.queryUser("SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = ?", email)
}

func (s *SQLiteStore) queryUser(query string, arg interface{}) (*User, error) {
	var user User
	err := s.db.QueryRow(query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Conversation methods

func (s *SQLiteStore) CreateConversation(userID int64, title string) (*Conversation, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO conversations (user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		userID, title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted conversation id: %w", err)
	}
	return &Conversation{ID: id, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetConversationByID is owner-scoped: a conversation id alone never authorizes
// access. A row owned by someone else is a plain miss.
func (s *SQLiteStore) GetConversationByID(conversationID, userID int64) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRow(
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?",
		conversationID, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found or not owned
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) GetUserConversations(userID int64) ([]Conversation, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *SQLiteStore) UpdateConversationTitle(conversationID, userID int64, title string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		title, time.Now().UTC(), conversationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update conversation title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteConversation removes the conversation and, via the foreign key cascade,
// every message in it.
func (s *SQLiteStore) DeleteConversation(conversationID, userID int64) (bool, error) {
	res, err := s.db.Exec(
		"DELETE FROM conversations WHERE id = ? AND user_id = ?",
		conversationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// Message methods

// AddMessage inserts one turn and bumps the conversation's updated_at. The two
// statements run autocommit, not in a shared transaction.
func (s *SQLiteStore) AddMessage(conversationID int64, role, content string) (*Message, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO messages (conversation_id, role, content, timestamp) VALUES (?, ?, ?, ?)",
		conversationID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted message id: %w", err)
	}

	if _, err := s.db.Exec(
		"UPDATE conversations SET updated_at = ? WHERE id = ?",
		now, conversationID,
	); err != nil {
		return nil, fmt.Errorf("failed to bump conversation timestamp: %w", err)
	}

	return &Message{ID: id, ConversationID: conversationID, Role: role, Content: content, Timestamp: now}, nil
}

func (s *SQLiteStore) GetConversationMessages(conversationID int64) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT id, conversation_id, role, content, timestamp FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
