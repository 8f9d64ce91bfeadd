package sqlite

import (
	"fmt"
	"time"

	"aivision/internal/models"

	"github.com/google/uuid"
)

// MessageRepository implements repository.MessageRepository for SQLite.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert appends a message to the user's history. ID and CreatedAt are
// filled in when empty.
func (r *MessageRepository) Insert(msg *models.Message) error {
	r.db.Lock()
	defer r.db.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	// seq keeps insertion order for messages created within the same instant.
	_, err := r.db.Conn().Exec(`
		INSERT INTO messages (id, user_id, content, role, created_at, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE user_id = ?))
	`, msg.ID, msg.UserID, msg.Content, msg.Role, msg.CreatedAt, msg.UserID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListByUser returns a user's messages, oldest first.
func (r *MessageRepository) ListByUser(userID string) ([]models.Message, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, user_id, content, role, created_at
		FROM messages WHERE user_id = ?
		ORDER BY created_at ASC, seq ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Content, &msg.Role, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// DeleteByUser removes a user's entire chat history.
func (r *MessageRepository) DeleteByUser(userID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
