package repository

import (
	"errors"

	"aivision/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository defines the interface for user account operations.
type UserRepository interface {
	// Create operations
	Insert(user *models.User) error

	// Read operations
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// MessageRepository defines the interface for chat history operations.
type MessageRepository interface {
	// Create operations
	Insert(msg *models.Message) error

	// Read operations
	ListByUser(userID string) ([]models.Message, error)

	// Delete operations
	DeleteByUser(userID string) error
}
