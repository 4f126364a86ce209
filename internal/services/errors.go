package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Davzs/adezz/internal/db"
)

var (
	// ErrNotFound: the referenced entity is absent or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthorized: the caller fails an ownership or membership check.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotAMember: the sender is not a participant of an active conversation.
	ErrNotAMember = errors.New("not a member of this conversation")
	// ErrAlreadyExists: a unique field (email) is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidCredentials: email/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflictDuringCreate: a find-or-create kept colliding with concurrent writers.
	ErrConflictDuringCreate = errors.New("conflict during create")
	// ErrPersistenceUnavailable: the database could not be reached.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrInvalidState: the entity is not in a state that allows the operation.
	ErrInvalidState = errors.New("invalid state")
)

// storeError wraps a driver error, translating no-documents into ErrNotFound
// and connectivity failures into ErrPersistenceUnavailable.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case db.IsUnavailableError(err):
		return fmt.Errorf("%s: %w: %v", op, ErrPersistenceUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
