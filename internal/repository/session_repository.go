package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"taskpilot/internal/model"
)

// SessionRepository persists which user is logged in per chat.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Load returns the stored user id for the chat, or "" when no session
// exists.
func (r *SessionRepository) Load(ctx context.Context, chatID int64) (string, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&session).Error
	switch {
	case err == nil:
		return session.UserID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("load session: %w", err)
	}
}

// Save records the user for the chat. Any non-empty user id is
// accepted; the service has no credential check and login always
// succeeds.
func (r *SessionRepository) Save(ctx context.Context, chatID int64, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	var session model.Session
	db := r.db.WithContext(ctx)
	err := db.Where("chat_id = ?", chatID).First(&session).Error
	switch {
	case err == nil:
		if err := db.Model(&session).Update("user_id", userID).Error; err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		session = model.Session{ChatID: chatID, UserID: userID}
		if err := db.Create(&session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find session: %w", err)
	}
}

// Clear removes the chat's session.
func (r *SessionRepository) Clear(ctx context.Context, chatID int64) error {
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).
		Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Active lists every chat with a stored session, for scheduled work.
func (r *SessionRepository) Active(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
