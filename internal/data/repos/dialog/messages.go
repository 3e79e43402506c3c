package dialog

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type MessageRepo interface {
	Append(ctx context.Context, row *kb.StoredMessage) error
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]*kb.StoredMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{
		db:  db,
		log: log.With("repo", "MessageRepo"),
	}
}

func (r *messageRepo) Append(ctx context.Context, row *kb.StoredMessage) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// RecentBySession returns the newest messages first.
func (r *messageRepo) RecentBySession(ctx context.Context, sessionID string, limit int) ([]*kb.StoredMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []*kb.StoredMessage
	if err := r.db.WithContext(ctx).
		Model(&kb.StoredMessage{}).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
