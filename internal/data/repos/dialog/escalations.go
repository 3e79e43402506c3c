package dialog

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type EscalationRepo interface {
	Create(ctx context.Context, row *kb.Escalation) error
	ListRecent(ctx context.Context, limit int) ([]*kb.Escalation, error)
}

type escalationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEscalationRepo(db *gorm.DB, log *logger.Logger) EscalationRepo {
	return &escalationRepo{
		db:  db,
		log: log.With("repo", "EscalationRepo"),
	}
}

func (r *escalationRepo) Create(ctx context.Context, row *kb.Escalation) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *escalationRepo) ListRecent(ctx context.Context, limit int) ([]*kb.Escalation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []*kb.Escalation
	if err := r.db.WithContext(ctx).
		Model(&kb.Escalation{}).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
