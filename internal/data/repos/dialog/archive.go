package dialog

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type SessionArchiveRepo interface {
	Save(ctx context.Context, row *kb.SessionArchive) error
}

type sessionArchiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionArchiveRepo(db *gorm.DB, log *logger.Logger) SessionArchiveRepo {
	return &sessionArchiveRepo{
		db:  db,
		log: log.With("repo", "SessionArchiveRepo"),
	}
}

// Save upserts on session_id so a retried close does not duplicate the
// archive row.
func (r *sessionArchiveRepo) Save(ctx context.Context, row *kb.SessionArchive) error {
	if row.ClosedAt.IsZero() {
		row.ClosedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state",
			"message_count",
			"snapshot",
			"closed_at",
		}),
	}).Create(row).Error
}
