package dialog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type UserProfileRepo interface {
	Get(ctx context.Context, userID string) (*kb.UserProfile, error)
	Upsert(ctx context.Context, row *kb.UserProfile) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, log *logger.Logger) UserProfileRepo {
	return &userProfileRepo{
		db:  db,
		log: log.With("repo", "UserProfileRepo"),
	}
}

// Get returns (nil, nil) for an unknown user.
func (r *userProfileRepo) Get(ctx context.Context, userID string) (*kb.UserProfile, error) {
	var row kb.UserProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *userProfileRepo) Upsert(ctx context.Context, row *kb.UserProfile) error {
	now := time.Now().UTC()
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"language",
			"attributes",
			"updated_at",
		}),
	}).Create(row).Error
}
