package repos

import (
	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type DocumentRepo = documents.DocumentRepo
type MessageRepo = dialog.MessageRepo
type EscalationRepo = dialog.EscalationRepo
type SessionArchiveRepo = dialog.SessionArchiveRepo
type UserProfileRepo = dialog.UserProfileRepo

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return documents.NewDocumentRepo(db, baseLog)
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return dialog.NewMessageRepo(db, baseLog)
}

func NewEscalationRepo(db *gorm.DB, baseLog *logger.Logger) EscalationRepo {
	return dialog.NewEscalationRepo(db, baseLog)
}

func NewSessionArchiveRepo(db *gorm.DB, baseLog *logger.Logger) SessionArchiveRepo {
	return dialog.NewSessionArchiveRepo(db, baseLog)
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return dialog.NewUserProfileRepo(db, baseLog)
}
