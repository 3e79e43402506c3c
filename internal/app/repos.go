package app

import (
	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type Repos struct {
	Documents   repos.DocumentRepo
	Messages    repos.MessageRepo
	Escalations repos.EscalationRepo
	Archives    repos.SessionArchiveRepo
	Profiles    repos.UserProfileRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Documents:   repos.NewDocumentRepo(db, log),
		Messages:    repos.NewMessageRepo(db, log),
		Escalations: repos.NewEscalationRepo(db, log),
		Archives:    repos.NewSessionArchiveRepo(db, log),
		Profiles:    repos.NewUserProfileRepo(db, log),
	}
}
