package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Knowledge base
		&kb.Document{},

		// Dialog durability
		&kb.StoredMessage{},
		&kb.SessionArchive{},
		&kb.Escalation{},
		&kb.UserProfile{},
	)
}

// EnsureDocumentIndexes builds the expression indexes lexical retrieval
// depends on. The tsvector is computed inline in queries, so both
// language configs need their own GIN index.
func EnsureDocumentIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_fts_en
		ON documents
		USING GIN (to_tsvector('english', content));
	`).Error; err != nil {
		return fmt.Errorf("create idx_documents_fts_en: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_fts_ru
		ON documents
		USING GIN (to_tsvector('russian', content));
	`).Error; err != nil {
		return fmt.Errorf("create idx_documents_fts_ru: %w", err)
	}

	// Category filters on retrieval and the relation graph loader.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_category
		ON documents ((metadata->>'category'));
	`).Error; err != nil {
		return fmt.Errorf("create idx_documents_category: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureDocumentIndexes(s.db); err != nil {
		s.log.Error("Document index migration failed", "error", err)
		return err
	}
	return nil
}
