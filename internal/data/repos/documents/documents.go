package documents

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type LexicalQuery struct {
	Query    string
	Language string
	Category string
	Limit    int
}

type LexicalHit struct {
	Doc  *kb.Document
	Rank float64
}

type DocumentRepo interface {
	Upsert(ctx context.Context, rows []*kb.Document) error
	GetByIDs(ctx context.Context, ids []int64) ([]*kb.Document, error)
	LexicalSearch(ctx context.Context, q LexicalQuery) ([]LexicalHit, error)
	ListAll(ctx context.Context) ([]*kb.Document, error)
	Count(ctx context.Context) (int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return &documentRepo{
		db:  db,
		log: log.With("repo", "DocumentRepo"),
	}
}

func (r *documentRepo) Upsert(ctx context.Context, rows []*kb.Document) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row == nil {
			continue
		}
		row.UpdatedAt = now
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content",
			"embedding",
			"metadata",
			"updated_at",
		}),
	}).Create(&rows).Error
}

// GetByIDs returns documents in the order the ids were given. Missing
// ids are skipped, not errored, so callers can hydrate ranked hit
// lists directly.
func (r *documentRepo) GetByIDs(ctx context.Context, ids []int64) ([]*kb.Document, error) {
	if len(ids) == 0 {
		return []*kb.Document{}, nil
	}
	var rows []*kb.Document
	if err := r.db.WithContext(ctx).
		Model(&kb.Document{}).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*kb.Document, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*kb.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// LexicalSearch ranks documents with ts_rank over an OR-joined
// to_tsquery built from the sanitized query tokens, so a partial term
// overlap still matches. Falls back to ILIKE when the tsquery path
// errors on an exotic query.
func (r *documentRepo) LexicalSearch(ctx context.Context, q LexicalQuery) ([]LexicalHit, error) {
	if strings.TrimSpace(q.Query) == "" {
		return []LexicalHit{}, nil
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	tokens := LexicalTokens(q.Query)
	if len(tokens) == 0 {
		return []LexicalHit{}, nil
	}
	tsQuery := strings.Join(tokens, " | ")
	config := TsConfigFor(q.Language, q.Query)

	where := "TRUE"
	args := []any{tsQuery}
	if q.Category != "" {
		where = "documents.metadata->>'category' = ?"
		args = append(args, q.Category)
	}

	sql := fmt.Sprintf(`
		SELECT documents.*,
		       ts_rank(to_tsvector('%[1]s', documents.content), to_tsquery('%[1]s', ?)) AS rank
		FROM documents
		WHERE %[2]s
			AND to_tsvector('%[1]s', documents.content) @@ to_tsquery('%[1]s', ?)
		ORDER BY rank DESC,
		         documents.updated_at DESC
		LIMIT %[3]d;
	`, config, where, q.Limit)
	args = append(args, tsQuery)

	type row struct {
		kb.Document
		Rank float64 `gorm:"column:rank"`
	}
	var rows []row
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		r.log.Warn("tsquery search failed, falling back to ILIKE", "error", err)
		return r.ilikeSearch(ctx, tokens, q)
	}

	out := make([]LexicalHit, 0, len(rows))
	for i := range rows {
		d := rows[i].Document
		out = append(out, LexicalHit{Doc: &d, Rank: rows[i].Rank})
	}
	return out, nil
}

func (r *documentRepo) ilikeSearch(ctx context.Context, tokens []string, q LexicalQuery) ([]LexicalHit, error) {
	cond := r.db.Where("content ILIKE ?", "%"+tokens[0]+"%")
	for _, token := range tokens[1:] {
		cond = cond.Or("content ILIKE ?", "%"+token+"%")
	}
	tx := r.db.WithContext(ctx).Model(&kb.Document{}).Where(cond)
	if q.Category != "" {
		tx = tx.Where("metadata->>'category' = ?", q.Category)
	}
	var rows []*kb.Document
	if err := tx.Order("updated_at DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]LexicalHit, 0, len(rows))
	for _, doc := range rows {
		out = append(out, LexicalHit{Doc: doc})
	}
	return out, nil
}

func (r *documentRepo) ListAll(ctx context.Context) ([]*kb.Document, error) {
	var rows []*kb.Document
	if err := r.db.WithContext(ctx).
		Model(&kb.Document{}).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&kb.Document{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// LexicalTokens lowercases the query and keeps only letter and digit
// runs, which makes the joined expression safe to hand to to_tsquery.
func LexicalTokens(query string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// TsConfigFor picks the text-search config. The russian config stems
// nothing useful out of a Latin-only query, so those always use
// english regardless of the detected language.
func TsConfigFor(language, query string) string {
	if !containsCyrillic(query) {
		return "english"
	}
	if strings.EqualFold(language, "ru") {
		return "russian"
	}
	return "english"
}

func containsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
