package repository

import (
	"errors"
	"strings"

	"jamu-quote-bot/backend/quotes/models"

	apperrors "jamu-quote-bot/backend/pkg/errors"

	"gorm.io/gorm"
)

// QuoteStore is the persistence contract consumed by the command layer and
// the migration engine. Both backends (embedded SQLite, networked PostgreSQL)
// sit behind this interface; callers are backend-agnostic.
type QuoteStore interface {
	Insert(quote *models.Quote) (uint, error)
	Get(id uint, guildID int64) (*models.Quote, error)
	List(guildID int64, authorFilter string, page, pageSize int) ([]models.Quote, error)
	Search(guildID int64, term string) ([]models.Quote, error)
	Random(guildID int64, authorFilter string) (*models.Quote, error)
	Delete(id uint, guildID int64) (bool, error)
	Exists(content, author string, guildID int64) (bool, error)
	// Count with guildID 0 returns the global row count used by migration
	// verification; any other value is tenant-scoped.
	Count(guildID int64) (int64, error)
}

type GormQuoteStore struct {
	db       *gorm.DB
	foldCase bool
}

func NewGormQuoteStore(db *gorm.DB) *GormQuoteStore {
	return &GormQuoteStore{db: db}
}

// SetCaseInsensitiveDedupe widens Exists to case-insensitive matching. The
// unique index stays case-sensitive; this only affects the fast-path check.
func (r *GormQuoteStore) SetCaseInsensitiveDedupe(v bool) {
	r.foldCase = v
}

// WithTx returns a store bound to the given transaction, keeping the dedupe
// configuration. The migration engine uses it for batch commits.
func (r *GormQuoteStore) WithTx(tx *gorm.DB) *GormQuoteStore {
	return &GormQuoteStore{db: tx, foldCase: r.foldCase}
}

// Insert assigns an id, persists the quote and returns the id. Required
// fields are checked before the row reaches the store.
func (r *GormQuoteStore) Insert(quote *models.Quote) (uint, error) {
	quote.Normalize()
	if field := quote.MissingField(); field != "" {
		return 0, apperrors.NewValidationError("required field is missing or empty").
			WithDetails(map[string]string{"field": field})
	}

	// id is always store-assigned
	quote.ID = 0

	if err := r.db.Create(quote).Error; err != nil {
		return 0, err
	}
	return quote.ID, nil
}

// Get is a tenant-scoped lookup. A cross-tenant id resolves to NotFound, not
// to another guild's row.
func (r *GormQuoteStore) Get(id uint, guildID int64) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.Where("guild_id = ?", guildID).First(&quote, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("quote not found")
		}
		return nil, err
	}
	return &quote, nil
}

// List returns quotes for a guild ordered by id ascending, paginated by
// offset/limit. Page numbers start at 1.
func (r *GormQuoteStore) List(guildID int64, authorFilter string, page, pageSize int) ([]models.Quote, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	query := r.db.Where("guild_id = ?", guildID)
	if authorFilter != "" {
		query = query.Where("LOWER(author) = ?", strings.ToLower(authorFilter))
	}

	var quotes []models.Quote
	err := query.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&quotes).Error
	if quotes == nil {
		quotes = []models.Quote{}
	}
	return quotes, err
}

// Search does a case-insensitive substring match over content and author.
func (r *GormQuoteStore) Search(guildID int64, term string) ([]models.Quote, error) {
	pattern := "%" + strings.ToLower(term) + "%"

	var quotes []models.Quote
	err := r.db.Where("guild_id = ?", guildID).
		Where("LOWER(content) LIKE ? OR LOWER(author) LIKE ?", pattern, pattern).
		Order("id ASC").
		Find(&quotes).Error
	if quotes == nil {
		quotes = []models.Quote{}
	}
	return quotes, err
}

// Random selects uniformly among matching rows. random() is understood by
// both SQLite and PostgreSQL.
func (r *GormQuoteStore) Random(guildID int64, authorFilter string) (*models.Quote, error) {
	query := r.db.Where("guild_id = ?", guildID)
	if authorFilter != "" {
		query = query.Where("LOWER(author) = ?", strings.ToLower(authorFilter))
	}

	var quote models.Quote
	err := query.Order("random()").Take(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("no quotes found")
		}
		return nil, err
	}
	return &quote, nil
}

// Delete removes a quote within its guild scope. Returns true if a row was
// removed, false if it was absent.
func (r *GormQuoteStore) Delete(id uint, guildID int64) (bool, error) {
	result := r.db.Where("guild_id = ?", guildID).Delete(&models.Quote{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Exists is the duplicate-check primitive: exact match on the normalized
// (content, author, guild_id) key, optionally case-folded.
func (r *GormQuoteStore) Exists(content, author string, guildID int64) (bool, error) {
	content = strings.TrimSpace(content)
	author = strings.TrimSpace(author)

	query := r.db.Model(&models.Quote{}).Where("guild_id = ?", guildID)
	if r.foldCase {
		query = query.Where("LOWER(content) = ? AND LOWER(author) = ?",
			strings.ToLower(content), strings.ToLower(author))
	} else {
		query = query.Where("content = ? AND author = ?", content, author)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormQuoteStore) Count(guildID int64) (int64, error) {
	query := r.db.Model(&models.Quote{})
	if guildID != 0 {
		query = query.Where("guild_id = ?", guildID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}
