package models

import (
	"strings"
	"time"
)

// Quote is a stored (content, author) pair attributed within a guild scope.
// IDs are always assigned by the target store; ids from a migration source
// are never carried over.
type Quote struct {
	ID                uint       `json:"id" gorm:"primarykey"`
	Content           string     `json:"content" gorm:"type:text;not null;uniqueIndex:idx_quotes_dedupe"`
	Author            string     `json:"author" gorm:"size:255;not null;uniqueIndex:idx_quotes_dedupe"`
	AddedBy           int64      `json:"added_by" gorm:"not null"`
	GuildID           int64      `json:"guild_id" gorm:"not null;index;uniqueIndex:idx_quotes_dedupe"`
	ChannelID         int64      `json:"channel_id" gorm:"not null;default:0;index"`
	CreatedAt         time.Time  `json:"created_at"`
	OriginalTimestamp *time.Time `json:"original_timestamp,omitempty"`
}

func (Quote) TableName() string {
	return "quotes"
}

// Normalize trims the free-text fields. Dedupe comparisons run on the
// normalized form, so whitespace-only variants of a quote are duplicates.
func (q *Quote) Normalize() {
	q.Content = strings.TrimSpace(q.Content)
	q.Author = strings.TrimSpace(q.Author)
}

// MissingField returns the name of the first required field that is empty,
// or "" when the quote is valid.
func (q *Quote) MissingField() string {
	switch {
	case strings.TrimSpace(q.Content) == "":
		return "content"
	case strings.TrimSpace(q.Author) == "":
		return "author"
	case q.AddedBy == 0:
		return "added_by"
	case q.GuildID == 0:
		return "guild_id"
	}
	return ""
}

type CreateQuoteRequest struct {
	Content   string `json:"content" binding:"required"`
	Author    string `json:"author" binding:"required"`
	AddedBy   int64  `json:"added_by" binding:"required"`
	GuildID   int64  `json:"guild_id" binding:"required"`
	ChannelID int64  `json:"channel_id"`
}

// InterchangeRow is the flat tabular shape consumed by export/import
// collaborators. Legacy variants of it are read back through the migration
// schema adapter.
type InterchangeRow struct {
	Content           string     `json:"content"`
	Author            string     `json:"author"`
	AddedBy           int64      `json:"added_by"`
	GuildID           int64      `json:"guild_id"`
	ChannelID         int64      `json:"channel_id"`
	CreatedAt         time.Time  `json:"created_at"`
	OriginalTimestamp *time.Time `json:"original_timestamp,omitempty"`
}

// ToInterchangeRow flattens a quote for bulk interchange. The store-assigned
// id is deliberately not part of the row.
func (q *Quote) ToInterchangeRow() InterchangeRow {
	return InterchangeRow{
		Content:           q.Content,
		Author:            q.Author,
		AddedBy:           q.AddedBy,
		GuildID:           q.GuildID,
		ChannelID:         q.ChannelID,
		CreatedAt:         q.CreatedAt,
		OriginalTimestamp: q.OriginalTimestamp,
	}
}
