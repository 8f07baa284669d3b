package migration

import (
	"path/filepath"
	"testing"
	"time"

	apperrors "jamu-quote-bot/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestInspectFailsWithoutQuotesTable(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, db.Exec(`CREATE TABLE settings (k TEXT, v TEXT)`).Error)

	adapter := NewSchemaAdapter(db, nil)
	err := adapter.Inspect()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSourceSchema))
}

func TestInspectBuildsPresenceMapFromLegacyColumns(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, db.Exec(`CREATE TABLE quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quote TEXT,
		said_by TEXT,
		user_id INTEGER,
		server_id INTEGER,
		timestamp TEXT
	)`).Error)

	adapter := NewSchemaAdapter(db, nil)
	require.NoError(t, adapter.Inspect())

	presence := adapter.Presence()
	assert.Equal(t, "quote", presence["content"])
	assert.Equal(t, "said_by", presence["author"])
	assert.Equal(t, "user_id", presence["added_by"])
	assert.Equal(t, "server_id", presence["guild_id"])
	assert.Equal(t, "timestamp", presence["created_at"])

	_, hasChannel := presence["channel_id"]
	assert.False(t, hasChannel)
	_, hasOriginal := presence["original_timestamp"]
	assert.False(t, hasOriginal)
}

func TestStreamMapsLegacyRows(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, db.Exec(`CREATE TABLE quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quote TEXT,
		said_by TEXT,
		user_id INTEGER,
		server_id INTEGER,
		timestamp TEXT
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO quotes (quote, said_by, user_id, server_id, timestamp) VALUES (?, ?, ?, ?, ?)`,
		"  padded quote  ", "Ada", 7, 99, "2021-06-01 12:30:00",
	).Error)

	adapter := NewSchemaAdapter(db, nil)
	require.NoError(t, adapter.Inspect())

	stream, err := adapter.Rows()
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Next())
	res := stream.Row()
	require.NoError(t, stream.Err())
	require.NotNil(t, res.Candidate)

	quote := res.Candidate.Quote
	assert.Equal(t, "padded quote", quote.Content)
	assert.Equal(t, "Ada", quote.Author)
	assert.EqualValues(t, 7, quote.AddedBy)
	assert.EqualValues(t, 99, quote.GuildID)
	assert.Zero(t, quote.ChannelID)
	assert.Nil(t, quote.OriginalTimestamp)
	assert.Equal(t, 2021, quote.CreatedAt.Year())
	assert.Empty(t, res.Candidate.Warnings)

	// Source ids never carry over.
	assert.Zero(t, quote.ID)

	assert.False(t, stream.Next())
	require.NoError(t, stream.Err())
}

func TestStreamRejectsRowsMissingRequiredFields(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "partial.db"))
	require.NoError(t, db.Exec(`CREATE TABLE quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT,
		author TEXT,
		added_by INTEGER,
		guild_id INTEGER
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO quotes (content, author, added_by, guild_id) VALUES
		('valid', 'Ada', 1, 1),
		('no author', NULL, 1, 1),
		('', 'Empty Content', 1, 1),
		('no guild', 'Bob', 1, NULL)`,
	).Error)

	adapter := NewSchemaAdapter(db, nil)
	require.NoError(t, adapter.Inspect())

	stream, err := adapter.Rows()
	require.NoError(t, err)
	defer stream.Close()

	var candidates, skipped int
	var reasons []string
	for stream.Next() {
		res := stream.Row()
		if res.Candidate != nil {
			candidates++
		} else {
			skipped++
			reasons = append(reasons, res.Skip.Reason)
		}
	}
	require.NoError(t, stream.Err())

	assert.Equal(t, 1, candidates)
	assert.Equal(t, 3, skipped)
	for _, reason := range reasons {
		assert.Equal(t, ReasonMissingRequiredField, reason)
	}
}

func TestStreamDefaultsUnparsableCreatedAt(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "ts.db"))
	require.NoError(t, db.Exec(`CREATE TABLE quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT,
		author TEXT,
		added_by INTEGER,
		guild_id INTEGER,
		created_at TEXT
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO quotes (content, author, added_by, guild_id, created_at) VALUES
		('iso', 'Ada', 1, 1, '2020-01-02T03:04:05Z'),
		('epoch', 'Ada', 1, 1, '1700000000'),
		('garbage', 'Ada', 1, 1, 'yesterday-ish')`,
	).Error)

	adapter := NewSchemaAdapter(db, nil)
	require.NoError(t, adapter.Inspect())

	stream, err := adapter.Rows()
	require.NoError(t, err)
	defer stream.Close()

	var results []RowResult
	for stream.Next() {
		results = append(results, stream.Row())
	}
	require.NoError(t, stream.Err())
	require.Len(t, results, 3)

	iso := results[0].Candidate
	require.NotNil(t, iso)
	assert.Equal(t, 2020, iso.Quote.CreatedAt.Year())
	assert.Empty(t, iso.Warnings)

	epoch := results[1].Candidate
	require.NotNil(t, epoch)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), epoch.Quote.CreatedAt)
	assert.Empty(t, epoch.Warnings)

	// Unparsable timestamps default to now and warn, but keep the row.
	garbage := results[2].Candidate
	require.NotNil(t, garbage)
	assert.WithinDuration(t, time.Now().UTC(), garbage.Quote.CreatedAt, time.Minute)
	require.Len(t, garbage.Warnings, 1)
	assert.Contains(t, garbage.Warnings[0], "yesterday-ish")
}

func TestParseTimestamp(t *testing.T) {
	parsed := parseTimestamp("2022-03-04 05:06:07")
	assert.False(t, parsed.Defaulted)
	assert.Equal(t, 2022, parsed.Time.Year())

	epoch := parseTimestamp(int64(1600000000))
	assert.False(t, epoch.Defaulted)
	assert.Equal(t, time.Unix(1600000000, 0).UTC(), epoch.Time)

	native := parseTimestamp(time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, native.Defaulted)
	assert.Equal(t, 2019, native.Time.Year())

	defaulted := parseTimestamp("not a time")
	assert.True(t, defaulted.Defaulted)
	assert.Equal(t, "not a time", defaulted.Raw)

	empty := parseTimestamp(nil)
	assert.True(t, empty.Defaulted)
}
