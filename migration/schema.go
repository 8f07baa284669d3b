package migration

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "jamu-quote-bot/backend/pkg/errors"
	"jamu-quote-bot/backend/pkg/logger"
	"jamu-quote-bot/backend/quotes/models"

	"gorm.io/gorm"
)

const sourceTable = "quotes"

// Canonical fields and the legacy column names older bot databases used for
// them. The first present alias wins.
var columnAliases = map[string][]string{
	"content":            {"content", "quote", "text"},
	"author":             {"author", "said_by"},
	"added_by":           {"added_by", "user_id"},
	"guild_id":           {"guild_id", "server_id"},
	"channel_id":         {"channel_id"},
	"created_at":         {"created_at", "timestamp"},
	"original_timestamp": {"original_timestamp"},
}

var requiredFields = []string{"content", "author", "added_by", "guild_id"}

// FieldPresence maps canonical field names to the source column that carries
// them. Fields the source never had are simply absent from the map.
type FieldPresence map[string]string

// Candidate is a normalized record produced by the adapter, not yet
// validated against the target.
type Candidate struct {
	Quote    models.Quote
	Warnings []string
}

// RowResult carries either a candidate or the reason the source row was
// unusable, preserving the source row index.
type RowResult struct {
	Index     int
	Candidate *Candidate
	Skip      *RowIssue
}

// SchemaAdapter inspects an arbitrary source table believed to hold
// quote-like rows and streams normalized candidates out of it.
type SchemaAdapter struct {
	db       *gorm.DB
	log      *logger.Logger
	presence FieldPresence
	columns  []string
}

func NewSchemaAdapter(db *gorm.DB, log *logger.Logger) *SchemaAdapter {
	return &SchemaAdapter{db: db, log: log}
}

// Inspect builds the field-presence map once per run. It fails with a
// SourceSchemaError when the source has no quotes table at all.
func (a *SchemaAdapter) Inspect() error {
	if !a.db.Migrator().HasTable(sourceTable) {
		return apperrors.NewSourceSchemaError("no 'quotes' table found in source database")
	}

	columnTypes, err := a.db.Migrator().ColumnTypes(sourceTable)
	if err != nil {
		return apperrors.NewSourceSchemaError("could not read source table columns").WithDetails(err.Error())
	}

	available := make(map[string]bool, len(columnTypes))
	a.columns = a.columns[:0]
	for _, col := range columnTypes {
		available[strings.ToLower(col.Name())] = true
		a.columns = append(a.columns, col.Name())
	}

	a.presence = FieldPresence{}
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if available[alias] {
				a.presence[field] = alias
				break
			}
		}
	}

	if a.log != nil {
		a.log.Info("inspected source table",
			"table", sourceTable,
			"columns", strings.Join(a.columns, ","),
		)
	}
	return nil
}

// Presence returns the field-presence map built by Inspect.
func (a *SchemaAdapter) Presence() FieldPresence {
	return a.presence
}

// Columns returns the raw source column names seen by Inspect.
func (a *SchemaAdapter) Columns() []string {
	return a.columns
}

// CountRows returns the total source row count, used for progress reporting.
func (a *SchemaAdapter) CountRows() (int64, error) {
	var count int64
	err := a.db.Table(sourceTable).Count(&count).Error
	return count, err
}

// Rows opens a single-pass stream over the source table in its natural
// order. The stream is not restartable without re-querying the source.
func (a *SchemaAdapter) Rows() (*CandidateStream, error) {
	rows, err := a.db.Raw("SELECT * FROM " + sourceTable).Rows()
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &CandidateStream{
		adapter: a,
		rows:    rows,
		columns: columns,
		index:   -1,
	}, nil
}

// CandidateStream yields one RowResult per source row.
type CandidateStream struct {
	adapter *SchemaAdapter
	rows    *sql.Rows
	columns []string
	current RowResult
	index   int
	err     error
}

// Next advances the stream. It returns false at the end of the source or on
// a read error; check Err afterwards.
func (s *CandidateStream) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		return false
	}

	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.err = err
		return false
	}

	raw := make(map[string]any, len(s.columns))
	for i, col := range s.columns {
		raw[strings.ToLower(col)] = values[i]
	}

	s.index++
	s.current = s.adapter.mapRow(s.index, raw)
	return true
}

// Row returns the result produced by the last successful Next.
func (s *CandidateStream) Row() RowResult {
	return s.current
}

func (s *CandidateStream) Err() error {
	return s.err
}

func (s *CandidateStream) Close() error {
	return s.rows.Close()
}

// mapRow converts one raw source row into a candidate, applying defaults for
// optional fields and rejecting rows that lack a required field.
func (a *SchemaAdapter) mapRow(index int, raw map[string]any) RowResult {
	get := func(field string) (any, bool) {
		col, ok := a.presence[field]
		if !ok {
			return nil, false
		}
		v, ok := raw[col]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}

	for _, field := range requiredFields {
		if _, ok := get(field); !ok {
			return RowResult{Index: index, Skip: &RowIssue{
				SourceRow: index,
				Reason:    ReasonMissingRequiredField,
				Detail:    field,
			}}
		}
	}

	candidate := &Candidate{}
	quote := &candidate.Quote

	contentVal, _ := get("content")
	authorVal, _ := get("author")
	quote.Content = strings.TrimSpace(asString(contentVal))
	quote.Author = strings.TrimSpace(asString(authorVal))

	addedByVal, _ := get("added_by")
	guildVal, _ := get("guild_id")
	quote.AddedBy = asInt64(addedByVal)
	quote.GuildID = asInt64(guildVal)

	// A present column can still hold an empty or zero value.
	if field := quote.MissingField(); field != "" {
		return RowResult{Index: index, Skip: &RowIssue{
			SourceRow: index,
			Reason:    ReasonMissingRequiredField,
			Detail:    field,
		}}
	}

	if v, ok := get("channel_id"); ok {
		quote.ChannelID = asInt64(v)
	} else {
		quote.ChannelID = 0
	}

	if v, ok := get("created_at"); ok {
		result := parseTimestamp(v)
		quote.CreatedAt = result.Time
		if result.Defaulted {
			warning := fmt.Sprintf("row %d: could not parse created_at %q, defaulting to now", index, result.Raw)
			candidate.Warnings = append(candidate.Warnings, warning)
			if a.log != nil {
				a.log.Warn("unparsable created_at, defaulting to now", "row", index, "value", result.Raw)
			}
		}
	} else {
		quote.CreatedAt = time.Now().UTC()
	}

	if v, ok := get("original_timestamp"); ok {
		result := parseTimestamp(v)
		if !result.Defaulted {
			t := result.Time
			quote.OriginalTimestamp = &t
		}
	}

	return RowResult{Index: index, Candidate: candidate}
}

// TimestampResult is the tagged outcome of the ordered parser attempts:
// either a parsed value or the "defaulted with warning" fallback.
type TimestampResult struct {
	Time      time.Time
	Defaulted bool
	Raw       string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp tries, in order: native time values, ISO-8601 layouts,
// integer/float epoch seconds. Anything else falls back to now with the
// Defaulted flag set.
func parseTimestamp(v any) TimestampResult {
	switch t := v.(type) {
	case time.Time:
		return TimestampResult{Time: t}
	case int64:
		return TimestampResult{Time: time.Unix(t, 0).UTC()}
	case float64:
		return TimestampResult{Time: time.Unix(int64(t), 0).UTC()}
	}

	raw := strings.TrimSpace(asString(v))
	if raw != "" {
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return TimestampResult{Time: parsed}
			}
		}
		if epoch, err := strconv.ParseFloat(raw, 64); err == nil {
			return TimestampResult{Time: time.Unix(int64(epoch), 0).UTC()}
		}
	}

	return TimestampResult{Time: time.Now().UTC(), Defaulted: true, Raw: raw}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
		return parsed
	case string:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed
	default:
		return 0
	}
}
