package migration

import (
	"time"

	"jamu-quote-bot/backend/quotes/models"
)

// State represents where a migration run is in its lifecycle
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateDryRun     State = "dry-run"
	StateCommitting State = "committing"
	StateVerifying  State = "verifying"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Mode selects between a tally-only pass and a committing run
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeCommit Mode = "commit"
)

// Skip reasons recorded per row
const (
	ReasonMissingRequiredField = "missing-required-field"
	ReasonDuplicate            = "duplicate"
	ReasonDeadlineExceeded     = "deadline-exceeded"
	ReasonCancelled            = "cancelled"
)

// RowIssue names a single skipped or defaulted source row and why.
type RowIssue struct {
	SourceRow int    `json:"source_row"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// Report is the structured result of a migration run. The surrounding CLI or
// HTTP adapter renders it; the engine never writes to a console itself.
type Report struct {
	RunID string `json:"run_id"`
	Mode  Mode   `json:"mode"`
	State State  `json:"state"`

	SourceColumns []string `json:"source_columns,omitempty"`

	Scanned          int `json:"scanned"`
	Inserted         int `json:"inserted"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	SkippedInvalid   int `json:"skipped_invalid"`

	Batches int `json:"batches"`
	// LastCommittedBatch is the resumption point after a failed run: batches
	// up to and including it are persisted. -1 when nothing was committed.
	LastCommittedBatch int `json:"last_committed_batch"`

	TargetCountBefore int64 `json:"target_count_before"`
	TargetCountAfter  int64 `json:"target_count_after"`

	// Preview holds the first would-insert candidates of a dry run.
	Preview []models.InterchangeRow `json:"preview,omitempty"`

	RowIssues []RowIssue `json:"row_issues,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	Errors    []string   `json:"errors,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func newReport(runID string, mode Mode) *Report {
	return &Report{
		RunID:              runID,
		Mode:               mode,
		State:              StateIdle,
		LastCommittedBatch: -1,
		StartedAt:          time.Now(),
	}
}

func (r *Report) addIssue(row int, reason, detail string) {
	r.RowIssues = append(r.RowIssues, RowIssue{SourceRow: row, Reason: reason, Detail: detail})
}

func (r *Report) addWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

func (r *Report) fail(err error) {
	r.State = StateFailed
	r.Errors = append(r.Errors, err.Error())
}
