package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"jamu-quote-bot/backend/pkg/config"
	apperrors "jamu-quote-bot/backend/pkg/errors"
	"jamu-quote-bot/backend/pkg/logger"
	"jamu-quote-bot/backend/pkg/metrics"
	"jamu-quote-bot/backend/pkg/resilience"
	"jamu-quote-bot/backend/quotes/models"
	"jamu-quote-bot/backend/quotes/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configures a single migration run.
type Options struct {
	Mode                  Mode
	BatchSize             int
	DedupeCaseInsensitive bool
	PreviewSampleSize     int
	VerifySampleSize      int
	ConnectRetries        int
	ConnectBackoff        time.Duration
}

// DefaultOptions returns the defaults for a run in the given mode.
func DefaultOptions(mode Mode) Options {
	return Options{
		Mode:              mode,
		BatchSize:         1000,
		PreviewSampleSize: 10,
		VerifySampleSize:  5,
		ConnectRetries:    3,
		ConnectBackoff:    2 * time.Second,
	}
}

// OptionsFromConfig builds run options from the application configuration.
func OptionsFromConfig(cfg *config.Config, mode Mode) Options {
	opts := DefaultOptions(mode)
	if cfg.Migration.BatchSize > 0 {
		opts.BatchSize = cfg.Migration.BatchSize
	}
	opts.DedupeCaseInsensitive = cfg.Migration.DedupeCaseInsensitive
	if cfg.Migration.PreviewSampleSize > 0 {
		opts.PreviewSampleSize = cfg.Migration.PreviewSampleSize
	}
	if cfg.Migration.VerifySampleSize > 0 {
		opts.VerifySampleSize = cfg.Migration.VerifySampleSize
	}
	if cfg.Migration.ConnectRetries > 0 {
		opts.ConnectRetries = cfg.Migration.ConnectRetries
	}
	if cfg.Migration.ConnectBackoff > 0 {
		opts.ConnectBackoff = cfg.Migration.ConnectBackoff
	}
	return opts
}

// Engine streams rows from a source store through the schema adapter,
// deduplicates, batches and commits to the quote store transactionally. One
// logical run per invocation; batch commit is the unit of atomicity.
type Engine struct {
	opts Options
	log  *logger.Logger

	mu    sync.Mutex
	state State

	// verifySample holds the first few rows inserted by the current run for
	// the post-run field-level re-check.
	verifySample []models.Quote
}

func New(opts Options, log *logger.Logger) *Engine {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1000
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Engine{opts: opts, log: log, state: StateIdle}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State, report *Report) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	report.State = s
}

type batchItem struct {
	sourceRow int
	candidate *Candidate
}

// Run executes the migration between two connection descriptors (SQLite file
// path or PostgreSQL DSN/URL). Already-committed batches survive a failed
// run; the report names the resumption point.
func (e *Engine) Run(ctx context.Context, sourceDescriptor, targetDescriptor string) (*Report, error) {
	runID := uuid.NewString()
	log := e.log.WithRun(runID)
	report := newReport(runID, e.opts.Mode)
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		// report.fail is called on every failure path; mirror it into the
		// engine's own lifecycle state.
		if report.State == StateFailed {
			e.setState(StateFailed, report)
		}
	}()

	e.setState(StateScanning, report)
	log.Info("starting migration run",
		"mode", string(e.opts.Mode),
		"batch_size", e.opts.BatchSize,
	)

	// Opening a missing SQLite file would create it, so check up front.
	if !config.IsPostgres(sourceDescriptor) {
		path := strings.TrimPrefix(sourceDescriptor, "sqlite://")
		if _, err := os.Stat(path); err != nil {
			schemaErr := apperrors.NewSourceSchemaError("source database not found: " + path)
			report.fail(schemaErr)
			return report, schemaErr
		}
	}

	sourceDB, err := config.Open(sourceDescriptor)
	if err != nil {
		report.fail(err)
		return report, err
	}
	defer closeDB(sourceDB)

	adapter := NewSchemaAdapter(sourceDB, log)
	if err := adapter.Inspect(); err != nil {
		report.fail(err)
		return report, err
	}
	report.SourceColumns = adapter.Columns()

	total, err := adapter.CountRows()
	if err != nil {
		report.fail(err)
		return report, err
	}
	log.Info("scanned source", "rows", total)

	targetDB, err := config.Open(targetDescriptor)
	if err != nil {
		txErr := apperrors.NewTransactionError("target unreachable").WithDetails(err.Error())
		report.fail(txErr)
		return report, txErr
	}
	defer closeDB(targetDB)

	// Connectivity check only; data errors are never routed through retry.
	retryCfg := resilience.RetryConfig{
		Name:     "target-connectivity",
		Attempts: e.opts.ConnectRetries,
		Backoff:  e.opts.ConnectBackoff,
	}
	if err := resilience.Retry(ctx, retryCfg, log, func() error {
		return config.TestConnection(targetDB)
	}); err != nil {
		txErr := apperrors.NewTransactionError("target unreachable").WithDetails(err.Error())
		report.fail(txErr)
		return report, txErr
	}

	targetHasTable := targetDB.Migrator().HasTable(&models.Quote{})
	if !targetHasTable && e.opts.Mode == ModeCommit {
		if err := targetDB.AutoMigrate(&models.Quote{}); err != nil {
			txErr := apperrors.NewTransactionError("could not create target schema").WithDetails(err.Error())
			report.fail(txErr)
			return report, txErr
		}
		targetHasTable = true
	}

	store := repository.NewGormQuoteStore(targetDB)
	store.SetCaseInsensitiveDedupe(e.opts.DedupeCaseInsensitive)

	if targetHasTable {
		if report.TargetCountBefore, err = store.Count(0); err != nil {
			txErr := apperrors.NewTransactionError("could not count target rows").WithDetails(err.Error())
			report.fail(txErr)
			return report, txErr
		}
	}

	stream, err := adapter.Rows()
	if err != nil {
		report.fail(err)
		return report, err
	}
	defer stream.Close()

	if e.opts.Mode == ModeDryRun {
		e.setState(StateDryRun, report)
		err = e.runDryRun(ctx, stream, store, targetHasTable, report)
	} else {
		e.setState(StateCommitting, report)
		err = e.runCommit(ctx, stream, targetDB, store, total, report, log)
	}
	if err != nil {
		return report, err
	}
	if streamErr := stream.Err(); streamErr != nil {
		report.fail(streamErr)
		return report, streamErr
	}

	e.setState(StateVerifying, report)
	e.verify(store, targetHasTable, report, log)

	e.setState(StateDone, report)
	log.Info("migration run finished",
		"scanned", report.Scanned,
		"inserted", report.Inserted,
		"skipped_duplicate", report.SkippedDuplicate,
		"skipped_invalid", report.SkippedInvalid,
		"batches", report.Batches,
	)
	return report, nil
}

// runDryRun tallies would-insert / would-skip outcomes without touching the
// target. Duplicates within the source itself are tracked in memory, since
// there is no committed row to check against.
func (e *Engine) runDryRun(ctx context.Context, stream *CandidateStream, store *repository.GormQuoteStore, targetHasTable bool, report *Report) error {
	seen := make(map[string]bool)

	for stream.Next() {
		if err := e.interrupted(ctx, report); err != nil {
			return err
		}

		res := stream.Row()
		report.Scanned++
		metrics.RowsScanned.Inc()

		if res.Skip != nil {
			report.SkippedInvalid++
			report.RowIssues = append(report.RowIssues, *res.Skip)
			metrics.RowsSkipped.WithLabelValues(res.Skip.Reason).Inc()
			continue
		}

		cand := res.Candidate
		report.Warnings = append(report.Warnings, cand.Warnings...)

		key := e.dedupeKey(&cand.Quote)
		duplicate := seen[key]
		if !duplicate && targetHasTable {
			exists, err := store.Exists(cand.Quote.Content, cand.Quote.Author, cand.Quote.GuildID)
			if err != nil {
				txErr := apperrors.NewTransactionError("duplicate check failed").WithDetails(err.Error())
				report.fail(txErr)
				return txErr
			}
			duplicate = exists
		}

		if duplicate {
			report.SkippedDuplicate++
			report.addIssue(res.Index, ReasonDuplicate, "")
			metrics.RowsSkipped.WithLabelValues(ReasonDuplicate).Inc()
			continue
		}

		seen[key] = true
		report.Inserted++
		if len(report.Preview) < e.opts.PreviewSampleSize {
			report.Preview = append(report.Preview, cand.Quote.ToInterchangeRow())
		}
	}
	return nil
}

// runCommit accumulates candidates into batches and commits each batch as
// one transaction.
func (e *Engine) runCommit(ctx context.Context, stream *CandidateStream, targetDB *gorm.DB, store *repository.GormQuoteStore, total int64, report *Report, log *logger.Logger) error {
	batch := make([]batchItem, 0, e.opts.BatchSize)
	var verifySample []models.Quote

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := e.commitBatch(ctx, targetDB, store, batch, report, log)
		if err != nil {
			report.fail(err)
			return err
		}
		for i := 0; i < len(inserted) && len(verifySample) < e.opts.VerifySampleSize; i++ {
			verifySample = append(verifySample, inserted[i])
		}
		batch = batch[:0]
		log.Info("batch committed",
			"batch", report.LastCommittedBatch,
			"processed", report.Scanned,
			"total", total,
		)
		return nil
	}

	for stream.Next() {
		res := stream.Row()
		report.Scanned++
		metrics.RowsScanned.Inc()

		if res.Skip != nil {
			report.SkippedInvalid++
			report.RowIssues = append(report.RowIssues, *res.Skip)
			metrics.RowsSkipped.WithLabelValues(res.Skip.Reason).Inc()
			continue
		}

		report.Warnings = append(report.Warnings, res.Candidate.Warnings...)
		batch = append(batch, batchItem{sourceRow: res.Index, candidate: res.Candidate})

		if len(batch) >= e.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
			// Checkpoint: interruption is honored only at batch boundaries,
			// so no partial-batch state is ever left committed.
			if err := e.interrupted(ctx, report); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		report.fail(err)
		return err
	}

	if err := flush(); err != nil {
		return err
	}

	e.verifySample = verifySample
	return nil
}

// commitBatch runs one transactional batch: exists-then-insert per row. Row
// duplicates are skipped inside the transaction; an infrastructure error
// rolls the whole batch back. On rollback the connectivity check is retried
// once through the bounded retry before the batch gets a second attempt.
func (e *Engine) commitBatch(ctx context.Context, targetDB *gorm.DB, store *repository.GormQuoteStore, batch []batchItem, report *Report, log *logger.Logger) ([]models.Quote, error) {
	var inserted []models.Quote
	var dupRows []int
	var invalid []RowIssue

	attempt := func() error {
		inserted = inserted[:0]
		dupRows = dupRows[:0]
		invalid = invalid[:0]

		return targetDB.Transaction(func(tx *gorm.DB) error {
			txStore := store.WithTx(tx)
			for _, item := range batch {
				// The same connection sees rows inserted earlier in this
				// transaction, so intra-batch duplicates are caught too.
				exists, err := txStore.Exists(item.candidate.Quote.Content, item.candidate.Quote.Author, item.candidate.Quote.GuildID)
				if err != nil {
					return err
				}
				if exists {
					dupRows = append(dupRows, item.sourceRow)
					continue
				}

				quote := item.candidate.Quote
				if _, err := txStore.Insert(&quote); err != nil {
					if apperrors.Is(err, apperrors.CodeValidation) {
						// Row isolation: a data error skips the row, the
						// batch continues.
						invalid = append(invalid, RowIssue{
							SourceRow: item.sourceRow,
							Reason:    ReasonMissingRequiredField,
							Detail:    err.Error(),
						})
						continue
					}
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						dupRows = append(dupRows, item.sourceRow)
						continue
					}
					return err
				}
				inserted = append(inserted, quote)
			}
			return nil
		})
	}

	err := attempt()
	if err != nil {
		log.LogError(err, "batch rolled back", "batch", report.LastCommittedBatch+1)

		retryCfg := resilience.RetryConfig{
			Name:     "target-connectivity",
			Attempts: e.opts.ConnectRetries,
			Backoff:  e.opts.ConnectBackoff,
		}
		if pingErr := resilience.Retry(ctx, retryCfg, log, func() error {
			return config.TestConnection(targetDB)
		}); pingErr != nil {
			return nil, apperrors.NewTransactionError("target unreachable during batch commit").WithDetails(err.Error())
		}

		if err = attempt(); err != nil {
			return nil, apperrors.NewTransactionError("batch commit failed").WithDetails(err.Error())
		}
	}

	report.Inserted += len(inserted)
	report.SkippedDuplicate += len(dupRows)
	for _, row := range dupRows {
		report.addIssue(row, ReasonDuplicate, "")
		metrics.RowsSkipped.WithLabelValues(ReasonDuplicate).Inc()
	}
	for _, issue := range invalid {
		report.SkippedInvalid++
		report.RowIssues = append(report.RowIssues, issue)
		metrics.RowsSkipped.WithLabelValues(issue.Reason).Inc()
	}
	for range inserted {
		metrics.RowsInserted.Inc()
	}

	report.Batches++
	report.LastCommittedBatch++
	metrics.BatchesCommitted.Inc()
	return inserted, nil
}

// verify compares the target count delta against the inserted tally and
// re-checks a small sample of migrated rows. Discrepancies are warnings, not
// failures.
func (e *Engine) verify(store *repository.GormQuoteStore, targetHasTable bool, report *Report, log *logger.Logger) {
	if !targetHasTable {
		return
	}

	after, err := store.Count(0)
	if err != nil {
		report.addWarning("verification: could not count target rows: " + err.Error())
		return
	}
	report.TargetCountAfter = after

	expectedDelta := int64(0)
	if e.opts.Mode == ModeCommit {
		expectedDelta = int64(report.Inserted)
	}
	if after-report.TargetCountBefore != expectedDelta {
		mismatch := apperrors.NewVerificationMismatch(fmt.Sprintf(
			"target count delta %d does not match inserted count %d",
			after-report.TargetCountBefore, expectedDelta,
		))
		report.addWarning(mismatch.Error())
		log.Warn("verification mismatch", "delta", after-report.TargetCountBefore, "inserted", expectedDelta)
	}

	for _, quote := range e.verifySample {
		exists, err := store.Exists(quote.Content, quote.Author, quote.GuildID)
		if err != nil {
			report.addWarning("verification: sample check failed: " + err.Error())
			return
		}
		if !exists {
			mismatch := apperrors.NewVerificationMismatch(fmt.Sprintf(
				"migrated row %q by %q not found in target", quote.Content, quote.Author,
			))
			report.addWarning(mismatch.Error())
		}
	}
}

// interrupted maps context termination to a failed run. Called only at batch
// boundaries so the current batch always completes first.
func (e *Engine) interrupted(ctx context.Context, report *Report) error {
	if ctx.Err() == nil {
		return nil
	}
	reason := ReasonCancelled
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = ReasonDeadlineExceeded
	}
	err := fmt.Errorf("migration run interrupted: %s", reason)
	report.fail(err)
	return err
}

func (e *Engine) dedupeKey(quote *models.Quote) string {
	content, author := quote.Content, quote.Author
	if e.opts.DedupeCaseInsensitive {
		content = strings.ToLower(content)
		author = strings.ToLower(author)
	}
	return fmt.Sprintf("%d\x00%s\x00%s", quote.GuildID, content, author)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
