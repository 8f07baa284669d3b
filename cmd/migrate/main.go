package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"jamu-quote-bot/backend/migration"
	"jamu-quote-bot/backend/pkg/config"
	"jamu-quote-bot/backend/pkg/logger"
)

func main() {
	sourcePtr := flag.String("source", "", "Source database: SQLite file path or PostgreSQL DSN")
	targetPtr := flag.String("target", "", "Target database (defaults to the configured service database)")
	dryRunPtr := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	batchSizePtr := flag.Int("batch-size", 0, "Rows per transactional batch (default 1000)")
	yesPtr := flag.Bool("yes", false, "Skip the confirmation prompt")
	deadlinePtr := flag.Duration("deadline", 0, "Optional bound on the whole run, e.g. 10m")
	flag.Parse()

	if *sourcePtr == "" {
		fmt.Fprintln(os.Stderr, "Usage: migrate -source <db> [-target <db>] [-dry-run] [-batch-size n] [-yes]")
		os.Exit(2)
	}

	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = false
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	target := *targetPtr
	if target == "" {
		target = cfg.DatabaseDescriptor()
	}

	mode := migration.ModeCommit
	if *dryRunPtr {
		mode = migration.ModeDryRun
	}

	opts := migration.OptionsFromConfig(cfg, mode)
	if *batchSizePtr > 0 {
		opts.BatchSize = *batchSizePtr
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Quote Database Migration")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Source: %s\n", *sourcePtr)
	fmt.Printf("Target: %s\n", redact(target))
	fmt.Printf("Mode:   %s\n", mode)
	fmt.Println()

	if mode == migration.ModeCommit && !*yesPtr {
		fmt.Print("This will modify the target database. Proceed? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "yes" && answer != "y" {
			fmt.Println("Migration cancelled.")
			return
		}
		fmt.Println()
	}

	ctx := context.Background()
	if *deadlinePtr > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *deadlinePtr)
		defer cancel()
	}

	engine := migration.New(opts, log)
	report, err := engine.Run(ctx, *sourcePtr, target)
	render(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nMigration failed: %v\n", err)
		os.Exit(1)
	}
}

func render(report *migration.Report) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Migration Summary")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Run ID:              %s\n", report.RunID)
	fmt.Printf("State:               %s\n", report.State)
	fmt.Printf("Scanned:             %d\n", report.Scanned)
	fmt.Printf("Inserted:            %d\n", report.Inserted)
	fmt.Printf("Skipped (duplicate): %d\n", report.SkippedDuplicate)
	fmt.Printf("Skipped (invalid):   %d\n", report.SkippedInvalid)
	fmt.Printf("Batches committed:   %d\n", report.Batches)
	fmt.Printf("Target count:        %d -> %d\n", report.TargetCountBefore, report.TargetCountAfter)
	fmt.Printf("Duration:            %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Preview) > 0 {
		fmt.Println("\nPreview:")
		for _, row := range report.Preview {
			content := row.Content
			if len(content) > 50 {
				content = content[:50] + "..."
			}
			fmt.Printf("  Would import: [%s] %s\n", row.Author, content)
		}
	}

	for _, issue := range report.RowIssues {
		fmt.Printf("  Row %d skipped: %s %s\n", issue.SourceRow, issue.Reason, issue.Detail)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("  Warning: %s\n", warning)
	}
	for _, e := range report.Errors {
		fmt.Printf("  Error: %s\n", e)
	}
}

// redact hides the password of a key=value PostgreSQL DSN in console output.
func redact(descriptor string) string {
	if !config.IsPostgres(descriptor) {
		return descriptor
	}
	fields := strings.Fields(descriptor)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
