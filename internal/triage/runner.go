// Package triage drives one batch run over the mailbox: clear the
// previous snapshot, list unread messages, analyze each, persist the
// verdicts. Both the CLI and the web job run through it.
package triage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/mailtriage/mailtriage/internal/analysis"
	"github.com/mailtriage/mailtriage/internal/mailbox"
	"github.com/mailtriage/mailtriage/internal/store"
)

// Progress is called after each message with the running counts and the
// subject just handled. Total is fixed once listing completes.
type Progress func(done, total int, subject string)

// Summary is the outcome of one run.
type Summary struct {
	Processed int
	Fallback  int // Records produced by the heuristic path
	ByLevel   map[analysis.ImportanceLevel]int
	Records   []analysis.Record
}

type Runner struct {
	Source   mailbox.Source
	Analyzer *analysis.Analyzer
	Store    *store.Store
	Max      int
	Logger   *log.Logger
}

// Run executes one batch. Each run replaces the stored snapshot, matching
// a fresh look at the inbox. Per-message fetch failures are logged and
// skipped; only listing or persistence errors abort the run.
func (r *Runner) Run(ctx context.Context, progress Progress) (*Summary, error) {
	if _, err := r.Store.Clear(); err != nil {
		return nil, err
	}

	refs, err := r.Source.ListUnread(ctx, r.Max)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	r.Logger.Info("listed unread messages", "count", len(refs))

	summary := &Summary{ByLevel: make(map[analysis.ImportanceLevel]int)}
	total := len(refs)
	done := 0

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		msg, err := r.Source.Fetch(ctx, ref.ID)
		if err != nil {
			r.Logger.Warn("failed to fetch message, skipping", "id", ref.ID, "err", err)
			done++
			if progress != nil {
				progress(done, total, "")
			}
			continue
		}

		rec := r.Analyzer.AnalyzeRecord(ctx, msg)
		if err := r.Store.Save(&rec); err != nil {
			return summary, fmt.Errorf("failed to save result for %s: %w", rec.MessageID, err)
		}

		summary.Processed++
		summary.ByLevel[rec.Result.Level]++
		if rec.Result.Source == analysis.SourceHeuristic {
			summary.Fallback++
		}
		summary.Records = append(summary.Records, rec)

		done++
		if progress != nil {
			progress(done, total, rec.Subject)
		}
	}

	return summary, nil
}

// Close releases the mailbox connection.
func (r *Runner) Close() error {
	if r.Source == nil {
		return nil
	}
	return r.Source.Close()
}
