package items

import (
	"context"
	"fmt"
	"log/slog"
)

// Report summarises a migration run.
type Report struct {
	// Migrated counts items accepted by the destination.
	Migrated int
	// Errors holds one message per item that could not be migrated or
	// whose local copy could not be removed.
	Errors []string
	// IDs maps each migrated item's local id to the id the destination
	// assigned. The destination id replaces the local one.
	IDs map[string]string
}

// Failed returns the number of error messages.
func (r Report) Failed() int { return len(r.Errors) }

// Migrate re-submits every item held by from to to, and removes each
// item's copy from from once to has accepted it. A failing item is
// recorded and skipped; the rest are still processed. The returned error
// is non-nil only when from cannot be listed at all.
func Migrate(ctx context.Context, from, to Backend, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrate")

	pending, err := from.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing local items: %w", err)
	}

	report := Report{IDs: make(map[string]string, len(pending))}
	for i, it := range pending {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("migration interrupted with %d item(s) left: %v", len(pending)-i, err))
			break
		}

		created, err := to.Create(ctx, it)
		if err != nil {
			logger.Warn("item not migrated", slog.String("id", it.ID), slog.Any("error", err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", it.ID, err))
			continue
		}
		report.Migrated++
		report.IDs[it.ID] = created.ID

		if err := from.Delete(ctx, it.ID); err != nil {
			logger.Warn("migrated item kept locally", slog.String("id", it.ID), slog.Any("error", err))
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: migrated as %s but local copy not removed: %v", it.ID, created.ID, err))
		}
	}

	logger.Info("migration finished",
		slog.Int("migrated", report.Migrated), slog.Int("failed", report.Failed()))
	return report, nil
}
