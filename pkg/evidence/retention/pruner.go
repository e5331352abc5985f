package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/export"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/query"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is how long records are kept. 0 keeps them forever.
	RetentionDays int

	// PruneSchedule is a standard cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning.
	PruneSchedule string

	// ArchiveBeforeDelete writes records to ArchivePath before deleting them.
	ArchiveBeforeDelete bool

	// ArchivePath is the archive directory.
	ArchivePath string

	// MaxRecords caps the number of stored records. 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner enforces retention on verdict records.
type Pruner struct {
	storage   evidence.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner and its scheduler.
func NewPruner(storage evidence.Storage, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "evidence.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p, logger)
	return p
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. It returns the total deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("verdict pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no verdict records pruned")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	q := &evidence.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveMatching(ctx, q, "age"); err != nil {
			return 0, evidence.NewRetentionError(p.config.RetentionDays, err)
		}
	}

	deleted, err := p.storage.Delete(ctx, q)
	if err != nil {
		return 0, evidence.NewRetentionError(p.config.RetentionDays, err)
	}
	return deleted, nil
}

// pruneByCount deletes everything recorded before the oldest record that
// must be kept. Records sharing that exact timestamp are all kept.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &evidence.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	excess := count - p.config.MaxRecords
	if excess <= 0 {
		return 0, nil
	}

	// The first kept record sits at position excess in ascending order.
	if excess >= query.MaxLimit {
		return p.deleteOldestInBatches(ctx, excess)
	}
	kept, err := p.storage.Query(ctx, &evidence.Query{SortOrder: "asc", Offset: int(excess), Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to find cutoff record: %w", err)
	}
	if len(kept) == 0 {
		return 0, nil
	}
	cutoff := kept[0].RecordedAt
	q := &evidence.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveMatching(ctx, q, "count"); err != nil {
			return 0, fmt.Errorf("archive failed: %w", err)
		}
	}
	return p.storage.Delete(ctx, q)
}

// deleteOldestInBatches handles excesses larger than one query page.
func (p *Pruner) deleteOldestInBatches(ctx context.Context, excess int64) (int64, error) {
	var total int64
	for excess > 0 {
		batch := excess
		if batch > query.MaxLimit-1 {
			batch = query.MaxLimit - 1
		}
		kept, err := p.storage.Query(ctx, &evidence.Query{SortOrder: "asc", Offset: int(batch), Limit: 1})
		if err != nil {
			return total, fmt.Errorf("failed to find cutoff record: %w", err)
		}
		if len(kept) == 0 {
			return total, nil
		}
		cutoff := kept[0].RecordedAt
		q := &evidence.Query{EndTime: &cutoff}
		if p.config.ArchiveBeforeDelete {
			if err := p.archiveMatching(ctx, q, "count"); err != nil {
				return total, fmt.Errorf("archive failed: %w", err)
			}
		}
		deleted, err := p.storage.Delete(ctx, q)
		if err != nil {
			return total, err
		}
		if deleted == 0 {
			return total, nil
		}
		total += deleted
		excess -= deleted
	}
	return total, nil
}

func (p *Pruner) archiveMatching(ctx context.Context, q *evidence.Query, reason string) error {
	var records []*evidence.VerdictRecord
	for offset := 0; ; offset += query.MaxLimit {
		page := *q
		page.SortOrder = "asc"
		page.Offset = offset
		page.Limit = query.MaxLimit
		batch, err := p.storage.Query(ctx, &page)
		if err != nil {
			return fmt.Errorf("failed to query records for archiving: %w", err)
		}
		records = append(records, batch...)
		if len(batch) < query.MaxLimit {
			break
		}
	}
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	name := fmt.Sprintf("verdicts-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405"))
	archiveFile := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}

	p.logger.Info("verdict records archived",
		"archive_file", archiveFile,
		"record_count", len(records),
	)
	return nil
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running prune.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
