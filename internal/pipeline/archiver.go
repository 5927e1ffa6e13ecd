package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// Archiver moves aged settled trades from the database to cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver that keeps retentionDays of settled trades
// in the hot store.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run executes a single archive pass for trades older than the retention
// cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.blobArchiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving trades before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete", slog.Int64("trades_archived", archived))
	return nil
}

// ArchiveSnapshot pushes one opportunity snapshot to cold storage. The hot
// store holds only the latest snapshot, so this is the sole history record.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, snap domain.OpportunitySnapshot) error {
	if err := a.blobArchiver.ArchiveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("archiving opportunity snapshot: %w", err)
	}
	return nil
}
