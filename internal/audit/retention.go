package audit

import (
	"context"
	"time"

	"github.com/cmstools-dev/cmstools/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionBatchSize = 5000
	maxDeleteBatchesPerSweep  = 2000
)

// RetentionCleaner periodically deletes audit entries older than the
// configured retention window. A zero retention keeps the trail forever.
type RetentionCleaner struct {
	db            *gorm.DB
	retentionDays int
	interval      time.Duration
	batchSize     int
}

// NewRetentionCleaner constructs a cleaner. Returns nil when retention is
// disabled so callers can unconditionally Start the result.
func NewRetentionCleaner(db *gorm.DB, retentionDays int, interval time.Duration) *RetentionCleaner {
	if db == nil || retentionDays <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionCleaner{
		db:            db,
		retentionDays: retentionDays,
		interval:      interval,
		batchSize:     defaultRetentionBatchSize,
	}
}

// Start launches the sweep loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	go c.run(ctx)
	log.Infof("audit retention cleaner started (retention_days=%d interval=%s)", c.retentionDays, c.interval)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.SweepOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// SweepOnce deletes expired entries in bounded batches so a large backlog
// never holds a long transaction.
func (c *RetentionCleaner) SweepOnce(ctx context.Context) int64 {
	if c == nil {
		return 0
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -c.retentionDays)

	var deletedTotal int64
	for i := 0; i < maxDeleteBatchesPerSweep; i++ {
		if ctx.Err() != nil {
			return deletedTotal
		}
		n, errDelete := c.deleteBatch(ctx, cutoff)
		if errDelete != nil {
			log.WithError(errDelete).Warn("audit retention sweep: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("audit retention sweep: deleted %d entries (cutoff=%s)", deletedTotal, cutoff.Format(time.RFC3339))
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	tableName := (models.AuditLog{}).TableName()
	result := c.db.WithContext(ctx).Exec(`
		DELETE FROM `+tableName+`
		WHERE id IN (
			SELECT id FROM `+tableName+`
			WHERE created_at_utc < ?
			ORDER BY id ASC
			LIMIT ?
		)
	`, cutoff, c.batchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
