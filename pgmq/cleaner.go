package pgmq

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"github.com/bldxio/aimq"
	"github.com/bldxio/aimq/job"
)

// Cleaner implements aimq.Cleaner by deleting rows from PGMQ's
// per-queue archive tables (pgmq.a_<queue>). Adapted from
// sql.Cleaner, which deleted terminal rows from one shared jobs table
// by status; PGMQ has no such shared table, so Cleaner is instead
// bound to an explicit set of queue names at construction and sweeps
// each queue's archive table in turn.
//
// Only job.Unknown and job.Archived are meaningful targets: a PGMQ
// archive table is exactly pgmq's own record of archived messages.
// job.Deleted and job.PoppedNoop jobs never persist anywhere to
// clean up, and job.DeadLettered jobs are ordinary messages sitting
// in whatever queue was configured as the DLQ — they are read,
// archived, or deleted through that queue's normal QueueProvider
// operations, not through Cleaner. Any other outcome value returns
// aimq.ErrBadOutcome.
type Cleaner struct {
	db     *bun.DB
	queues []string
}

// NewCleaner constructs a Cleaner that sweeps the archive tables of
// queues.
func NewCleaner(db *bun.DB, queues []string) *Cleaner {
	return &Cleaner{db: db, queues: queues}
}

func (c *Cleaner) Clean(ctx context.Context, outcome job.Outcome, before *time.Time) (int64, error) {
	if outcome != job.Unknown && outcome != job.Archived {
		return 0, aimq.ErrBadOutcome
	}
	var total int64
	for _, queue := range c.queues {
		n, err := c.cleanQueue(ctx, queue, before)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Cleaner) cleanQueue(ctx context.Context, queue string, before *time.Time) (int64, error) {
	table := bun.Ident("a_" + queue)
	var res sql.Result
	var err error
	if before != nil {
		res, err = c.db.NewRaw("DELETE FROM pgmq.? WHERE archived_at <= ?", table, *before).Exec(ctx)
	} else {
		res, err = c.db.NewRaw("DELETE FROM pgmq.?", table).Exec(ctx)
	}
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
