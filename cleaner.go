package aimq

import (
	"context"
	"errors"
	"time"

	"github.com/bldxio/aimq/job"
)

// ErrBadOutcome indicates a Cleaner was given a job.Outcome it cannot
// clean. pgmq.Cleaner accepts only Archived and Unknown (used as "any
// terminal outcome") and returns ErrBadOutcome for every other value.
var ErrBadOutcome = errors.New("aimq: bad job outcome")

// Cleaner permanently removes terminal jobs from a provider's archive.
// It is a supplemented administrative affordance — not part of the
// dispatch hot path — intended for retention management of the
// archive left behind by Queue.finish's archive/dead-letter paths.
type Cleaner interface {
	// Clean deletes archived jobs matching outcome and, if before is
	// non-nil, archived at or before that time. outcome == job.Unknown
	// means "any terminal outcome". Returns the number of rows removed.
	Clean(ctx context.Context, outcome job.Outcome, before *time.Time) (int64, error)
}
