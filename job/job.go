package job

import (
	"time"

	"github.com/bldxio/aimq/message"
)

// Job is the immutable record returned by a QueueProvider for one read
// or pop. It must never be mutated after construction.
//
// Id is unique within the provider. Attempt is the provider's read
// count and starts at 1 on first delivery. VisibleAt is the timestamp
// at which the provider will re-expose the job if it is not finalized
// first. Popped is true iff the job was fetched via pop semantics,
// meaning the provider has already removed it and no archive/delete
// call is required to finalize it.
type Job struct {
	ID         int64
	Queue      string
	Attempt    int
	EnqueuedAt time.Time
	VisibleAt  time.Time
	Data       message.Data
	Popped     bool
}

// Response is the shape a QueueProvider decodes its wire replies into
// before handing them to FromResponse. Field names mirror PGMQ's own
// read/pop result columns.
type Response struct {
	MsgID     int64
	ReadCt    int
	EnqueuedAt time.Time
	VT        time.Time
	Message   message.Data
}

// FromResponse constructs a Job from a provider response. popped must
// be true iff the response came from a pop call.
func FromResponse(queue string, r Response, popped bool) *Job {
	data := r.Message
	if data == nil {
		data = message.Data{}
	}
	return &Job{
		ID:         r.MsgID,
		Queue:      queue,
		Attempt:    r.ReadCt,
		EnqueuedAt: r.EnqueuedAt,
		VisibleAt:  r.VT,
		Data:       data,
		Popped:     popped,
	}
}
