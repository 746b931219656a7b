package pgmq

import (
	"encoding/json"
	"time"

	"github.com/bldxio/aimq"
	"github.com/bldxio/aimq/job"
	"github.com/bldxio/aimq/message"
)

// messageRow scans one row of PGMQ's pgmq.read/pgmq.pop return shape
// (the pgmq.message_record composite type): msg_id, read_ct,
// enqueued_at, vt, message.
type messageRow struct {
	MsgID      int64           `bun:"msg_id"`
	ReadCt     int             `bun:"read_ct"`
	EnqueuedAt time.Time       `bun:"enqueued_at"`
	VT         time.Time       `bun:"vt"`
	Message    json.RawMessage `bun:"message"`
}

// toJob decodes the row's jsonb payload and converts it into the
// shared job.Job shape via job.FromResponse.
func (r messageRow) toJob(queue string, popped bool) (*job.Job, error) {
	var data message.Data
	if len(r.Message) > 0 {
		if err := json.Unmarshal(r.Message, &data); err != nil {
			return nil, err
		}
	}
	return job.FromResponse(queue, job.Response{
		MsgID:      r.MsgID,
		ReadCt:     r.ReadCt,
		EnqueuedAt: r.EnqueuedAt,
		VT:         r.VT,
		Message:    data,
	}, popped), nil
}

// metricsRow scans one row of pgmq.metrics_all()/pgmq.metrics(queue).
// ListQueues uses metrics_all() rather than pgmq.list_queues() because
// it needs queue depth and message-age figures list_queues() doesn't
// return.
type metricsRow struct {
	QueueName       string    `bun:"queue_name"`
	QueueLength     int64     `bun:"queue_length"`
	NewestMsgAgeSec *int64    `bun:"newest_msg_age_sec"`
	OldestMsgAgeSec *int64    `bun:"oldest_msg_age_sec"`
	TotalMessages   int64     `bun:"total_messages"`
	ScrapeTime      time.Time `bun:"scrape_time"`
}

func (m metricsRow) toQueueInfo(realtimeEnabled bool) aimq.QueueInfo {
	info := aimq.QueueInfo{
		Name:            m.QueueName,
		RealtimeEnabled: realtimeEnabled,
		QueueLength:     m.QueueLength,
		TotalMessages:   m.TotalMessages,
		ScrapeTime:      m.ScrapeTime,
	}
	if m.NewestMsgAgeSec != nil {
		info.NewestMsgAge = time.Duration(*m.NewestMsgAgeSec) * time.Second
	}
	if m.OldestMsgAgeSec != nil {
		info.OldestMsgAge = time.Duration(*m.OldestMsgAgeSec) * time.Second
	}
	return info
}
