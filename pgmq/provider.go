package pgmq

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bldxio/aimq"
	"github.com/bldxio/aimq/job"
	"github.com/bldxio/aimq/message"
)

// NotifyFunc is called after a successful Send/SendBatch on a queue
// with realtime enabled, so the caller can publish a wake-up
// notification without this package depending on package realtime.
type NotifyFunc func(ctx context.Context, channel, event, queue string, msgID int64)

// Provider implements aimq.QueueProvider by calling PGMQ's SQL
// functions directly (pgmq.send, pgmq.read, pgmq.pop, pgmq.archive,
// pgmq.delete, pgmq.create, pgmq.metrics, pgmq.metrics_all) over a
// *bun.DB, the same bun query idiom the teacher's sql.Puller/sql.Pusher
// use, restructured from "own jobs table with UPDATE...RETURNING" to
// "call the provider's stored functions": PGMQ already owns the
// lease/visibility state, so there is no local table for this
// implementation to manage.
type Provider struct {
	db     *bun.DB
	notify NotifyFunc

	mu       sync.Mutex
	realtime map[string]realtimeConfig
}

type realtimeConfig struct {
	channel string
	event   string
}

// NewProvider wraps db, an already-connected *bun.DB configured with
// pgdialect over a pgx/v5 stdlib connection. notify may be nil.
func NewProvider(db *bun.DB, notify NotifyFunc) *Provider {
	return &Provider{
		db:       db,
		notify:   notify,
		realtime: make(map[string]realtimeConfig),
	}
}

// Open is a convenience constructor: it opens a database/sql
// connection via pgx/v5's stdlib driver, wraps it in a *bun.DB with
// pgdialect, and returns a Provider over it.
func Open(dsn string, notify NotifyFunc) (*Provider, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgmq: open: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return NewProvider(db, notify), nil
}

func (p *Provider) Send(ctx context.Context, queue string, data message.Data, delay *int) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	d := 0
	if delay != nil {
		d = *delay
	}
	var msgID int64
	err = p.db.NewRaw("SELECT * FROM pgmq.send(?, ?::jsonb, ?)", queue, string(payload), d).Scan(ctx, &msgID)
	if err != nil {
		return 0, wrapQueueErr(err)
	}
	p.notifyIfEnabled(ctx, queue, msgID)
	return msgID, nil
}

// SendBatch sends each message with pgmq.send, in input order. PGMQ
// does offer pgmq.send_batch(queue, jsonb[], delay), but driving it
// needs a Postgres array literal built from the marshaled payloads;
// looping over pgmq.send keeps the same per-message return-id and
// notify semantics without hand-assembling array syntax.
func (p *Provider) SendBatch(ctx context.Context, queue string, data []message.Data, delay *int) ([]int64, error) {
	ids := make([]int64, len(data))
	for i, d := range data {
		id, err := p.Send(ctx, queue, d, delay)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (p *Provider) Read(ctx context.Context, queue string, vtSeconds int, n int) ([]*job.Job, error) {
	var rows []messageRow
	err := p.db.NewRaw("SELECT * FROM pgmq.read(?, ?, ?)", queue, vtSeconds, n).Scan(ctx, &rows)
	if err != nil {
		return nil, wrapQueueErr(err)
	}
	jobs := make([]*job.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toJob(queue, false)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (p *Provider) Pop(ctx context.Context, queue string) (*job.Job, error) {
	var rows []messageRow
	err := p.db.NewRaw("SELECT * FROM pgmq.pop(?)", queue).Scan(ctx, &rows)
	if err != nil {
		return nil, wrapQueueErr(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toJob(queue, true)
}

func (p *Provider) Archive(ctx context.Context, queue string, id int64) (bool, error) {
	var ok bool
	err := p.db.NewRaw("SELECT * FROM pgmq.archive(?, ?)", queue, id).Scan(ctx, &ok)
	if err != nil {
		return false, wrapQueueErr(err)
	}
	return ok, nil
}

func (p *Provider) Delete(ctx context.Context, queue string, id int64) (bool, error) {
	var ok bool
	err := p.db.NewRaw("SELECT * FROM pgmq.delete(?, ?)", queue, id).Scan(ctx, &ok)
	if err != nil {
		return false, wrapQueueErr(err)
	}
	return ok, nil
}

func (p *Provider) CreateQueue(ctx context.Context, name string, opts aimq.CreateQueueOptions) (aimq.QueueInfo, error) {
	if _, err := p.db.NewRaw("SELECT pgmq.create(?)", name).Exec(ctx); err != nil {
		return aimq.QueueInfo{}, err
	}
	if opts.WithRealtime {
		return p.EnableQueueRealtime(ctx, name, opts.ChannelName, opts.EventName)
	}
	return p.queueInfo(ctx, name)
}

func (p *Provider) ListQueues(ctx context.Context) ([]aimq.QueueInfo, error) {
	var metrics []metricsRow
	if err := p.db.NewRaw("SELECT * FROM pgmq.metrics_all()").Scan(ctx, &metrics); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	infos := make([]aimq.QueueInfo, 0, len(metrics))
	for _, m := range metrics {
		_, enabled := p.realtime[m.QueueName]
		infos = append(infos, m.toQueueInfo(enabled))
	}
	return infos, nil
}

// Peek implements aimq.Observer: it returns up to limit queues'
// metrics, reusing ListQueues since PGMQ's pgmq.metrics_all() already
// returns exactly the read-only snapshot Observer promises.
func (p *Provider) Peek(ctx context.Context, limit int) ([]aimq.QueueInfo, error) {
	infos, err := p.ListQueues(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(infos) {
		infos = infos[:limit]
	}
	return infos, nil
}

func (p *Provider) EnableQueueRealtime(ctx context.Context, name, channel, event string) (aimq.QueueInfo, error) {
	if channel == "" {
		channel = "aimq:jobs"
	}
	if event == "" {
		event = "job_enqueued"
	}
	p.mu.Lock()
	p.realtime[name] = realtimeConfig{channel: channel, event: event}
	p.mu.Unlock()
	return p.queueInfo(ctx, name)
}

func (p *Provider) DisableQueueRealtime(ctx context.Context, name string) (aimq.QueueInfo, error) {
	p.mu.Lock()
	delete(p.realtime, name)
	p.mu.Unlock()
	return p.queueInfo(ctx, name)
}

func (p *Provider) queueInfo(ctx context.Context, name string) (aimq.QueueInfo, error) {
	var m metricsRow
	err := p.db.NewRaw("SELECT * FROM pgmq.metrics(?)", name).Scan(ctx, &m)
	if err != nil {
		return aimq.QueueInfo{}, wrapQueueErr(err)
	}
	p.mu.Lock()
	_, enabled := p.realtime[name]
	p.mu.Unlock()
	return m.toQueueInfo(enabled), nil
}

func (p *Provider) notifyIfEnabled(ctx context.Context, queue string, msgID int64) {
	if p.notify == nil {
		return
	}
	p.mu.Lock()
	cfg, ok := p.realtime[queue]
	p.mu.Unlock()
	if !ok {
		return
	}
	p.notify(ctx, cfg.channel, cfg.event, queue, msgID)
}

// wrapQueueErr maps PGMQ's "queue ... does not exist" error, raised as
// a plain Postgres exception, to aimq.ErrQueueNotFound so callers can
// use errors.Is regardless of backend.
func wrapQueueErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if containsQueueNotFound(err.Error()) {
		return fmt.Errorf("%w: %s", aimq.ErrQueueNotFound, err.Error())
	}
	return err
}

func containsQueueNotFound(msg string) bool {
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}
