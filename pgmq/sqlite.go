package pgmq

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	"github.com/bldxio/aimq"
	"github.com/bldxio/aimq/job"
	"github.com/bldxio/aimq/message"
)

// sqliteRow is the fake backend's own jobs table row, standing in for
// PGMQ's per-queue table. Adapted from the teacher's jobModel: a
// single table carries every queue, disambiguated by the Queue
// column, since this fake exists to unit test Queue/WorkerLoop
// dispatch logic rather than to model PGMQ's one-table-per-queue
// layout.
type sqliteRow struct {
	bun.BaseModel `bun:"table:jobs"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Queue         string `bun:"queue,notnull"`

	EnqueuedAt time.Time `bun:"enqueued_at,notnull"`
	VT         time.Time `bun:"vt,notnull"`
	ReadCt     int       `bun:"read_ct,notnull,default:0"`
	Archived   bool      `bun:"archived,notnull,default:false"`

	Message []byte `bun:"message,type:blob"`
}

func (r sqliteRow) toJob(popped bool) (*job.Job, error) {
	var data message.Data
	if len(r.Message) > 0 {
		if err := json.Unmarshal(r.Message, &data); err != nil {
			return nil, err
		}
	}
	return job.FromResponse(r.Queue, job.Response{
		MsgID:      r.ID,
		ReadCt:     r.ReadCt,
		EnqueuedAt: r.EnqueuedAt,
		VT:         r.VT,
		Message:    data,
	}, popped), nil
}

// sqliteProvider reproduces PGMQ-like read/pop/archive/delete
// semantics against an in-memory sqlite table, for tests that exercise
// Queue/WorkerLoop dispatch without a live Postgres+PGMQ instance.
// Grounded nearly verbatim on the teacher's sql.Puller/sql.Pusher
// atomic UPDATE ... WHERE id IN (subquery) RETURNING idiom and
// sql.init.go's InitDB, adapted from a status-machine table to a
// PGMQ-shaped read_ct/vt table.
type sqliteProvider struct {
	db       *bun.DB
	realtime map[string]bool
}

// NewSQLiteProvider opens a fresh in-memory sqlite database, creates
// its table, and returns a QueueProvider backed by it. Each call
// returns an independent database.
func NewSQLiteProvider() (aimq.QueueProvider, error) {
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*sqliteRow)(nil)).IfNotExists().Exec(context.Background()); err != nil {
		return nil, err
	}
	return &sqliteProvider{db: db, realtime: make(map[string]bool)}, nil
}

func (p *sqliteProvider) Send(ctx context.Context, queue string, data message.Data, delay *int) (int64, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	visibleAt := now
	if delay != nil {
		visibleAt = now.Add(time.Duration(*delay) * time.Second)
	}
	row := &sqliteRow{
		Queue:      queue,
		EnqueuedAt: now,
		VT:         visibleAt,
		Message:    raw,
	}
	if _, err := p.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (p *sqliteProvider) SendBatch(ctx context.Context, queue string, data []message.Data, delay *int) ([]int64, error) {
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

// Read atomically claims up to n unarchived, currently-visible rows
// for queue and extends their visibility by vtSeconds, the sqlite
// analogue of sql.Puller.Pull's single UPDATE ... WHERE id IN
// (subquery) RETURNING statement.
func (p *sqliteProvider) Read(ctx context.Context, queue string, vtSeconds int, n int) ([]*job.Job, error) {
	now := time.Now()
	newVT := now.Add(time.Duration(vtSeconds) * time.Second)
	subQuery := p.db.NewSelect().
		Model((*sqliteRow)(nil)).
		Column("id").
		Where("queue = ?", queue).
		Where("archived = ?", false).
		Where("vt <= ?", now).
		Order("enqueued_at ASC").
		Limit(n)
	var rows []sqliteRow
	err := p.db.NewUpdate().
		Model((*sqliteRow)(nil)).
		Set("read_ct = read_ct + 1").
		Set("vt = ?", newVT).
		Where("id IN (?)", subQuery).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	jobs := make([]*job.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toJob(false)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Pop atomically claims and deletes one visible, unarchived row.
func (p *sqliteProvider) Pop(ctx context.Context, queue string) (*job.Job, error) {
	now := time.Now()
	subQuery := p.db.NewSelect().
		Model((*sqliteRow)(nil)).
		Column("id").
		Where("queue = ?", queue).
		Where("archived = ?", false).
		Where("vt <= ?", now).
		Order("enqueued_at ASC").
		Limit(1)
	var rows []sqliteRow
	err := p.db.NewDelete().
		Model((*sqliteRow)(nil)).
		Where("id IN (?)", subQuery).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toJob(true)
}

func (p *sqliteProvider) Archive(ctx context.Context, queue string, id int64) (bool, error) {
	res, err := p.db.NewUpdate().
		Model((*sqliteRow)(nil)).
		Set("archived = ?", true).
		Where("id = ?", id).
		Where("queue = ?", queue).
		Where("archived = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res) > 0, nil
}

func (p *sqliteProvider) Delete(ctx context.Context, queue string, id int64) (bool, error) {
	res, err := p.db.NewDelete().
		Model((*sqliteRow)(nil)).
		Where("id = ?", id).
		Where("queue = ?", queue).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res) > 0, nil
}

func (p *sqliteProvider) CreateQueue(ctx context.Context, name string, opts aimq.CreateQueueOptions) (aimq.QueueInfo, error) {
	if opts.WithRealtime {
		p.realtime[name] = true
	}
	return p.queueInfo(ctx, name)
}

func (p *sqliteProvider) ListQueues(ctx context.Context) ([]aimq.QueueInfo, error) {
	var names []string
	err := p.db.NewSelect().
		Model((*sqliteRow)(nil)).
		ColumnExpr("DISTINCT queue").
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	infos := make([]aimq.QueueInfo, 0, len(names))
	for _, n := range names {
		info, err := p.queueInfo(ctx, n)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (p *sqliteProvider) EnableQueueRealtime(ctx context.Context, name, channel, event string) (aimq.QueueInfo, error) {
	p.realtime[name] = true
	return p.queueInfo(ctx, name)
}

func (p *sqliteProvider) DisableQueueRealtime(ctx context.Context, name string) (aimq.QueueInfo, error) {
	delete(p.realtime, name)
	return p.queueInfo(ctx, name)
}

func (p *sqliteProvider) queueInfo(ctx context.Context, name string) (aimq.QueueInfo, error) {
	count, err := p.db.NewSelect().
		Model((*sqliteRow)(nil)).
		Where("queue = ?", name).
		Where("archived = ?", false).
		Count(ctx)
	if err != nil {
		return aimq.QueueInfo{}, err
	}
	total, err := p.db.NewSelect().
		Model((*sqliteRow)(nil)).
		Where("queue = ?", name).
		Count(ctx)
	if err != nil {
		return aimq.QueueInfo{}, err
	}
	return aimq.QueueInfo{
		Name:            name,
		RealtimeEnabled: p.realtime[name],
		QueueLength:     int64(count),
		TotalMessages:   int64(total),
		ScrapeTime:      time.Now(),
	}, nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
