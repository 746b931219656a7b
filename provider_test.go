package aimq

import (
	"context"
	"sync"
	"time"

	"github.com/bldxio/aimq/job"
	"github.com/bldxio/aimq/message"
)

// fakeProvider is a minimal in-memory QueueProvider used to drive the
// scenario tests in queue_test.go and loop_test.go without a live
// Postgres+PGMQ instance. It favors explicit seeding and call-count
// assertions over faithfully reproducing PGMQ's visibility-timeout
// redelivery, which the scenario tests simulate by hand where needed.
type fakeProvider struct {
	mu      sync.Mutex
	nextID  int64
	pending map[string][]*job.Job
	leased  map[int64]*job.Job

	reads    map[string]int
	pops     map[string]int
	archives map[string]int
	deletes  map[string]int
	sends    map[string]int

	missing map[string]bool
}

var _ QueueProvider = (*fakeProvider)(nil)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pending:  make(map[string][]*job.Job),
		leased:   make(map[int64]*job.Job),
		reads:    make(map[string]int),
		pops:     make(map[string]int),
		archives: make(map[string]int),
		deletes:  make(map[string]int),
		sends:    make(map[string]int),
		missing:  make(map[string]bool),
	}
}

// seed pushes a fully-formed job directly onto queue j.Queue's pending
// list, letting a test dictate Attempt explicitly to simulate
// redelivery with a chosen read_ct without round-tripping a real
// visibility-timeout wait.
func (p *fakeProvider) seed(j *job.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[j.Queue] = append(p.pending[j.Queue], j)
}

// setMissing marks queue as nonexistent: Read and Pop return
// ErrQueueNotFound for it until CreateQueue is called on it.
func (p *fakeProvider) setMissing(queue string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.missing[queue] = true
}

func (p *fakeProvider) Send(ctx context.Context, queue string, data message.Data, delay *int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	now := time.Now()
	p.pending[queue] = append(p.pending[queue], &job.Job{
		ID:         id,
		Queue:      queue,
		Attempt:    1,
		EnqueuedAt: now,
		VisibleAt:  now,
		Data:       data.Clone(),
	})
	p.sends[queue]++
	return id, nil
}

func (p *fakeProvider) SendBatch(ctx context.Context, queue string, data []message.Data, delay *int) ([]int64, error) {
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

func (p *fakeProvider) Read(ctx context.Context, queue string, vtSeconds int, n int) ([]*job.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads[queue]++
	if p.missing[queue] {
		return nil, ErrQueueNotFound
	}
	q := p.pending[queue]
	if len(q) == 0 {
		return nil, nil
	}
	take := n
	if take > len(q) {
		take = len(q)
	}
	out := q[:take]
	p.pending[queue] = q[take:]
	for _, j := range out {
		p.leased[j.ID] = j
	}
	return out, nil
}

func (p *fakeProvider) Pop(ctx context.Context, queue string) (*job.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pops[queue]++
	if p.missing[queue] {
		return nil, ErrQueueNotFound
	}
	q := p.pending[queue]
	if len(q) == 0 {
		return nil, nil
	}
	j := q[0]
	p.pending[queue] = q[1:]
	popped := *j
	popped.Popped = true
	return &popped, nil
}

func (p *fakeProvider) Archive(ctx context.Context, queue string, id int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archives[queue]++
	if _, ok := p.leased[id]; !ok {
		return false, nil
	}
	delete(p.leased, id)
	return true, nil
}

func (p *fakeProvider) Delete(ctx context.Context, queue string, id int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes[queue]++
	if _, ok := p.leased[id]; !ok {
		return false, nil
	}
	delete(p.leased, id)
	return true, nil
}

func (p *fakeProvider) CreateQueue(ctx context.Context, name string, opts CreateQueueOptions) (QueueInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.missing, name)
	if _, ok := p.pending[name]; !ok {
		p.pending[name] = nil
	}
	return QueueInfo{Name: name, RealtimeEnabled: opts.WithRealtime}, nil
}

func (p *fakeProvider) ListQueues(ctx context.Context) ([]QueueInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	infos := make([]QueueInfo, 0, len(p.pending))
	for name, jobs := range p.pending {
		infos = append(infos, QueueInfo{Name: name, QueueLength: int64(len(jobs))})
	}
	return infos, nil
}

func (p *fakeProvider) EnableQueueRealtime(ctx context.Context, name, channel, event string) (QueueInfo, error) {
	return QueueInfo{Name: name, RealtimeEnabled: true}, nil
}

func (p *fakeProvider) DisableQueueRealtime(ctx context.Context, name string) (QueueInfo, error) {
	return QueueInfo{Name: name, RealtimeEnabled: false}, nil
}
