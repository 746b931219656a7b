package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bldxio/aimq"
	"github.com/bldxio/aimq/logger"
)

// Notification is the broadcast payload published when a job is
// enqueued, matching the original's {"queue": ..., "job_id": ...}
// broadcast shape.
type Notification struct {
	Queue string `json:"queue"`
	JobID int64  `json:"job_id"`
}

// Config configures a Service.
type Config struct {
	RedisAddr  string
	WorkerName string
	Queues     []string
	Channel    string
	EventName  string
	Logger     *logger.Logger

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Service manages a Redis-backed wake-up and presence channel for one
// worker instance. It runs its connect/listen/reconnect loop in a
// background goroutine started by Start and torn down by Stop.
type Service struct {
	rdb        *goredis.Client
	workerName string
	queues     map[string]bool
	channel    string
	eventName  string
	log        *logger.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu     sync.Mutex
	events map[*aimq.WakeEvent]struct{}

	done    chan struct{}
	cancel  context.CancelFunc
	started bool
}

// New constructs a Service bound to a Redis client built from
// cfg.RedisAddr. It does not connect until Start is called.
func New(cfg Config) *Service {
	queues := make(map[string]bool, len(cfg.Queues))
	for _, q := range cfg.Queues {
		queues[q] = true
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "aimq:jobs"
	}
	event := cfg.EventName
	if event == "" {
		event = "job_enqueued"
	}
	initial := cfg.InitialBackoff
	if initial == 0 {
		initial = time.Second
	}
	maxB := cfg.MaxBackoff
	if maxB == 0 {
		maxB = 60 * time.Second
	}
	return &Service{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 5 * time.Second,
		}),
		workerName:     cfg.WorkerName,
		queues:         queues,
		channel:        channel,
		eventName:      event,
		log:            cfg.Logger,
		initialBackoff: initial,
		maxBackoff:     maxB,
		events:         make(map[*aimq.WakeEvent]struct{}),
	}
}

// Start launches the reconnect/listen loop in a background goroutine.
// Calling Start twice without an intervening Stop is a no-op, matching
// RealtimeWakeupService.start's already-running guard.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		if s.log != nil {
			s.log.Warning("realtime service already running", nil)
		}
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.mu.Unlock()

	go s.run(loopCtx)
	if s.log != nil {
		s.log.Info(fmt.Sprintf("realtime service started for worker %q on channel %q", s.workerName, s.channel), nil)
	}
	return nil
}

// Stop signals the loop to exit and waits up to timeout for it to
// finish disconnecting.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("stopping realtime service...", nil)
	}
	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		if s.log != nil {
			s.log.Info("realtime service stopped", nil)
		}
		return nil
	case <-timer.C:
		if s.log != nil {
			s.log.Warning(fmt.Sprintf("realtime service did not stop within %s", timeout), nil)
		}
		return aimq.ErrStopTimeout
	}
}

// RegisterWorker adds event to the set of WakeEvents notified when a
// monitored queue's job-enqueued notification arrives.
func (s *Service) RegisterWorker(event *aimq.WakeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event] = struct{}{}
	if s.log != nil {
		s.log.Debug(fmt.Sprintf("registered worker event (total: %d)", len(s.events)), nil)
	}
}

// UnregisterWorker removes event from the notified set.
func (s *Service) UnregisterWorker(event *aimq.WakeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, event)
	if s.log != nil {
		s.log.Debug(fmt.Sprintf("unregistered worker event (remaining: %d)", len(s.events)), nil)
	}
}

// UpdatePresence writes this worker's status to the Redis presence
// hash, the Go analogue of the source's channel.track call.
func (s *Service) UpdatePresence(ctx context.Context, status string, currentJobs map[int64]time.Time) {
	jobIDs := make([]int64, 0, len(currentJobs))
	for id := range currentJobs {
		jobIDs = append(jobIDs, id)
	}
	presence := map[string]any{
		"worker":     s.workerName,
		"queues":     queueNames(s.queues),
		"status":     status,
		"job_count":  len(jobIDs),
		"updated_at": time.Now().Unix(),
	}
	raw, err := json.Marshal(presence)
	if err != nil {
		return
	}
	if err := s.rdb.HSet(ctx, presenceKey(s.channel), s.workerName, raw).Err(); err != nil {
		if s.log != nil {
			s.log.Warning(fmt.Sprintf("failed to update presence: %s", err), nil)
		}
	}
}

func presenceKey(channel string) string {
	return channel + ":presence"
}

func queueNames(queues map[string]bool) []string {
	out := make([]string, 0, len(queues))
	for q := range queues {
		out = append(out, q)
	}
	return out
}

// run is the reconnect loop: connect, subscribe, listen until the
// subscription drops or ctx is canceled, then back off and retry.
// Ported from RealtimeWakeupService._run's structure.
func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	defer s.disconnect()

	backoff := s.initialBackoff
	for ctx.Err() == nil {
		sub, err := s.connect(ctx)
		if err != nil {
			if s.log != nil {
				s.log.Error(fmt.Sprintf("realtime connection error: %s", err), map[string]any{"backoff": backoff.String()})
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
			continue
		}
		backoff = s.initialBackoff
		s.listen(ctx, sub)
		_ = sub.Close()
	}
}

func (s *Service) connect(ctx context.Context) (*goredis.PubSub, error) {
	if s.log != nil {
		s.log.Info(fmt.Sprintf("connecting to realtime channel %q...", s.channel), nil)
	}
	sub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	if s.log != nil {
		s.log.Info(fmt.Sprintf("connected to realtime channel %q, listening for %q events", s.channel, s.eventName), nil)
	}
	return sub, nil
}

// listen consumes notifications until the subscription's channel
// closes or ctx is canceled, dispatching each to handleNotification.
func (s *Service) listen(ctx context.Context, sub *goredis.PubSub) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleNotification(msg.Payload)
		}
	}
}

// handleNotification wakes registered workers only if the
// notification names a queue this Service monitors, matching
// RealtimeWakeupService._handle_job_notification's filtering.
func (s *Service) handleNotification(payload string) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		if s.log != nil {
			s.log.Debug(fmt.Sprintf("bad realtime payload: %s", err), nil)
		}
		return
	}
	if s.log != nil {
		s.log.Debug(fmt.Sprintf("job notification received: queue=%s, job_id=%d", n.Queue, n.JobID), nil)
	}
	if !s.queues[n.Queue] {
		if s.log != nil {
			s.log.Debug(fmt.Sprintf("ignoring notification for queue %q (not monitored)", n.Queue), nil)
		}
		return
	}
	s.mu.Lock()
	woken := 0
	for event := range s.events {
		event.Set()
		woken++
	}
	s.mu.Unlock()
	if s.log != nil {
		s.log.Debug(fmt.Sprintf("woke %d worker(s) for queue %q", woken, n.Queue), nil)
	}
}

func (s *Service) disconnect() {
	_ = s.rdb.Close()
}

// Publish broadcasts a job-enqueued notification, the producer side
// of the channel Service itself subscribes to. Callers enqueuing a
// job through a QueueProvider call this to wake idle workers
// immediately instead of waiting for the next poll.
func Publish(ctx context.Context, rdb *goredis.Client, channel string, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, channel, raw).Err()
}
