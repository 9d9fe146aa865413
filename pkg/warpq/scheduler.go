package warpq

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/warpdl/warpq/pkg/logger"
)

const (
	// DefaultConcurrentDownloads is the in-flight limit used when none is given.
	DefaultConcurrentDownloads = 4
	// DefaultTickInterval is the period of the self-healing dispatch.
	DefaultTickInterval = 200 * time.Millisecond
)

// Options configures a Scheduler. Zero values are replaced by defaults;
// nothing is validated.
type Options struct {
	// PriorityLevels is the number of priority levels (default 3).
	PriorityLevels int
	// ConcurrentDownloads bounds the number of in-flight transfers (default 4).
	ConcurrentDownloads int
	// TransportSettings is passed untouched to every Fetch.
	TransportSettings *TransportSettings
	// TickInterval is the period of the dispatch safeguard (default 200ms).
	TickInterval time.Duration
	// Notifier receives every event. Defaults to a new Emitter.
	Notifier Notifier
	// Logger defaults to a NopLogger.
	Logger logger.Logger
	// Registry receives the scheduler metrics. Defaults to a private registry.
	Registry metrics.Registry
	// Rand overrides the random source of the priority queue.
	Rand func() float64
}

// applyOptionDefaults returns a copy of opts with defaults filled in.
func applyOptionDefaults(opts *Options) Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.PriorityLevels <= 0 {
		o.PriorityLevels = DefaultPriorityLevels
	}
	if o.ConcurrentDownloads <= 0 {
		o.ConcurrentDownloads = DefaultConcurrentDownloads
	}
	if o.TransportSettings == nil {
		o.TransportSettings = &TransportSettings{}
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.Notifier == nil {
		o.Notifier = NewEmitter()
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	if o.Registry == nil {
		o.Registry = metrics.NewRegistry()
	}
	return o
}

// attempt is one in-flight transfer of a key. A key that is aborted and
// added again gets a fresh attempt.
type attempt struct {
	id      string
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	// aborted and done are guarded by Scheduler.mu.
	aborted bool
	done    bool
}

// pending collects what a locked section wants to happen once the lock is
// released: events to emit, then transfers to start.
type pending struct {
	events []Event
	starts []*attempt
}

func (p *pending) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	p.events = append(p.events, ev)
}

// Scheduler fetches queued keys through a Transport with at most
// ConcurrentDownloads transfers in flight. Keys are picked from a
// PriorityQueue; every state change is reported to the Notifier.
//
// All methods are safe for concurrent use. Notifications are delivered
// outside the internal lock, so handlers may call back into the Scheduler.
type Scheduler struct {
	mu        sync.Mutex
	pq        *PriorityQueue
	inflight  map[string]*attempt
	limit     int
	transport Transport
	settings  *TransportSettings
	notifier  Notifier
	log       logger.Logger
	metrics   *schedulerMetrics

	stop      chan struct{}
	tickDone  chan struct{}
	closeOnce sync.Once
}

// New creates a Scheduler and starts its periodic dispatch. Call Close to
// stop it.
func New(t Transport, opts *Options) *Scheduler {
	o := applyOptionDefaults(opts)
	var pqOpts []PriorityQueueOption
	if o.Rand != nil {
		pqOpts = append(pqOpts, WithRand(o.Rand))
	}
	s := &Scheduler{
		pq:        NewPriorityQueue(o.PriorityLevels, pqOpts...),
		inflight:  make(map[string]*attempt),
		limit:     o.ConcurrentDownloads,
		transport: t,
		settings:  o.TransportSettings,
		notifier:  o.Notifier,
		log:       o.Logger,
		metrics:   newSchedulerMetrics(o.Registry),
		stop:      make(chan struct{}),
		tickDone:  make(chan struct{}),
	}
	go s.tick(o.TickInterval)
	return s
}

// Notifier returns the notifier events are emitted to.
func (s *Scheduler) Notifier() Notifier {
	return s.notifier
}

// Add queues key at level. Keys currently in flight are ignored. When the
// queue changes, EventAdded is emitted and a dispatch is attempted.
func (s *Scheduler) Add(key string, level int, score float64) {
	var p pending
	s.mu.Lock()
	if _, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		s.log.Debug("add %s ignored: in flight", key)
		return
	}
	if !s.pq.Add(key, level, score) {
		s.mu.Unlock()
		return
	}
	p.emit(Event{Type: EventAdded, Key: key, Level: level})
	s.tryNextLocked(&p)
	s.mu.Unlock()
	s.flush(&p)
}

// Has reports whether key is queued at level (AnyLevel for all levels).
// In-flight keys are not queued.
func (s *Scheduler) Has(key string, level int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.Has(key, level)
}

// GetPriority returns the level of a queued key, or -1.
func (s *Scheduler) GetPriority(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.GetPriority(key)
}

// Size returns the number of queued keys at level (AnyLevel for all).
func (s *Scheduler) Size(level int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.Size(level)
}

// SizePerPriority returns the number of queued keys per level.
func (s *Scheduler) SizePerPriority() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.SizePerPriority()
}

// IsEmpty reports whether no key is queued. In-flight transfers do not count.
func (s *Scheduler) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.IsEmpty()
}

// Levels returns the number of priority levels.
func (s *Scheduler) Levels() int {
	return s.pq.Levels()
}

// Concurrency returns the in-flight limit.
func (s *Scheduler) Concurrency() int {
	return s.limit
}

// Status renders per-level counts and the number of in-flight transfers.
func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s, in-flight: %d", s.pq.Status(), len(s.inflight))
}

// InFlight returns the keys being transferred, sorted.
func (s *Scheduler) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.inflight))
	for k := range s.inflight {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	// Levels holds the queued keys of each level in pop order.
	Levels   [][]string
	InFlight []string
	Limit    int
}

// Snapshot returns the queued keys per level and the in-flight keys.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	levels := make([][]string, s.pq.Levels())
	for i := range levels {
		levels[i] = s.pq.Keys(i)
	}
	s.mu.Unlock()
	return Snapshot{Levels: levels, InFlight: s.InFlight(), Limit: s.limit}
}

// Stats returns the scheduler metrics by name.
func (s *Scheduler) Stats() map[string]float64 {
	return s.metrics.snapshot()
}

// Remove drops a queued key and emits EventRemoved. In-flight transfers are
// not affected; use Abort for those.
func (s *Scheduler) Remove(key string) bool {
	var p pending
	s.mu.Lock()
	ok := s.pq.Remove(key)
	if ok {
		p.emit(Event{Type: EventRemoved, Key: key})
		s.updateGaugesLocked()
	}
	s.mu.Unlock()
	s.flush(&p)
	return ok
}

// SortByScore orders a level (AnyLevel for all) by tie-break score.
func (s *Scheduler) SortByScore(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pq.SortByScore(level)
}

// Reset empties the queue and emits EventReseted. In-flight transfers keep
// running and still report their outcome.
func (s *Scheduler) Reset() {
	var p pending
	s.mu.Lock()
	s.pq.Reset()
	s.updateGaugesLocked()
	p.emit(Event{Type: EventReseted})
	s.mu.Unlock()
	s.flush(&p)
}

// Abort cancels the transfer of key if it is in flight and frees its slot
// right away. EventAborted is emitted once the transport returns. It
// reports whether key was in flight.
func (s *Scheduler) Abort(key string) bool {
	s.mu.Lock()
	a, ok := s.inflight[key]
	if ok {
		a.aborted = true
		delete(s.inflight, key)
		s.updateGaugesLocked()
	}
	s.mu.Unlock()
	if ok {
		s.log.Debug("aborting %s (attempt %s)", key, a.id)
		a.cancel()
	}
	return ok
}

// AbortAll aborts every in-flight transfer.
func (s *Scheduler) AbortAll() {
	for _, key := range s.InFlight() {
		s.Abort(key)
	}
}

// Close stops the periodic dispatch. In-flight transfers are left running.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.tickDone
	})
	return nil
}

// tick retries dispatch periodically in case a trigger was missed.
func (s *Scheduler) tick(interval time.Duration) {
	defer close(s.tickDone)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.tryNext()
		}
	}
}

func (s *Scheduler) tryNext() {
	var p pending
	s.mu.Lock()
	s.tryNextLocked(&p)
	s.mu.Unlock()
	s.flush(&p)
}

// tryNextLocked pops one key and registers its attempt if a slot is free.
// The transfer itself is started by flush.
func (s *Scheduler) tryNextLocked(p *pending) {
	defer s.updateGaugesLocked()
	if len(s.inflight) >= s.limit {
		return
	}
	key, ok := s.pq.Pop()
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		id:      uuid.NewString(),
		key:     key,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
	s.inflight[key] = a
	p.emit(Event{Type: EventDownloading, Key: key, Attempt: a.id})
	p.starts = append(p.starts, a)
}

func (s *Scheduler) updateGaugesLocked() {
	s.metrics.inflight.Update(int64(len(s.inflight)))
	s.metrics.queued.Update(int64(s.pq.Size(AnyLevel)))
}

// flush emits the collected events in order and starts each transfer right
// after its EventDownloading, so the event precedes the outcome and later
// handlers never hold back the fetch. Transfers still pending when a
// handler panics are started anyway; their slots are already taken.
func (s *Scheduler) flush(p *pending) {
	started := 0
	defer func() {
		for ; started < len(p.starts); started++ {
			s.start(p.starts[started])
		}
	}()
	for _, ev := range p.events {
		s.metrics.observe(ev)
		s.notifier.Emit(ev)
		if ev.Type == EventDownloading && started < len(p.starts) && p.starts[started].id == ev.Attempt {
			a := p.starts[started]
			started++
			s.start(a)
		}
	}
}

func (s *Scheduler) start(a *attempt) {
	s.log.Debug("fetching %s (attempt %s)", a.key, a.id)
	safeGo(s.log, "fetch "+a.key, func(r interface{}) {
		s.complete(a, nil, fmt.Errorf("%w: %v", ErrTransportPanic, r))
	}, func() {
		res, err := s.transport.Fetch(a.ctx, a.key, s.settings)
		s.complete(a, res, err)
	})
}

// complete records the terminal outcome of an attempt. It frees the slot if
// the attempt still holds it and triggers exactly one dispatch.
func (s *Scheduler) complete(a *attempt, res *Result, err error) {
	var p pending
	s.mu.Lock()
	if a.done {
		s.mu.Unlock()
		return
	}
	a.done = true
	if cur, ok := s.inflight[a.key]; ok && cur == a {
		delete(s.inflight, a.key)
	}
	if err == nil && res == nil && !a.aborted {
		err = ErrNoResult
	}
	kind := Classify(err, a.aborted)
	switch kind {
	case NoFailure:
		elapsed := res.Elapsed
		if elapsed <= 0 {
			elapsed = time.Since(a.started)
		}
		s.tryNextLocked(&p)
		p.emit(Event{Type: EventSuccess, Key: a.key, Attempt: a.id, Payload: res.Payload, Elapsed: elapsed})
	case CancelledByCaller:
		p.emit(Event{Type: EventAborted, Key: a.key, Attempt: a.id, Err: ErrAborted})
		s.tryNextLocked(&p)
	default:
		p.emit(Event{Type: EventFailed, Key: a.key, Attempt: a.id, Err: err})
		s.tryNextLocked(&p)
	}
	s.mu.Unlock()
	a.cancel()

	switch kind {
	case NoFailure:
		s.log.Info("fetched %s in %s", a.key, time.Since(a.started).Round(time.Millisecond))
	case CancelledByCaller:
		s.log.Info("aborted %s", a.key)
	default:
		s.log.Warning("fetch %s failed (%s): %v", a.key, kind, err)
	}
	s.flush(&p)
}
