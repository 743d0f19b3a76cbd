// Package playback provides the ordered audio queue that turns synthesized
// sentences into gap-free speech.
//
// Producers enqueue audio resources as synthesis finishes; a single worker
// goroutine plays them strictly in order, starting each item as soon as the
// previous one ends. The queue tracks a playback session (counters plus a
// generation-complete flag) so the owner learns exactly once when everything
// enqueued for a response has actually been heard.
package playback

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGraceDelay is how long the worker waits before re-verifying an
// observed-complete session. It closes the window where a producer enqueues
// concurrently with the empty check. The residual race is accepted as a
// bounded-probability tradeoff rather than redesigned away.
const DefaultGraceDelay = 150 * time.Millisecond

// Item is one queued audio resource.
type Item struct {
	// ID identifies the item in logs. Assigned on enqueue if empty.
	ID string

	// Text is the sentence this audio was synthesized from.
	Text string

	// Path is the audio file to play.
	Path string

	// Cleanup marks Path as a temporary file the queue deletes once the
	// item has played or been discarded.
	Cleanup bool
}

// Stats is a snapshot of the current playback session.
type Stats struct {
	SessionID string
	Enqueued  int
	Played    int
	Failed    int
}

// Option configures a Queue.
type Option func(*Queue)

// WithGraceDelay overrides the completion re-verification delay.
func WithGraceDelay(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.grace = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l.With("component", "playback")
		}
	}
}

// Queue is a strict-FIFO audio queue drained by one background worker.
// All methods are safe for concurrent use; Stop is additionally safe to
// call from the worker's own callbacks.
type Queue struct {
	player Player
	grace  time.Duration
	logger *slog.Logger

	mu            sync.Mutex
	items         []*Item
	session       Stats
	genComplete   bool
	firstFired    bool
	completeFired bool
	running       bool

	onComplete  func(Stats)
	onFirstItem func()

	wake      chan struct{}
	cancelRun context.CancelFunc
	done      chan struct{}
}

// NewQueue creates a queue that plays items through the given player.
func NewQueue(player Player, opts ...Option) *Queue {
	q := &Queue{
		player: player,
		grace:  DefaultGraceDelay,
		logger: slog.Default().With("component", "playback"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnComplete registers the session-complete callback. It fires at most once
// per session, after every enqueued item has played and the producer has
// signalled that no more will arrive.
func (q *Queue) OnComplete(fn func(Stats)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onComplete = fn
}

// OnFirstItem registers the callback invoked exactly once per session, just
// before the first item starts playing. The conversation loop uses it to
// gate the transition into speaking.
func (q *Queue) OnFirstItem(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onFirstItem = fn
}

// StartSession resets the session counters and starts the playback worker
// if it is not already running. Returns the new session ID.
func (q *Queue) StartSession() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.session = Stats{SessionID: uuid.NewString()}
	q.genComplete = false
	q.firstFired = false
	q.completeFired = false

	if !q.running {
		q.running = true
		ctx, cancel := context.WithCancel(context.Background())
		q.cancelRun = cancel
		q.wake = make(chan struct{}, 1)
		q.done = make(chan struct{})
		go q.run(ctx, q.wake, q.done)
	}

	q.logger.Debug("playback session started", "session", q.session.SessionID)
	return q.session.SessionID
}

// Enqueue appends an item to the queue. Never blocks; safe to call while
// the worker drains concurrently.
func (q *Queue) Enqueue(item Item) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	q.mu.Lock()
	q.items = append(q.items, &item)
	q.session.Enqueued++
	wake := q.wake
	q.mu.Unlock()

	q.logger.Debug("item enqueued", "item", item.ID, "text", item.Text)
	signal(wake)
}

// SignalGenerationComplete marks that no further items will be enqueued for
// this session, arming the completion check.
func (q *Queue) SignalGenerationComplete() {
	q.mu.Lock()
	q.genComplete = true
	wake := q.wake
	session := q.session.SessionID
	q.mu.Unlock()

	q.logger.Debug("generation complete signalled", "session", session)
	signal(wake)
}

// Stop halts the worker. With clear set, unplayed items are discarded and
// their temporary files removed. Stop only signals; it never joins the
// worker, which makes it safe to call from the worker's own callbacks.
func (q *Queue) Stop(clear bool) {
	q.mu.Lock()
	cancel := q.cancelRun
	q.cancelRun = nil
	var discarded []*Item
	if clear {
		discarded = q.items
		q.items = nil
	}
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, it := range discarded {
		q.discard(it)
	}
	if len(discarded) > 0 {
		q.logger.Debug("cleared unplayed items", "count", len(discarded))
	}
}

// Wait blocks until the worker has exited, up to the given timeout.
// Returns false if the timeout elapsed first.
func (q *Queue) Wait(timeout time.Duration) bool {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stats returns a snapshot of the current session counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.session
}

// Len returns the number of items waiting to be played.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Running reports whether the playback worker is active.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// run is the playback worker. It blocks on the wake channel when idle and
// owns the completion re-verification.
func (q *Queue) run(ctx context.Context, wake chan struct{}, done chan struct{}) {
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		item, completionCandidate := q.next()
		if item != nil {
			q.play(ctx, item)
			continue
		}

		if completionCandidate {
			// Observed empty with generation complete: wait out the
			// grace delay, then re-verify before firing.
			select {
			case <-ctx.Done():
				return
			case <-wake:
				continue
			case <-time.After(q.grace):
				q.tryComplete()
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
	}
}

// next pops the head item, or reports whether the session looks complete
// from the worker's point of view (queue empty, generation done, playback
// caught up, callback not yet fired).
func (q *Queue) next() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		it := q.items[0]
		q.items = q.items[1:]
		return it, false
	}

	candidate := q.genComplete &&
		!q.completeFired &&
		q.session.Played >= q.session.Enqueued
	return nil, candidate
}

// play runs one item through the player and updates session counters.
func (q *Queue) play(ctx context.Context, item *Item) {
	q.mu.Lock()
	first := !q.firstFired
	q.firstFired = true
	firstCb := q.onFirstItem
	q.mu.Unlock()

	if first && firstCb != nil {
		firstCb()
	}

	err := q.player.Play(ctx, item.Path)

	q.mu.Lock()
	q.session.Played++
	if err != nil {
		q.session.Failed++
	}
	q.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		q.logger.Warn("playback failed", "item", item.ID, "error", err)
	}
	q.discard(item)
}

// tryComplete re-verifies the completion condition after the grace delay
// and fires the callback at most once per session.
func (q *Queue) tryComplete() {
	q.mu.Lock()
	complete := len(q.items) == 0 &&
		q.genComplete &&
		!q.completeFired &&
		q.session.Played >= q.session.Enqueued
	if !complete {
		q.mu.Unlock()
		return
	}
	q.completeFired = true
	cb := q.onComplete
	stats := q.session
	q.mu.Unlock()

	q.logger.Debug("playback session complete",
		"session", stats.SessionID,
		"played", stats.Played,
		"failed", stats.Failed,
	)
	if cb != nil {
		cb(stats)
	}
}

// discard removes an item's temporary file when it was tagged for cleanup.
func (q *Queue) discard(item *Item) {
	if !item.Cleanup || item.Path == "" {
		return
	}
	if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
		q.logger.Debug("cleanup failed", "path", item.Path, "error", err)
	}
}

// signal performs a non-blocking send on a wake channel.
func signal(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
