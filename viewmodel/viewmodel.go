// Package viewmodel holds per-screen state for the streaming endpoints. Each
// view model exposes a state snapshot, a change signal, a queue of one-shot
// events and intent methods that call into the usecase and repository
// layers. State slices are replaced on every update and never mutated in
// place, so snapshots can be shared without copying.
package viewmodel

import (
	"context"
	"sync"

	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"
	"taskquest/storage"
)

type EventKind string

const (
	EventNavigateToTask      EventKind = "navigate_to_task"
	EventNavigateBack        EventKind = "navigate_back"
	EventTaskCompleted       EventKind = "task_completed"
	EventLevelUp             EventKind = "level_up"
	EventAchievementUnlocked EventKind = "achievement_unlocked"
	EventMessage             EventKind = "message"
)

// Event is delivered once to whoever reads the queue first.
type Event struct {
	Kind        EventKind          `json:"kind"`
	TaskID      string             `json:"task_id,omitempty"`
	Message     string             `json:"message,omitempty"`
	Points      int                `json:"points,omitempty"`
	Level       int                `json:"level,omitempty"`
	Achievement *model.Achievement `json:"achievement,omitempty"`
}

// eventQueue is an unbounded FIFO. Intents never block on a slow reader and
// no event is dropped.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(events ...Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(events) == 0 {
		return
	}
	q.events = append(q.events, events...)
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) tryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events[0] = Event{}
	q.events = q.events[1:]
	if len(q.events) == 0 {
		q.events = nil
	}
	return e, true
}

// next blocks until an event is queued, the queue is closed or ctx is done.
func (q *eventQueue) next(ctx context.Context) (Event, bool) {
	for {
		if e, ok := q.tryPop(); ok {
			return e, true
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, false
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// holder guards a state value and signals changes. The change channel has
// room for one pending signal, so bursts of updates coalesce.
type holder[S any] struct {
	mu      sync.RWMutex
	state   S
	changed chan struct{}
}

func newHolder[S any](initial S) *holder[S] {
	return &holder[S]{state: initial, changed: make(chan struct{}, 1)}
}

func (h *holder[S]) snapshot() S {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *holder[S]) update(fn func(*S)) {
	h.mu.Lock()
	fn(&h.state)
	h.mu.Unlock()
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// base wires the pieces every view model shares.
type base[S any] struct {
	state  *holder[S]
	events *eventQueue

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (b *base[S]) setup(initial S) {
	b.state = newHolder(initial)
	b.events = newEventQueue()
}

// State returns the current snapshot.
func (b *base[S]) State() S { return b.state.snapshot() }

// Changed receives after each state update. Several updates between two
// reads produce a single receive.
func (b *base[S]) Changed() <-chan struct{} { return b.state.changed }

// NextEvent returns the next one-shot event. ok is false once the view model
// is closed or ctx is done.
func (b *base[S]) NextEvent(ctx context.Context) (Event, bool) {
	return b.events.next(ctx)
}

// Close stops every subscription and ends the event queue.
func (b *base[S]) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	b.events.close()
}

// start derives the context the subscriptions run under. Calling it twice
// replaces the earlier subscriptions.
func (b *base[S]) start(ctx context.Context) context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	ctx, b.cancel = context.WithCancel(ctx)
	return ctx
}

// consume feeds every emission of sub into apply until the subscription
// ends.
func consume[S, T any](b *base[S], sub *storage.Subscription[T], apply func(result.Result[T])) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for r := range sub.C {
			apply(r)
		}
	}()
}

// completionEvents turns a completion into the events the client celebrates.
func completionEvents(c repository.Completion) []Event {
	if !c.Awarded {
		return nil
	}
	events := []Event{{
		Kind:    EventTaskCompleted,
		TaskID:  c.Task.ID,
		Points:  c.Award.Points,
		Message: "¡Tarea completada!",
	}}
	if c.Award.LeveledUp() {
		events = append(events, Event{
			Kind:    EventLevelUp,
			Level:   c.Award.NewLevel,
			Message: "¡Has subido de nivel!",
		})
	}
	for i := range c.Unlocked {
		a := c.Unlocked[i]
		events = append(events, Event{
			Kind:        EventAchievementUnlocked,
			Achievement: &a,
			Message:     "Logro desbloqueado: " + a.Title,
		})
	}
	return events
}

func errorEvent(message string) Event {
	return Event{Kind: EventMessage, Message: message}
}
