package storage

import (
	"context"
	"sync"

	"taskquest/result"
)

// Table names a table whose changes can be watched.
type Table string

const (
	TableUsers        Table = "user"
	TableTasks        Table = "tasks"
	TableAttachments  Table = "attachments"
	TableStats        Table = "user_stats"
	TableAchievements Table = "achievements"
	TableLeaderboard  Table = "leaderboard"
)

type listener struct {
	userID string
	tables map[Table]bool
	signal chan struct{}
}

func (l *listener) matches(userID string, table Table) bool {
	if !l.tables[table] {
		return false
	}
	return l.userID == "" || userID == "" || l.userID == userID
}

type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*listener
}

func newBroker() *broker {
	return &broker{subs: make(map[int]*listener)}
}

func (b *broker) add(userID string, tables []Table) (int, <-chan struct{}) {
	l := &listener{userID: userID, tables: make(map[Table]bool), signal: make(chan struct{}, 1)}
	for _, t := range tables {
		l.tables[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = l
	return b.nextID, l.signal
}

func (b *broker) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

func (b *broker) notify(userID string, tables []Table) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.subs {
		for _, t := range tables {
			if !l.matches(userID, t) {
				continue
			}
			// Coalesce: one pending signal is enough to trigger a reload.
			select {
			case l.signal <- struct{}{}:
			default:
			}
			break
		}
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, l := range b.subs {
		close(l.signal)
		delete(b.subs, id)
	}
}

func (b *broker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Notify tells live queries that rows owned by userID changed in the given
// tables. An empty userID reaches every watcher of those tables.
func (s *Store) Notify(userID string, tables ...Table) {
	s.changes.notify(userID, tables)
}

// Watchers reports how many live queries are registered.
func (s *Store) Watchers() int {
	return s.changes.count()
}

// Subscription is a live query. C receives Loading first, then a full result
// after every relevant change. C is closed after Cancel.
type Subscription[T any] struct {
	C <-chan result.Result[T]

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel unregisters the listener and waits for the delivery goroutine.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// Watch starts a live query over tables for userID. load runs once up front
// and again after each notification. The subscription ends when ctx is done
// or Cancel is called.
func Watch[T any](ctx context.Context, s *Store, userID string, tables []Table, load func(context.Context) result.Result[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan result.Result[T])
	done := make(chan struct{})
	id, signal := s.changes.add(userID, tables)

	go func() {
		defer close(done)
		defer close(out)
		defer s.changes.remove(id)

		send := func(r result.Result[T]) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(result.Loading[T]()) {
			return
		}
		if !send(load(ctx)) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
				if !send(load(ctx)) {
					return
				}
			}
		}
	}()

	return &Subscription[T]{C: out, cancel: cancel, done: done}
}
