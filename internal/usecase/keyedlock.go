package usecase

import (
	"context"
	"sync"
)

// KeyedLock serializes work per key in FIFO order.
// Keys are created on demand and never removed.
type KeyedLock struct {
	mu     sync.Mutex
	queues map[string]*keyQueue
}

type keyQueue struct {
	held    bool
	waiters []chan struct{}
}

// Ticket is a reserved position in a key's queue.
type Ticket struct {
	lock  *KeyedLock
	key   string
	ready chan struct{}
	once  sync.Once
}

// NewKeyedLock creates an empty keyed lock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{queues: make(map[string]*keyQueue)}
}

// Enqueue reserves the next position for key. Positions are granted in
// the order Enqueue is called.
func (l *KeyedLock) Enqueue(key string) *Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.queues[key]
	if !ok {
		q = &keyQueue{}
		l.queues[key] = q
	}

	t := &Ticket{lock: l, key: key, ready: make(chan struct{})}
	if !q.held {
		q.held = true
		close(t.ready)
	} else {
		q.waiters = append(q.waiters, t.ready)
	}
	return t
}

// Lock enqueues and waits.
func (l *KeyedLock) Lock(ctx context.Context, key string) (*Ticket, error) {
	t := l.Enqueue(key)
	if err := t.Wait(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// pending returns the number of tickets waiting for key, excluding the holder.
func (l *KeyedLock) pending(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q, ok := l.queues[key]; ok {
		return len(q.waiters)
	}
	return 0
}

// Wait blocks until the ticket holds the key. If ctx ends first the
// ticket gives up its position and ctx.Err() is returned.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	default:
	}
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		t.Release()
		return ctx.Err()
	}
}

// Release hands the key to the next ticket in line, or gives up a
// position that was never granted. Safe to call more than once.
func (t *Ticket) Release() {
	t.once.Do(t.lock.release(t))
}

func (l *KeyedLock) release(t *Ticket) func() {
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		q := l.queues[t.key]

		select {
		case <-t.ready:
			// Holder: pass ownership on.
			if len(q.waiters) == 0 {
				q.held = false
				return
			}
			next := q.waiters[0]
			q.waiters = q.waiters[1:]
			close(next)
		default:
			for i, w := range q.waiters {
				if w == t.ready {
					q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
					return
				}
			}
		}
	}
}
