package workflow

import (
	"sync"

	"musicforge/internal/job"
)

// outbox is an unbounded FIFO between publishers and a session's updates
// channel, so publishing never waits on the consumer. A pump goroutine
// forwards entries and closes the channel once the outbox is closed and
// empty.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []job.State
	closed bool
	out    chan job.State
}

func newOutbox(buffer int) *outbox {
	o := &outbox{out: make(chan job.State, buffer)}
	o.cond = sync.NewCond(&o.mu)
	go o.pump()
	return o
}

// push appends snap. Progress snapshots are dropped once limit entries are
// waiting; lifecycle snapshots are always kept.
func (o *outbox) push(snap job.State, lifecycle bool, limit int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || (!lifecycle && len(o.items) >= limit) {
		return
	}
	o.items = append(o.items, snap)
	o.cond.Signal()
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.cond.Signal()
	o.mu.Unlock()
}

func (o *outbox) pump() {
	defer close(o.out)
	for {
		o.mu.Lock()
		for len(o.items) == 0 && !o.closed {
			o.cond.Wait()
		}
		if len(o.items) == 0 {
			o.mu.Unlock()
			return
		}
		next := o.items[0]
		o.items[0] = job.State{}
		o.items = o.items[1:]
		o.mu.Unlock()
		o.out <- next
	}
}
