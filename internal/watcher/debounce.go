package watcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// DefaultDelay is used when a non-positive debounce delay is given.
const DefaultDelay = 200 * time.Millisecond

// Debouncer coalesces events into batches. A batch is emitted once no event
// has arrived for the delay; it holds one event per path with the operations
// seen for that path merged.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*Event
	timer   *time.Timer
	stopped bool

	batches chan []Event
	stopCh  chan struct{}
}

// NewDebouncer creates a debouncer.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*Event),
		batches: make(chan []Event, 1),
		stopCh:  make(chan struct{}),
	}
}

// Add records an event and restarts the quiet period.
func (d *Debouncer) Add(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[e.Path]; ok {
		p.Op |= e.Op
		p.Timestamp = e.Timestamp
	} else {
		ev := e
		d.pending[e.Path] = &ev
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

// Batches returns the channel of coalesced batches.
func (d *Debouncer) Batches() <-chan []Event {
	return d.batches
}

// Pending returns the number of paths waiting for the quiet period.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush emits the pending batch immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

// Stop discards pending events. Batches is not closed.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]*Event)
	close(d.stopCh)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if len(d.pending) == 0 || d.stopped {
		d.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, *e)
	}
	d.pending = make(map[string]*Event)
	d.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.batches <- batch:
	case <-d.stopCh:
	}
}

// Run feeds w's events through a debouncer and calls onBatch for each batch
// until ctx is done or w's channels close. Watcher errors are logged.
func Run(ctx context.Context, w Watcher, delay time.Duration, log logr.Logger, onBatch func([]Event)) error {
	d := NewDebouncer(delay)
	defer d.Stop()

	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-events:
			if !ok {
				return nil
			}
			log.V(2).Info("file event", "path", e.Path, "op", e.Op.String())
			d.Add(e)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			log.Error(err, "watcher error")

		case batch := <-d.Batches():
			onBatch(batch)
		}
	}
}
