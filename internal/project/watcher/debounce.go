package watcher

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// DebouncedWatcher coalesces bursts of events for the same file into one
// event whose Op is the union of the burst. An event is delivered once the
// file has been quiet for the delay, or once maxWait has passed since the
// first event of the burst, whichever comes first. A file that is written
// continuously is therefore still reported periodically.
type DebouncedWatcher struct {
	inner   Watcher
	delay   time.Duration
	maxWait time.Duration

	events chan Event
	errors chan error

	flushReq chan chan struct{}
	countReq chan chan int

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type burst struct {
	event Event
	first time.Time
	due   time.Time
}

// NewDebouncedWatcher wraps inner. A non-positive delay defaults to 100ms.
func NewDebouncedWatcher(inner Watcher, delay time.Duration) *DebouncedWatcher {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	dw := &DebouncedWatcher{
		inner:    inner,
		delay:    delay,
		maxWait:  4 * delay,
		events:   make(chan Event, DefaultConfig().BufferSize),
		errors:   make(chan error, DefaultConfig().BufferSize),
		flushReq: make(chan chan struct{}),
		countReq: make(chan chan int),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go dw.loop()
	return dw
}

func (dw *DebouncedWatcher) Watch(path string) error { return dw.inner.Watch(path) }
func (dw *DebouncedWatcher) Unwatch(path string) error { return dw.inner.Unwatch(path) }
func (dw *DebouncedWatcher) IsWatching(path string) bool { return dw.inner.IsWatching(path) }
func (dw *DebouncedWatcher) Events() <-chan Event { return dw.events }
func (dw *DebouncedWatcher) Errors() <-chan error { return dw.errors }

// Close discards pending bursts and closes the wrapped watcher.
func (dw *DebouncedWatcher) Close() error {
	dw.closeOnce.Do(func() {
		close(dw.done)
		<-dw.stopped
		dw.closeErr = dw.inner.Close()
		close(dw.events)
		close(dw.errors)
	})
	return dw.closeErr
}

// Flush delivers every pending burst immediately.
func (dw *DebouncedWatcher) Flush() {
	reply := make(chan struct{})
	select {
	case dw.flushReq <- reply:
		<-reply
	case <-dw.stopped:
	}
}

// PendingCount returns the number of files with an undelivered burst.
func (dw *DebouncedWatcher) PendingCount() int {
	reply := make(chan int, 1)
	select {
	case dw.countReq <- reply:
		return <-reply
	case <-dw.stopped:
		return 0
	}
}

// loop owns the pending bursts. One timer is armed for the earliest due time.
func (dw *DebouncedWatcher) loop() {
	defer close(dw.stopped)

	pending := make(map[string]*burst)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	arm := func() {
		var next time.Time
		for _, b := range pending {
			if next.IsZero() || b.due.Before(next) {
				next = b.due
			}
		}
		if next.IsZero() {
			timer.Stop()
			return
		}
		timer.Reset(max(time.Until(next), 0))
	}

	innerEvents, innerErrors := dw.inner.Events(), dw.inner.Errors()
	for {
		select {
		case <-dw.done:
			return

		case ev, ok := <-innerEvents:
			if !ok {
				return
			}
			now := time.Now()
			if b, exists := pending[ev.Path]; exists {
				b.event.Op |= ev.Op
				b.event.Timestamp = ev.Timestamp
				b.due = minTime(now.Add(dw.delay), b.first.Add(dw.maxWait))
			} else {
				pending[ev.Path] = &burst{event: ev, first: now, due: now.Add(dw.delay)}
			}
			arm()

		case err, ok := <-innerErrors:
			if !ok {
				innerErrors = nil
				continue
			}
			dw.sendError(err)

		case <-timer.C:
			dw.deliver(pending, time.Now())
			arm()

		case reply := <-dw.flushReq:
			dw.deliver(pending, time.Time{})
			arm()
			close(reply)

		case reply := <-dw.countReq:
			reply <- len(pending)
		}
	}
}

// deliver sends the bursts due at now, in due order. A zero now sends all.
func (dw *DebouncedWatcher) deliver(pending map[string]*burst, now time.Time) {
	var ready []*burst
	for path, b := range pending {
		if now.IsZero() || !b.due.After(now) {
			ready = append(ready, b)
			delete(pending, path)
		}
	}
	slices.SortFunc(ready, func(a, b *burst) int { return a.due.Compare(b.due) })

	for _, b := range ready {
		select {
		case dw.events <- b.event:
		default:
			dw.sendError(fmt.Errorf("%w: %s", ErrEventDropped, b.event.Path))
		}
	}
}

func (dw *DebouncedWatcher) sendError(err error) {
	select {
	case dw.errors <- err:
	default:
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

var _ Watcher = (*DebouncedWatcher)(nil)
