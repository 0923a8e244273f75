package dispatch

import (
	"log"
	"runtime/debug"
	"time"
)

// Loop is the single scheduling context for all game state. Every mutation of
// the shared registries (connections, queue, lobbies, matches, tournaments)
// runs as a task on this loop; timers fire back into it. Handlers therefore
// never need locks and compound mutations are atomic with respect to each
// other.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
}

// NewLoop creates a dispatcher loop. Run must be called before tasks execute.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 1024),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run consumes tasks until Stop is called. A panicking task is logged and
// skipped; it never tears down the loop.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case task := <-l.tasks:
			l.safely(task)
		case <-l.quit:
			// Drain whatever was already queued before shutting down.
			for {
				select {
				case task := <-l.tasks:
					l.safely(task)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) safely(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DISPATCH] handler panic recovered: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}

// Post schedules a task on the loop.
func (l *Loop) Post(task func()) {
	select {
	case l.tasks <- task:
	case <-l.quit:
	}
}

// Stop shuts the loop down and waits for the drain to finish.
func (l *Loop) Stop() {
	close(l.quit)
	<-l.done
}

// Timer is a cancellable delayed task bound to the loop. The task runs on the
// loop, so a fired timer observing stale state can simply re-check and bail.
type Timer struct {
	timer *time.Timer
}

// After schedules task to run on the loop after d. Stop the returned timer to
// cancel; a timer that already fired posts its task exactly once.
func (l *Loop) After(d time.Duration, task func()) *Timer {
	t := time.AfterFunc(d, func() {
		l.Post(task)
	})
	return &Timer{timer: t}
}

// Stop cancels the timer if it has not fired yet.
func (t *Timer) Stop() {
	if t != nil && t.timer != nil {
		t.timer.Stop()
	}
}
