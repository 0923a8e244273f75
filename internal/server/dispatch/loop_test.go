package dispatch

import (
	"testing"
	"time"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := NewLoop()
	go loop.Run()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() {
			got = append(got, i)
		})
	}
	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not drain posted tasks")
	}
	loop.Stop()

	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestLoopRecoversFromPanic(t *testing.T) {
	loop := NewLoop()
	go loop.Run()

	loop.Post(func() { panic("boom") })

	done := make(chan struct{})
	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop died after a panicking task")
	}
	loop.Stop()
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	loop := NewLoop()

	ran := false
	loop.Post(func() { ran = true })

	go loop.Run()
	loop.Stop()

	if !ran {
		t.Error("queued task dropped at shutdown")
	}
}

func TestAfterFiresOnLoop(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	fired := make(chan struct{})
	loop.After(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer task never ran")
	}
}

func TestTimerStopCancels(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	fired := make(chan struct{}, 1)
	timer := loop.After(20*time.Millisecond, func() { fired <- struct{}{} })
	timer.Stop()

	select {
	case <-fired:
		t.Error("stopped timer still fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimerStopNilSafe(t *testing.T) {
	var timer *Timer
	timer.Stop() // must not panic
}
