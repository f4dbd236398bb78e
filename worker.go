//go:build linux

package nbio

import (
	"sync"
)

// Run executes the worker pool and blocks until every task has completed.
// Worker zero runs on the calling goroutine; the rest run on their own
// goroutines (each pins an OS thread for the duration of a blocking drain).
//
// Each worker loops: pop a scheduled handle and poll it; otherwise, while
// live tasks remain, block in the drain step; otherwise return. The last
// completion signals the eventfd, and each exiting worker re-signals it so
// the wake cascades through workers still parked in ppoll.
func (r *Runtime) Run(workers int) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 1; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop()
		}()
	}
	r.workerLoop()
	wg.Wait()
}

func (r *Runtime) workerLoop() {
	for {
		if h, ok := r.TakeReady(); ok {
			r.PollOne(h)
			continue
		}
		if r.live.Load() > 0 {
			r.DrainAndWake()
			continue
		}
		r.signalWake()
		return
	}
}
