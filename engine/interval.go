package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/moqsien/processes/logger"
)

type IntervalHandle struct {
	cancelled int32
	mu        sync.Mutex
	pending   *TimeoutHandle
}

func (that *IntervalHandle) isCancelled() bool {
	return atomic.LoadInt32(&that.cancelled) == 1
}

func (that *IntervalHandle) setPending(h *TimeoutHandle) {
	that.mu.Lock()
	that.pending = h
	that.mu.Unlock()
}

// Cancel stops future invocations. An invocation already running completes.
func (that *IntervalHandle) Cancel() {
	atomic.StoreInt32(&that.cancelled, 1)
	that.mu.Lock()
	p := that.pending
	that.mu.Unlock()
	p.Cancel()
}

// Interval runs cb every d on the loop goroutine, first after d. Each run
// schedules the next one through Timeout.
func (that *Engine) Interval(cb func(), d time.Duration) (*IntervalHandle, error) {
	ih := &IntervalHandle{}
	var tick func()
	tick = func() {
		if ih.isCancelled() {
			return
		}
		cb()
		if ih.isCancelled() {
			return
		}
		h, err := that.Timeout(tick, d)
		if err != nil {
			logger.Errorf("re-arming interval: %v", err)
			return
		}
		ih.setPending(h)
	}
	h, err := that.Timeout(tick, d)
	if err != nil {
		return nil, err
	}
	ih.setPending(h)
	return ih, nil
}
