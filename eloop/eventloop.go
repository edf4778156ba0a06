package eloop

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils/errs"
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopping
)

// Eloop drives one reactor: it waits for a batch of events and dispatches
// them to handlers, timer callbacks and queued tasks. Everything except Stop,
// Next, Stats and TimeoutHandle.Cancel must happen on the goroutine that runs
// it, or while it is idle.
type Eloop struct {
	Reactor  iface.Reactor
	Registry *Registry
	Options  *iface.Options
	state    int32
	batch    iface.Batch
	timerMu  sync.Mutex
	timers   map[iface.TimerID]func()
	stats    counters
}

type counters struct {
	runs        atomic.Uint64
	dispatched  atomic.Uint64
	timersFired atomic.Uint64
	tasksRun    atomic.Uint64
}

type Stats struct {
	Runs        uint64 `json:"runs"`
	Handlers    int    `json:"handlers"`
	Dispatched  uint64 `json:"dispatched"`
	TimersFired uint64 `json:"timers_fired"`
	TasksRun    uint64 `json:"tasks_run"`
	Running     bool   `json:"running"`
}

func New(reactor iface.Reactor, opts *iface.Options) *Eloop {
	if opts == nil {
		opts = LoadOptions()
	}
	return &Eloop{
		Reactor:  reactor,
		Registry: NewRegistry(reactor, opts.Capacity),
		Options:  opts,
		timers:   make(map[iface.TimerID]func()),
	}
}

// Run blocks dispatching events until Stop is called or the reactor fails.
func (that *Eloop) Run() error {
	if !atomic.CompareAndSwapInt32(&that.state, stateIdle, stateRunning) {
		return errs.ErrLoopRunning
	}
	defer atomic.StoreInt32(&that.state, stateIdle)
	that.stats.runs.Add(1)

	for atomic.LoadInt32(&that.state) == stateRunning {
		if err := that.Reactor.Wait(&that.batch); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrReactor, err)
		}
		if err := that.dispatch(&that.batch); err != nil {
			return err
		}
	}
	return nil
}

// Stop asks a running loop to return after the current batch. It reports
// false when the loop is not running.
func (that *Eloop) Stop() bool {
	if atomic.CompareAndSwapInt32(&that.state, stateRunning, stateStopping) {
		if err := that.Reactor.Wake(); err != nil {
			logger.Warningf("waking loop for stop: %v", err)
		}
		return true
	}
	return atomic.LoadInt32(&that.state) == stateStopping
}

func (that *Eloop) IsRunning() bool {
	return atomic.LoadInt32(&that.state) != stateIdle
}

// dispatch delivers the whole batch even when the reactor fails on one of
// its events, then reports the first failure.
func (that *Eloop) dispatch(b *iface.Batch) (err error) {
	defer that.Registry.Flush()
	keep := func(e error) {
		if e == nil {
			return
		}
		if err == nil {
			err = e
			return
		}
		logger.Errorf("%v", e)
	}
	for _, ev := range b.IO {
		that.stats.dispatched.Add(1)
		if hint, ok := ev.Ready.Hint(); ok {
			keep(that.Registry.DispatchReadable(ev.Token, hint))
		}
		if ev.Ready.IsWritable() {
			keep(that.Registry.DispatchWritable(ev.Token))
		}
	}
	for _, id := range b.Timers {
		that.fire(id)
	}
	for _, task := range b.Tasks {
		that.stats.tasksRun.Add(1)
		safeExecute(task)
	}
	return
}

func (that *Eloop) fire(id iface.TimerID) {
	that.timerMu.Lock()
	cb, ok := that.timers[id]
	delete(that.timers, id)
	that.timerMu.Unlock()
	if ok {
		that.stats.timersFired.Add(1)
		safeExecute(cb)
	}
}

func safeExecute(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("callback panicked: %v", r)
		}
	}()
	f()
}

// Apply carries out one registration command against this loop.
func (that *Eloop) Apply(cmd Command) (r Receipt, err error) {
	switch cmd.Kind {
	case CmdHandler:
		r.Token, err = that.Registry.Register(cmd.Handler)
	case CmdTimeout:
		r.Timeout, err = that.Timeout(cmd.Callback, cmd.Delay)
	case CmdNext:
		err = that.Next(cmd.Callback)
	default:
		err = fmt.Errorf("%w: %v", errs.ErrUnsupportedOp, cmd.Kind)
	}
	return
}

// Timeout runs cb once on the loop goroutine, no earlier than d from now.
func (that *Eloop) Timeout(cb func(), d time.Duration) (*TimeoutHandle, error) {
	id, err := that.Reactor.ArmTimer(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTimer, err)
	}
	that.timerMu.Lock()
	that.timers[id] = cb
	that.timerMu.Unlock()
	return &TimeoutHandle{loop: that, id: id}, nil
}

// Next queues cb to run on the loop goroutine during a following iteration.
// It is safe to call from any goroutine.
func (that *Eloop) Next(cb func()) error {
	return that.Reactor.Notify(cb)
}

func (that *Eloop) Stats() Stats {
	return Stats{
		Runs:        that.stats.runs.Load(),
		Handlers:    that.Registry.Len(),
		Dispatched:  that.stats.dispatched.Load(),
		TimersFired: that.stats.timersFired.Load(),
		TasksRun:    that.stats.tasksRun.Load(),
		Running:     that.IsRunning(),
	}
}

// Close drops every handler and pending timer and releases the reactor.
func (that *Eloop) Close() error {
	if that.IsRunning() {
		return errs.ErrLoopRunning
	}
	that.Registry.Clear()
	that.timerMu.Lock()
	for id := range that.timers {
		that.Reactor.CancelTimer(id)
		delete(that.timers, id)
	}
	that.timerMu.Unlock()
	return that.Reactor.Close()
}

type TimeoutHandle struct {
	loop *Eloop
	id   iface.TimerID
}

// Cancel prevents the callback from running. It reports whether the callback
// was still pending. Safe to call from any goroutine.
func (that *TimeoutHandle) Cancel() bool {
	if that == nil || that.loop == nil {
		return false
	}
	l := that.loop
	l.timerMu.Lock()
	_, ok := l.timers[that.id]
	delete(l.timers, that.id)
	l.timerMu.Unlock()
	if ok {
		l.Reactor.CancelTimer(that.id)
	}
	return ok
}
