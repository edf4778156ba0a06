/*
Engine is the handle through which a goroutine owns an event loop. While Run is
executing, calls made from handlers on the loop goroutine reach the live loop
directly; calls made while the loop is idle take the engine lock; calls from
other goroutines while the loop runs are shipped over the wake channel.
*/
package engine

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moqsien/processes/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/moqsien/gkevent/eloop"
	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/poll"
	"github.com/moqsien/gkevent/utils"
	"github.com/moqsien/gkevent/utils/errs"
)

type Engine struct {
	Loop     *eloop.Eloop
	Options  *iface.Options
	mu       sync.Mutex                  // held by Run for as long as it runs
	live     atomic.Pointer[eloop.Eloop] // non-nil only inside Run
	owner    uint64                      // id of the goroutine inside Run
	running  int32
	closed   int32
	pool     *ants.Pool
	poolErr  error
	poolOnce sync.Once
}

func New(opts ...eloop.Option) (*Engine, error) {
	o := eloop.LoadOptions(opts...)
	p, err := poll.New(o.EventBuffer)
	if err != nil {
		return nil, err
	}
	return NewWithReactor(p, opts...), nil
}

// NewWithReactor builds an engine over an existing reactor.
func NewWithReactor(reactor iface.Reactor, opts ...eloop.Option) *Engine {
	o := eloop.LoadOptions(opts...)
	return &Engine{Loop: eloop.New(reactor, o), Options: o}
}

func (that *Engine) onLoopGoroutine() bool {
	owner := atomic.LoadUint64(&that.owner)
	return owner != 0 && owner == utils.GoroutineID()
}

// Run drives the loop on the calling goroutine until Shutdown. A nested call
// from one of its own handlers returns errs.ErrReentrantRun and does nothing.
func (that *Engine) Run() error {
	if atomic.LoadInt32(&that.closed) == 1 {
		return errs.ErrEngineClosed
	}
	if !atomic.CompareAndSwapInt32(&that.running, 0, 1) {
		if that.onLoopGoroutine() {
			logger.Warningf("event loop is already running on this goroutine, nested run ignored")
			return errs.ErrReentrantRun
		}
		return errs.ErrLoopRunning
	}
	defer atomic.StoreInt32(&that.running, 0)

	that.mu.Lock()
	defer that.mu.Unlock()
	if that.Options.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	atomic.StoreUint64(&that.owner, utils.GoroutineID())
	that.live.Store(that.Loop)
	defer func() {
		that.live.Store(nil)
		atomic.StoreUint64(&that.owner, 0)
	}()
	return that.Loop.Run()
}

// Shutdown stops a running loop after its current batch. It does nothing
// when the loop is idle.
func (that *Engine) Shutdown() {
	if !that.Loop.Stop() {
		logger.Warningf("shutdown requested while the event loop is idle")
	}
}

// apply runs cmd on the live loop, on the idle loop, or forwards it to the
// loop goroutine. forwarded, when set, learns how a forwarded command ended.
func (that *Engine) apply(cmd eloop.Command, forwarded func(eloop.Receipt, error)) (eloop.Receipt, error) {
	if atomic.LoadInt32(&that.closed) == 1 {
		return eloop.Receipt{}, errs.ErrEngineClosed
	}
	if cmd.Kind == eloop.CmdNext {
		return that.Loop.Apply(cmd)
	}
	if l := that.live.Load(); l != nil && that.onLoopGoroutine() {
		return l.Apply(cmd)
	}
	if that.mu.TryLock() {
		defer that.mu.Unlock()
		return that.Loop.Apply(cmd)
	}
	return eloop.Receipt{}, that.Loop.Next(func() {
		r, err := that.Loop.Apply(cmd)
		if err != nil {
			logger.Errorf("applying forwarded %v command: %v", cmd.Kind, err)
		}
		if forwarded != nil {
			forwarded(r, err)
		}
	})
}

// Register adds h with its interest (Readable by default) and poll options
// (Level by default). Called from another goroutine while the loop runs, the
// registration happens on the loop goroutine and its failure is logged.
func (that *Engine) Register(h iface.Handler) error {
	if h == nil {
		return errs.ErrNilHandler
	}
	_, err := that.apply(eloop.NewHandlerCommand(h), nil)
	if err != nil {
		logger.Errorf("registering handler for fd %d: %v", h.Fd(), err)
	}
	return err
}

// Timeout runs cb once on the loop goroutine after d.
func (that *Engine) Timeout(cb func(), d time.Duration) (*TimeoutHandle, error) {
	h := &TimeoutHandle{}
	r, err := that.apply(eloop.NewTimeoutCommand(cb, d), func(fr eloop.Receipt, ferr error) {
		if ferr != nil {
			h.fail()
			return
		}
		h.set(fr.Timeout)
	})
	if err != nil {
		return nil, err
	}
	if r.Timeout != nil {
		h.set(r.Timeout)
	}
	return h, nil
}

// Next runs cb on the loop goroutine during a following iteration, in the
// order Next was called.
func (that *Engine) Next(cb func()) error {
	_, err := that.apply(eloop.NewNextCommand(cb), nil)
	return err
}

func (that *Engine) Sender() Sender {
	return Sender{loop: that.Loop}
}

// Offload runs work on the worker pool and hands the continuation it
// returns back to the loop goroutine.
func (that *Engine) Offload(work func() func()) error {
	pool, err := that.workerPool()
	if err != nil {
		return err
	}
	sender := that.Sender()
	return pool.Submit(func() {
		then := work()
		if then == nil {
			return
		}
		if err := sender.Next(then); err != nil {
			logger.Errorf("delivering offloaded result: %v", err)
		}
	})
}

func (that *Engine) workerPool() (*ants.Pool, error) {
	that.poolOnce.Do(func() {
		size := that.Options.WorkerPoolSize
		if size <= 0 {
			size = ants.DefaultAntsPoolSize
		}
		that.pool, that.poolErr = ants.NewPool(size, ants.WithPanicHandler(func(r interface{}) {
			logger.Errorf("offloaded work panicked: %v", r)
		}))
	})
	return that.pool, that.poolErr
}

func (that *Engine) Load() int64 {
	return int64(that.Loop.Registry.Len())
}

func (that *Engine) Stats() eloop.Stats {
	return that.Loop.Stats()
}

// Close releases the loop, its handlers and the worker pool. It fails while
// the loop is running.
func (that *Engine) Close() error {
	if atomic.LoadInt32(&that.running) == 1 {
		return errs.ErrLoopRunning
	}
	if !atomic.CompareAndSwapInt32(&that.closed, 0, 1) {
		return nil
	}
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.pool != nil {
		that.pool.Release()
	}
	return that.Loop.Close()
}

// TimeoutHandle cancels a scheduled callback. It stays valid when the
// timer was armed on the loop goroutine later than the call returned.
type TimeoutHandle struct {
	mu        sync.Mutex
	inner     *eloop.TimeoutHandle
	cancelled bool
	failed    bool // the forwarded timer was never armed
}

func (that *TimeoutHandle) set(inner *eloop.TimeoutHandle) {
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.cancelled {
		inner.Cancel()
		return
	}
	that.inner = inner
}

func (that *TimeoutHandle) fail() {
	that.mu.Lock()
	that.failed = true
	that.mu.Unlock()
}

// Cancel reports whether the callback was still pending.
func (that *TimeoutHandle) Cancel() bool {
	if that == nil {
		return false
	}
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.cancelled || that.failed {
		return false
	}
	that.cancelled = true
	if that.inner == nil {
		return true
	}
	return that.inner.Cancel()
}

// Sender moves work onto the loop goroutine from anywhere.
type Sender struct {
	loop *eloop.Eloop
}

func (that Sender) Next(cb func()) error {
	if that.loop == nil {
		return errs.ErrEngineClosed
	}
	return that.loop.Next(cb)
}
