package eloop

import (
	"fmt"
	"io"
	"sync/atomic"

	fifo "github.com/eapache/queue"
	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils/errs"
)

type slot struct {
	handler iface.Handler
	live    bool
}

// Registry maps tokens to handlers and keeps the reactor in step with them.
// It belongs to the loop goroutine.
type Registry struct {
	reactor  iface.Reactor
	slots    []slot
	free     *fifo.Queue   // tokens ready for reuse
	retired  []iface.Token // tokens freed during the current batch
	capacity int
	count    int64
}

func NewRegistry(reactor iface.Reactor, capacity int) *Registry {
	if capacity <= 0 || capacity > iface.MaxHandlers {
		capacity = iface.MaxHandlers
	}
	return &Registry{
		reactor:  reactor,
		free:     fifo.New(),
		capacity: capacity,
	}
}

func (that *Registry) alloc() (iface.Token, bool) {
	if that.free.Length() > 0 {
		return that.free.Remove().(iface.Token), true
	}
	if len(that.slots) < that.capacity {
		that.slots = append(that.slots, slot{})
		return iface.Token(len(that.slots) - 1), true
	}
	return 0, false
}

// Register stores h under a fresh token and registers its fd with the reactor
// using the handler's interest and poll options.
func (that *Registry) Register(h iface.Handler) (iface.Token, error) {
	if h == nil {
		return 0, errs.ErrNilHandler
	}
	tok, ok := that.alloc()
	if !ok {
		return 0, errs.ErrRegistryFull
	}
	that.slots[tok] = slot{handler: h, live: true}
	if err := that.reactor.Register(h.Fd(), tok, iface.InterestOf(h), iface.PollOptOf(h)); err != nil {
		that.slots[tok] = slot{}
		that.free.Add(tok)
		return 0, fmt.Errorf("%w: register fd %d: %v", errs.ErrReactor, h.Fd(), err)
	}
	atomic.AddInt64(&that.count, 1)
	return tok, nil
}

func (that *Registry) get(tok iface.Token) (iface.Handler, bool) {
	if int(tok) >= len(that.slots) || !that.slots[tok].live {
		return nil, false
	}
	return that.slots[tok].handler, true
}

func (that *Registry) Contains(tok iface.Token) bool {
	_, ok := that.get(tok)
	return ok
}

func (that *Registry) DispatchReadable(tok iface.Token, hint iface.ReadHint) error {
	h, ok := that.get(tok)
	if !ok {
		return nil
	}
	keep := that.call(tok, "readable", func() bool { return h.Readable(hint) })
	return that.settle(tok, h, keep)
}

func (that *Registry) DispatchWritable(tok iface.Token) error {
	h, ok := that.get(tok)
	if !ok {
		return nil
	}
	keep := that.call(tok, "writable", h.Writable)
	return that.settle(tok, h, keep)
}

// call runs one handler callback. A panic counts as a request to stop.
func (that *Registry) call(tok iface.Token, side string, f func() bool) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("handler %d panicked while %s: %v", tok, side, r)
			keep = false
		}
	}()
	return f()
}

func (that *Registry) settle(tok iface.Token, h iface.Handler, keep bool) error {
	if keep {
		if err := that.reactor.Reregister(h.Fd(), tok, iface.InterestOf(h), iface.PollOptOf(h)); err != nil {
			return fmt.Errorf("%w: reregister fd %d: %v", errs.ErrReactor, h.Fd(), err)
		}
		return nil
	}
	return that.remove(tok, h)
}

func (that *Registry) remove(tok iface.Token, h iface.Handler) error {
	that.slots[tok] = slot{}
	that.retired = append(that.retired, tok)
	atomic.AddInt64(&that.count, -1)
	err := that.reactor.Deregister(h.Fd())
	if c, ok := h.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			logger.Warningf("closing handler %d: %v", tok, cerr)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: deregister fd %d: %v", errs.ErrReactor, h.Fd(), err)
	}
	return nil
}

// Flush makes tokens freed since the last call available again. The loop calls
// it between batches so a stale event never reaches a newer handler.
func (that *Registry) Flush() {
	for _, tok := range that.retired {
		that.free.Add(tok)
	}
	that.retired = that.retired[:0]
}

// Clear drops every handler. Deregistration errors are logged.
func (that *Registry) Clear() {
	for i := range that.slots {
		tok := iface.Token(i)
		if h, ok := that.get(tok); ok {
			if err := that.remove(tok, h); err != nil {
				logger.Warningf("%v", err)
			}
		}
	}
	that.Flush()
}

func (that *Registry) Len() int {
	return int(atomic.LoadInt64(&that.count))
}

func (that *Registry) Cap() int {
	return that.capacity
}
