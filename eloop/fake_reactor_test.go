package eloop

import (
	"errors"
	"sync"
	"time"

	"github.com/moqsien/gkevent/iface"
)

type call struct {
	op       string
	fd       int
	token    iface.Token
	interest iface.Interest
	opt      iface.PollOpt
}

// fakeReactor records every call and hands out scripted batches.
type fakeReactor struct {
	mu        sync.Mutex
	calls     []call
	scripted  []iface.Batch
	tasks     []iface.Task
	armed     map[iface.TimerID]time.Duration
	nextTimer iface.TimerID
	kick      chan struct{}

	failRegister   error
	failReregister error
	failWait       error
	closed         bool
}

func newFakeReactor() *fakeReactor {
	return &fakeReactor{
		armed: make(map[iface.TimerID]time.Duration),
		kick:  make(chan struct{}, 1),
	}
}

var errInjected = errors.New("injected")

func (that *fakeReactor) record(c call) {
	that.mu.Lock()
	that.calls = append(that.calls, c)
	that.mu.Unlock()
}

func (that *fakeReactor) Register(fd int, token iface.Token, interest iface.Interest, opt iface.PollOpt) error {
	if that.failRegister != nil {
		return that.failRegister
	}
	that.record(call{"register", fd, token, interest, opt})
	return nil
}

func (that *fakeReactor) Reregister(fd int, token iface.Token, interest iface.Interest, opt iface.PollOpt) error {
	if that.failReregister != nil {
		return that.failReregister
	}
	that.record(call{"reregister", fd, token, interest, opt})
	return nil
}

func (that *fakeReactor) Deregister(fd int) error {
	that.record(call{op: "deregister", fd: fd})
	return nil
}

// push scripts a batch for a later Wait.
func (that *fakeReactor) push(b iface.Batch) {
	that.mu.Lock()
	that.scripted = append(that.scripted, b)
	that.mu.Unlock()
	that.signal()
}

func (that *fakeReactor) signal() {
	select {
	case that.kick <- struct{}{}:
	default:
	}
}

func (that *fakeReactor) Wait(b *iface.Batch) error {
	b.Reset()
	for {
		that.mu.Lock()
		if that.failWait != nil {
			that.mu.Unlock()
			return that.failWait
		}
		if len(that.scripted) > 0 || len(that.tasks) > 0 {
			if len(that.scripted) > 0 {
				next := that.scripted[0]
				that.scripted = that.scripted[1:]
				b.IO = append(b.IO, next.IO...)
				b.Timers = append(b.Timers, next.Timers...)
			}
			b.Tasks = append(b.Tasks, that.tasks...)
			that.tasks = nil
			that.mu.Unlock()
			return nil
		}
		that.mu.Unlock()
		select {
		case <-that.kick:
		case <-time.After(5 * time.Millisecond):
			// an empty wakeup, like EINTR
			return nil
		}
	}
}

func (that *fakeReactor) ArmTimer(d time.Duration) (iface.TimerID, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.nextTimer++
	that.armed[that.nextTimer] = d
	return that.nextTimer, nil
}

func (that *fakeReactor) CancelTimer(id iface.TimerID) bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	_, ok := that.armed[id]
	delete(that.armed, id)
	return ok
}

// expire reports an armed timer in the next batch.
func (that *fakeReactor) expire(id iface.TimerID) {
	that.mu.Lock()
	delete(that.armed, id)
	that.mu.Unlock()
	that.push(iface.Batch{Timers: []iface.TimerID{id}})
}

func (that *fakeReactor) Notify(task iface.Task) error {
	that.mu.Lock()
	that.tasks = append(that.tasks, task)
	that.mu.Unlock()
	that.signal()
	return nil
}

func (that *fakeReactor) Wake() error {
	that.signal()
	return nil
}

func (that *fakeReactor) Close() error {
	that.mu.Lock()
	that.closed = true
	that.mu.Unlock()
	return nil
}

func (that *fakeReactor) ops() []string {
	that.mu.Lock()
	defer that.mu.Unlock()
	out := make([]string, 0, len(that.calls))
	for _, c := range that.calls {
		out = append(out, c.op)
	}
	return out
}

func (that *fakeReactor) count(op string) (n int) {
	for _, o := range that.ops() {
		if o == op {
			n++
		}
	}
	return
}

// scriptHandler returns canned answers and counts calls.
type scriptHandler struct {
	fd       int
	reads    int
	writes   int
	onRead   func(hint iface.ReadHint) bool
	onWrite  func() bool
	interest iface.Interest
	opt      iface.PollOpt
	closed   int
}

func (that *scriptHandler) Fd() int { return that.fd }

func (that *scriptHandler) Readable(hint iface.ReadHint) bool {
	that.reads++
	if that.onRead == nil {
		return true
	}
	return that.onRead(hint)
}

func (that *scriptHandler) Writable() bool {
	that.writes++
	if that.onWrite == nil {
		return true
	}
	return that.onWrite()
}

func (that *scriptHandler) Interest() iface.Interest { return that.interest }

func (that *scriptHandler) PollOpt() iface.PollOpt { return that.opt }

func (that *scriptHandler) Close() error {
	that.closed++
	return nil
}
