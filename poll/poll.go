//go:build linux || darwin

/*
Poller is the reactor a loop drives: readiness for registered descriptors,
one-shot timers and a wake channel that any goroutine may push tasks into.
It wraps the platform calls of package sys.
*/
package poll

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/sys"
	"github.com/moqsien/gkevent/utils"
	"github.com/moqsien/gkevent/utils/errs"
	"github.com/moqsien/gkevent/utils/queue"
)

type Poller struct {
	pollFd      int                      // poll file descriptor
	wakeFd      int                      // read end of the wake channel
	wakeWriteFd int                      // write end, same as wakeFd with eventfd
	tasks       *queue.Queue[iface.Task] // tasks pushed by Notify
	toTrigger   int32                    // atomic flag coalescing wake writes
	closed      int32
	tokens      map[int]iface.Token // fd -> token
	events      *sys.EventList
	timers      *timerQueue
}

var _ iface.Reactor = (*Poller)(nil)

func New(eventBuffer ...int) (p *Poller, err error) {
	size := sys.InitPollSize
	if len(eventBuffer) > 0 && eventBuffer[0] > 0 {
		size = eventBuffer[0]
	}
	p = new(Poller)
	p.pollFd, p.wakeFd, p.wakeWriteFd, err = sys.CreatePoll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrReactor, err)
	}
	p.tasks = queue.New[iface.Task]()
	p.tokens = make(map[int]iface.Token)
	p.events = sys.NewEventList(size)
	p.timers = newTimerQueue()
	return
}

func (that *Poller) Register(fd int, token iface.Token, interest iface.Interest, opt iface.PollOpt) error {
	if err := sys.Add(that.pollFd, fd, interest, opt); err != nil {
		return err
	}
	that.tokens[fd] = token
	return nil
}

func (that *Poller) Reregister(fd int, token iface.Token, interest iface.Interest, opt iface.PollOpt) error {
	if err := sys.Mod(that.pollFd, fd, interest, opt); err != nil {
		return err
	}
	that.tokens[fd] = token
	return nil
}

func (that *Poller) Deregister(fd int) error {
	delete(that.tokens, fd)
	return sys.Del(that.pollFd, fd)
}

func (that *Poller) ArmTimer(d time.Duration) (iface.TimerID, error) {
	if atomic.LoadInt32(&that.closed) == 1 {
		return 0, errs.ErrEngineClosed
	}
	return that.timers.arm(time.Now(), d), nil
}

func (that *Poller) CancelTimer(id iface.TimerID) bool {
	return that.timers.cancel(id)
}

// Notify queues a task for the loop goroutine. Safe for concurrent use.
func (that *Poller) Notify(task iface.Task) (err error) {
	if atomic.LoadInt32(&that.closed) == 1 {
		return errs.ErrEngineClosed
	}
	that.tasks.Enqueue(task)
	if atomic.CompareAndSwapInt32(&that.toTrigger, 0, 1) {
		err = sys.Trigger(that.wakeWriteFd)
	}
	return
}

func (that *Poller) Wake() error {
	if atomic.LoadInt32(&that.closed) == 1 {
		return errs.ErrEngineClosed
	}
	return sys.Trigger(that.wakeWriteFd)
}

// Wait blocks until a descriptor is ready, a timer expires, a task arrives or
// Wake is called, then fills b. An interrupted wait yields an empty batch.
func (that *Poller) Wait(b *iface.Batch) error {
	b.Reset()
	msec := -1
	if !that.tasks.IsEmpty() {
		msec = 0
	} else if d, ok := that.timers.untilNext(time.Now()); ok {
		msec = msecCeil(d)
	}

	n, err := sys.WaitPoll(that.pollFd, that.events, msec)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		fd, ready := that.events.Event(i)
		if fd == that.wakeFd {
			sys.Drain(fd)
			continue
		}
		if token, ok := that.tokens[fd]; ok {
			b.IO = append(b.IO, iface.IOEvent{Token: token, Ready: ready})
		}
	}
	if n == that.events.Size() {
		that.events.Expand()
	} else if n < that.events.Size()>>1 {
		that.events.Shrink()
	}

	b.Timers = that.timers.expired(time.Now(), b.Timers)

	atomic.StoreInt32(&that.toTrigger, 0)
	for i := 0; i < iface.MaxTasks; i++ {
		task, ok := that.tasks.Dequeue()
		if !ok {
			break
		}
		b.Tasks = append(b.Tasks, task)
	}
	return nil
}

func (that *Poller) Close() error {
	if !atomic.CompareAndSwapInt32(&that.closed, 0, 1) {
		return nil
	}
	err := utils.SysError("pollfd_close", sys.CloseFd(that.pollFd))
	if that.wakeWriteFd != that.wakeFd {
		_ = sys.CloseFd(that.wakeWriteFd)
	}
	_ = sys.CloseFd(that.wakeFd)
	return err
}
