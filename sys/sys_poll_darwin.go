//go:build darwin

package sys

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils"
)

type rawEvent = unix.Kevent_t

const tcpKeepIdle = unix.TCP_KEEPALIVE

const (
	kSysAdd = "kevent_add"
	kSysDel = "kevent_del"
)

func kevent(pollFd, fd, filter, flags int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filter, flags)
	_, err := unix.Kevent(pollFd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func addFlags(opt iface.PollOpt) int {
	flags := unix.EV_ADD | unix.EV_ENABLE
	if opt.IsEdge() {
		flags |= unix.EV_CLEAR
	}
	if opt.IsOneshot() {
		flags |= unix.EV_ONESHOT
	}
	return flags
}

func Add(pollFd, fd int, interest iface.Interest, opt iface.PollOpt) error {
	flags := addFlags(opt)
	if interest.IsReadable() {
		if err := kevent(pollFd, fd, unix.EVFILT_READ, flags); err != nil {
			return utils.SysError(kSysAdd, err)
		}
	}
	if interest.IsWritable() {
		if err := kevent(pollFd, fd, unix.EVFILT_WRITE, flags); err != nil {
			return utils.SysError(kSysAdd, err)
		}
	}
	return nil
}

func Mod(pollFd, fd int, interest iface.Interest, opt iface.PollOpt) error {
	if !interest.IsReadable() {
		if err := kevent(pollFd, fd, unix.EVFILT_READ, unix.EV_DELETE); err != nil && err != unix.ENOENT {
			return utils.SysError(kSysDel, err)
		}
	}
	if !interest.IsWritable() {
		if err := kevent(pollFd, fd, unix.EVFILT_WRITE, unix.EV_DELETE); err != nil && err != unix.ENOENT {
			return utils.SysError(kSysDel, err)
		}
	}
	return Add(pollFd, fd, interest, opt)
}

func Del(pollFd, fd int) error {
	for _, filter := range []int{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		if err := kevent(pollFd, fd, filter, unix.EV_DELETE); err != nil && err != unix.ENOENT {
			return utils.SysError(kSysDel, err)
		}
	}
	return nil
}

func (that *EventList) Event(i int) (fd int, ready iface.Ready) {
	ev := &that.events[i]
	switch ev.Filter {
	case unix.EVFILT_READ:
		ready |= iface.ReadyReadable
	case unix.EVFILT_WRITE:
		ready |= iface.ReadyWritable
	}
	if ev.Flags&unix.EV_EOF != 0 {
		ready |= iface.ReadyHup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		ready |= iface.ReadyError
	}
	return int(ev.Ident), ready
}

// WaitPoll blocks for at most msec milliseconds, forever when msec < 0.
func WaitPoll(pollFd int, el *EventList, msec int) (int, error) {
	var tsp *unix.Timespec
	if msec >= 0 {
		ts := unix.NsecToTimespec(int64(msec) * 1000000)
		tsp = &ts
	}
	n, err := unix.Kevent(pollFd, nil, el.events, tsp)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, utils.SysError("kevent_wait", err)
	}
	return n, nil
}

// Writev writes iovs in order and stops at the first short or failed write.
func Writev(fd int, iovs [][]byte) (n int, err error) {
	for _, b := range iovs {
		if len(b) == 0 {
			continue
		}
		m, e := unix.Write(fd, b)
		if m > 0 {
			n += m
		}
		if e != nil {
			return n, e
		}
		if m < len(b) {
			return n, nil
		}
	}
	return n, nil
}

var triggerValue = []byte{1}

func Trigger(wakeWriteFd int) error {
	if _, err := unix.Write(wakeWriteFd, triggerValue); err != nil && err != unix.EAGAIN {
		return utils.SysError("pipe_write", err)
	}
	return nil
}

func Drain(wakeFd int) {
	var buf [64]byte
	for {
		if n, err := unix.Read(wakeFd, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

// CreatePoll returns a kqueue fd with the read end of a non-blocking pipe
// registered for wakeups.
func CreatePoll() (pollFd, wakeFd, wakeWriteFd int, err error) {
	pollFd, err = unix.Kqueue()
	if err != nil {
		err = utils.SysError("kqueue", err)
		return
	}
	unix.CloseOnExec(pollFd)
	var p [2]int
	if err = unix.Pipe(p[:]); err != nil {
		unix.Close(pollFd)
		err = utils.SysError("pipe", err)
		return
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err = unix.SetNonblock(fd, true); err != nil {
			unix.Close(pollFd)
			unix.Close(p[0])
			unix.Close(p[1])
			err = utils.SysError("setnonblock", err)
			return
		}
	}
	if err = Add(pollFd, p[0], iface.Readable, iface.Edge); err != nil {
		unix.Close(pollFd)
		unix.Close(p[0])
		unix.Close(p[1])
		return
	}
	wakeFd, wakeWriteFd = p[0], p[1]
	return
}
