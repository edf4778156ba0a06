//go:build linux

package sys

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils"
)

type rawEvent = unix.EpollEvent

const tcpKeepIdle = unix.TCP_KEEPIDLE

const (
	ReadEvents  = unix.EPOLLPRI | unix.EPOLLIN | unix.EPOLLRDHUP
	WriteEvents = unix.EPOLLOUT
)

func epollEvents(interest iface.Interest, opt iface.PollOpt) (evs uint32) {
	if interest.IsReadable() {
		evs |= ReadEvents
	}
	if interest.IsWritable() {
		evs |= WriteEvents
	}
	if opt.IsEdge() {
		evs |= unix.EPOLLET
	}
	if opt.IsOneshot() {
		evs |= unix.EPOLLONESHOT
	}
	return
}

func epollFdHandler(pollFd, fd, ctlAction int, evs uint32) error {
	var event *unix.EpollEvent
	if ctlAction != unix.EPOLL_CTL_DEL {
		event = &unix.EpollEvent{Events: evs, Fd: int32(fd)}
	}
	err := unix.EpollCtl(pollFd, ctlAction, fd, event)
	var eSysName string
	switch ctlAction {
	case unix.EPOLL_CTL_ADD:
		eSysName = "epoll_ctl_add"
	case unix.EPOLL_CTL_MOD:
		eSysName = "epoll_ctl_mod"
	case unix.EPOLL_CTL_DEL:
		eSysName = "epoll_ctl_del"
	default:
	}
	return utils.SysError(eSysName, err)
}

func Add(pollFd, fd int, interest iface.Interest, opt iface.PollOpt) error {
	return epollFdHandler(pollFd, fd, unix.EPOLL_CTL_ADD, epollEvents(interest, opt))
}

func Mod(pollFd, fd int, interest iface.Interest, opt iface.PollOpt) error {
	return epollFdHandler(pollFd, fd, unix.EPOLL_CTL_MOD, epollEvents(interest, opt))
}

func Del(pollFd, fd int) error {
	return epollFdHandler(pollFd, fd, unix.EPOLL_CTL_DEL, 0)
}

func (that *EventList) Event(i int) (fd int, ready iface.Ready) {
	ev := &that.events[i]
	if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ready |= iface.ReadyReadable
	}
	if ev.Events&unix.EPOLLOUT != 0 {
		ready |= iface.ReadyWritable
	}
	if ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ready |= iface.ReadyHup
	}
	if ev.Events&unix.EPOLLERR != 0 {
		ready |= iface.ReadyError
	}
	return int(ev.Fd), ready
}

// WaitPoll blocks for at most msec milliseconds, forever when msec < 0.
func WaitPoll(pollFd int, el *EventList, msec int) (int, error) {
	n, err := unix.EpollWait(pollFd, el.events, msec)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, utils.SysError("epoll_wait", err)
	}
	return n, nil
}

// Writev writes iovs in one call and reports how many bytes went out.
func Writev(fd int, iovs [][]byte) (int, error) {
	return unix.Writev(fd, iovs)
}

var triggerValue = []byte{1, 0, 0, 0, 0, 0, 0, 0}

func Trigger(wakeWriteFd int) error {
	if _, err := unix.Write(wakeWriteFd, triggerValue); err != nil && err != unix.EAGAIN {
		return utils.SysError("eventfd_write", err)
	}
	return nil
}

func Drain(wakeFd int) {
	var buf [8]byte
	_, _ = unix.Read(wakeFd, buf[:])
}

// CreatePoll returns an epoll fd with an eventfd already registered for wakeups.
// The eventfd serves as both ends of the wake channel.
func CreatePoll() (pollFd, wakeFd, wakeWriteFd int, err error) {
	pollFd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		err = utils.SysError("epoll_create1", err)
		return
	}
	wakeFd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(pollFd)
		err = utils.SysError("eventfd", err)
		return
	}
	if err = Add(pollFd, wakeFd, iface.Readable, iface.Level); err != nil {
		unix.Close(pollFd)
		unix.Close(wakeFd)
		return
	}
	wakeWriteFd = wakeFd
	return
}
