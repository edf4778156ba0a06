//go:build linux || darwin

package sys

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/utils"
)

const (
	MaxPollSize         = 1024
	MinPollSize         = 32
	InitPollSize        = 128
	DefaultTCPKeepAlive = 15 // Seconds
	IovMax              = 1024
)

var (
	EAGAIN = unix.EAGAIN
	EINTR  = unix.EINTR
)

func CloseFd(fd int) error {
	return unix.Close(fd)
}

func SetKeepAlive(fd int, timeout ...int) (err error) {
	// timeout in seconds.
	secs := DefaultTCPKeepAlive
	if len(timeout) > 0 && timeout[0] > 0 {
		secs = timeout[0]
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return utils.SysError("setsockopt", err)
	}
	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
		return utils.SysError("setsockopt", err)
	}
	return utils.SysError("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpKeepIdle, secs))
}

func SetNonblock(fd int) error {
	return utils.SysError("setnonblock", unix.SetNonblock(fd, true))
}

func Write(fd int, p []byte) (n int, err error) {
	return unix.Write(fd, p)
}

func Read(fd int, p []byte) (n int, err error) {
	return unix.Read(fd, p)
}

// IsTemporary reports errors after which a non-blocking call should be retried later.
func IsTemporary(err error) bool {
	return err == unix.EAGAIN || err == unix.EINTR
}

// EventList is the platform event buffer filled by WaitPoll.
type EventList struct {
	size   int
	events []rawEvent
}

func NewEventList(size int) *EventList {
	if size < MinPollSize {
		size = MinPollSize
	}
	if size > MaxPollSize {
		size = MaxPollSize
	}
	return &EventList{size: size, events: make([]rawEvent, size)}
}

func (that *EventList) Size() int { return that.size }

func (that *EventList) Expand() {
	if newSize := that.size << 1; newSize <= MaxPollSize {
		that.size = newSize
		that.events = make([]rawEvent, newSize)
	}
}

func (that *EventList) Shrink() {
	if newSize := that.size >> 1; newSize >= MinPollSize {
		that.size = newSize
		that.events = make([]rawEvent, newSize)
	}
}
