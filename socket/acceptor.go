//go:build linux || darwin

package socket

import (
	"net"

	"github.com/moqsien/processes/logger"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/iface"
)

// Acceptor accepts every pending connection on a Listener whenever it turns
// readable and hands the new non-blocking fd to OnAccept, which owns it.
type Acceptor struct {
	Listener  *Listener
	OnAccept  func(fd int, remote net.Addr)
	KeepAlive int // seconds, 0 leaves the default
}

func (that *Acceptor) Fd() int { return that.Listener.Fd() }

func (that *Acceptor) Readable(hint iface.ReadHint) bool {
	for {
		nfd, sa, err := accept(that.Listener.Fd())
		switch err {
		case nil:
		case unix.EAGAIN:
			return true
		case unix.EINTR, unix.ECONNABORTED:
			continue
		default:
			logger.Errorf("accept on %v: %v", that.Listener.Addr(), err)
			return true
		}
		if err = SetKeepAlive(nfd, that.KeepAlive); err != nil {
			logger.Warningf("keepalive on fd %d: %v", nfd, err)
		}
		if that.OnAccept == nil {
			unix.Close(nfd)
			continue
		}
		that.OnAccept(nfd, SockaddrToAddr(sa))
	}
}

func (that *Acceptor) Writable() bool { return true }

func (that *Acceptor) Close() error {
	return that.Listener.Close()
}
