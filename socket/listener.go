//go:build linux || darwin

package socket

import (
	"net"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/sys"
	"github.com/moqsien/gkevent/utils"
	"github.com/moqsien/gkevent/utils/errs"
)

// Listener is a non-blocking listening socket ready to be polled.
type Listener struct {
	fd   int
	addr net.Addr
}

func (that *Listener) Fd() int { return that.fd }

func (that *Listener) Addr() net.Addr { return that.addr }

func (that *Listener) Close() (err error) {
	if that.fd < 0 {
		return nil
	}
	err = utils.SysError("close", unix.Close(that.fd))
	that.fd = -1
	return
}

func tcpSockaddr(network string, addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || (addr.IP == nil && network != "tcp6") {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa
}

// Listen opens a listening socket for "tcp", "tcp4", "tcp6" or "unix".
func Listen(network, address string) (*Listener, error) {
	var (
		family int
		sa     unix.Sockaddr
	)
	switch {
	case strings.HasPrefix(network, "tcp"):
		addr, err := net.ResolveTCPAddr(network, address)
		if err != nil {
			return nil, err
		}
		family, sa = tcpSockaddr(network, addr)
	case network == "unix":
		family, sa = unix.AF_UNIX, &unix.SockaddrUnix{Name: address}
	default:
		return nil, errs.ErrUnsupportedOp
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, utils.SysError("socket", err)
	}
	unix.CloseOnExec(fd)
	fail := func(name string, err error) (*Listener, error) {
		unix.Close(fd)
		return nil, utils.SysError(name, err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		return fail("setnonblock", err)
	}
	if family != unix.AF_UNIX {
		if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fail("setsockopt", err)
		}
	}
	if err = unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fail("listen", err)
	}
	local, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return &Listener{fd: fd, addr: SockaddrToAddr(local)}, nil
}

func SockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP{}, sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP{}, sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrUnix:
		return &net.UnixAddr{Name: sa.Name, Net: "unix"}
	default:
		return nil
	}
}

func SetKeepAlive(fd, secs int) error {
	if secs <= 0 {
		return nil
	}
	return sys.SetKeepAlive(fd, secs)
}
