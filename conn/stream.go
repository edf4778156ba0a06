//go:build linux || darwin

/*
Stream is a Handler for a connected non-blocking socket. Inbound bytes are
handed to OnData as they arrive; outbound bytes that the socket cannot take
right away wait in an elastic buffer and the stream asks for writable
readiness until they are flushed.
*/
package conn

import (
	"github.com/moqsien/processes/logger"
	"github.com/panjf2000/gnet/v2/pkg/buffer/elastic"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/sys"
	"github.com/moqsien/gkevent/utils/byteslice"
)

const (
	DefaultReadSize = 16 << 10
	MaxStaticBuffer = 64 << 10
)

type Stream struct {
	fd       int
	out      *elastic.Buffer
	opt      iface.PollOpt
	readSize int
	closing  bool
	closed   bool
	// first fatal error seen
	Err error
	// returning false closes the stream
	OnData  func(s *Stream, data []byte) bool
	OnClose func(s *Stream)
}

func NewStream(fd int, onData func(s *Stream, data []byte) bool) (*Stream, error) {
	out, err := elastic.New(MaxStaticBuffer)
	if err != nil {
		return nil, err
	}
	return &Stream{fd: fd, out: out, readSize: DefaultReadSize, OnData: onData}, nil
}

func (that *Stream) SetPollOpt(opt iface.PollOpt) { that.opt = opt }

func (that *Stream) SetReadSize(n int) {
	if n > 0 {
		that.readSize = n
	}
}

func (that *Stream) Fd() int { return that.fd }

func (that *Stream) PollOpt() iface.PollOpt { return that.opt }

func (that *Stream) Interest() iface.Interest {
	if that.out.IsEmpty() {
		return iface.Readable
	}
	return iface.Readable | iface.Writable
}

// Buffered is the number of outbound bytes still waiting for the socket.
func (that *Stream) Buffered() int {
	return that.out.Buffered()
}

func (that *Stream) finished() bool {
	return that.closed || (that.closing && that.out.IsEmpty())
}

func (that *Stream) Readable(hint iface.ReadHint) bool {
	if hint.IsError() && !hint.IsData() {
		that.Err = sockError(that.fd)
		return false
	}
	buf := byteslice.Get(that.readSize)
	defer byteslice.Put(buf)
	for {
		n, err := sys.Read(that.fd, buf)
		switch {
		case err == sys.EINTR:
			continue
		case err == sys.EAGAIN:
			return !that.finished()
		case err != nil:
			that.Err = err
			return false
		case n == 0:
			return false
		}
		if that.OnData != nil && !that.OnData(that, buf[:n]) {
			return false
		}
		if that.finished() {
			return false
		}
	}
}

func (that *Stream) Writable() bool {
	if err := that.flush(); err != nil {
		that.Err = err
		return false
	}
	return !that.finished()
}

// flush writes as much of the queued output as the socket takes and drops
// what was sent from the buffer.
func (that *Stream) flush() error {
	for !that.out.IsEmpty() {
		iov := that.out.Peek(-1)
		if len(iov) > sys.IovMax {
			iov = iov[:sys.IovMax]
		}
		n, err := sys.Writev(that.fd, iov)
		if n > 0 {
			_, _ = that.out.Discard(n)
		}
		switch err {
		case nil:
		case sys.EINTR:
			continue
		case sys.EAGAIN:
			return nil
		default:
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Write sends p right away when nothing is queued and keeps whatever the
// socket refuses for the next writable event.
func (that *Stream) Write(p []byte) (int, error) {
	if that.closed {
		return 0, unix.EBADF
	}
	if !that.out.IsEmpty() {
		return that.out.Write(p)
	}
	sent, err := sys.Write(that.fd, p)
	if err != nil {
		if !sys.IsTemporary(err) {
			that.Err = err
			return 0, err
		}
		sent = 0
	}
	if sent < len(p) {
		_, _ = that.out.Write(p[sent:])
	}
	return len(p), nil
}

// CloseAfterFlush closes the stream once every queued byte has been sent.
func (that *Stream) CloseAfterFlush() {
	that.closing = true
}

func (that *Stream) Close() error {
	if that.closed {
		return nil
	}
	that.closed = true
	that.out.Release()
	if that.OnClose != nil {
		that.OnClose(that)
	}
	if err := sys.CloseFd(that.fd); err != nil {
		logger.Warningf("closing fd %d: %v", that.fd, err)
		return err
	}
	return nil
}

func sockError(fd int) error {
	code, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if code != 0 {
		return unix.Errno(code)
	}
	return unix.ECONNRESET
}
