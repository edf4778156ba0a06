//go:build linux || darwin

package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils/errs"
)

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	require.NoError(t, unix.SetNonblock(p[0], true))
	require.NoError(t, unix.SetNonblock(p[1], true))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

func newPoller(t *testing.T) *Poller {
	t.Helper()
	p, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPollerReadable(t *testing.T) {
	p := newPoller(t)
	r, w := newPipe(t)
	require.NoError(t, p.Register(r, 7, iface.Readable, iface.Level))

	_, err := unix.Write(w, []byte("x"))
	require.NoError(t, err)

	var b iface.Batch
	require.NoError(t, p.Wait(&b))
	require.Len(t, b.IO, 1)
	assert.Equal(t, iface.Token(7), b.IO[0].Token)
	assert.True(t, b.IO[0].Ready.IsReadable())

	// level triggered: still ready until drained
	require.NoError(t, p.Wait(&b))
	require.Len(t, b.IO, 1)

	require.NoError(t, p.Deregister(r))
	require.NoError(t, p.Wake())
	require.NoError(t, p.Wait(&b))
	assert.Empty(t, b.IO)
}

func TestPollerReregisterWritable(t *testing.T) {
	p := newPoller(t)
	_, w := newPipe(t)
	require.NoError(t, p.Register(w, 1, iface.Writable, iface.Edge))
	require.NoError(t, p.Reregister(w, 2, iface.Writable, iface.Level))

	var b iface.Batch
	require.NoError(t, p.Wait(&b))
	require.NotEmpty(t, b.IO)
	assert.Equal(t, iface.Token(2), b.IO[0].Token)
	assert.True(t, b.IO[0].Ready.IsWritable())
}

func TestPollerNotifyFIFO(t *testing.T) {
	p := newPoller(t)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, p.Notify(func() { got = append(got, i) }))
	}

	var b iface.Batch
	require.NoError(t, p.Wait(&b))
	require.Len(t, b.Tasks, 5)
	for _, task := range b.Tasks {
		task()
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestPollerNotifyBounded(t *testing.T) {
	p := newPoller(t)
	for i := 0; i < iface.MaxTasks+10; i++ {
		require.NoError(t, p.Notify(func() {}))
	}
	var b iface.Batch
	require.NoError(t, p.Wait(&b))
	assert.Len(t, b.Tasks, iface.MaxTasks)
	// the rest is picked up without blocking
	require.NoError(t, p.Wait(&b))
	assert.Len(t, b.Tasks, 10)
}

func TestPollerTimer(t *testing.T) {
	p := newPoller(t)
	start := time.Now()
	id, err := p.ArmTimer(20 * time.Millisecond)
	require.NoError(t, err)

	var b iface.Batch
	for len(b.Timers) == 0 {
		require.NoError(t, p.Wait(&b))
	}
	assert.Equal(t, []iface.TimerID{id}, b.Timers)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.False(t, p.CancelTimer(id))
}

func TestPollerCancelTimer(t *testing.T) {
	p := newPoller(t)
	id, err := p.ArmTimer(5 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, p.CancelTimer(id))

	keep, err := p.ArmTimer(15 * time.Millisecond)
	require.NoError(t, err)
	var b iface.Batch
	for len(b.Timers) == 0 {
		require.NoError(t, p.Wait(&b))
	}
	assert.Equal(t, []iface.TimerID{keep}, b.Timers)
}

func TestPollerWakeFromOtherGoroutine(t *testing.T) {
	p := newPoller(t)
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Wake()
	}()
	var b iface.Batch
	require.NoError(t, p.Wait(&b))
	assert.True(t, b.IsEmpty())
}

func TestPollerClosed(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.ErrorIs(t, p.Notify(func() {}), errs.ErrEngineClosed)
	_, err = p.ArmTimer(time.Second)
	assert.ErrorIs(t, err, errs.ErrEngineClosed)
}
