package eloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils/errs"
)

func newTestLoop(t *testing.T) (*Eloop, *fakeReactor) {
	t.Helper()
	fr := newFakeReactor()
	return New(fr, LoadOptions(WithCapacity(16))), fr
}

func runAsync(l *Eloop) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestLoopDispatchesBatch(t *testing.T) {
	l, fr := newTestLoop(t)
	h := &scriptHandler{fd: 7}
	tok, err := l.Registry.Register(h)
	require.NoError(t, err)

	var order []string
	h.onRead = func(hint iface.ReadHint) bool {
		order = append(order, "read")
		assert.True(t, hint.IsData())
		return true
	}
	h.onWrite = func() bool {
		order = append(order, "write")
		return true
	}
	require.NoError(t, l.Next(func() {
		order = append(order, "task")
		l.Stop()
	}))
	fr.push(iface.Batch{IO: []iface.IOEvent{{Token: tok, Ready: iface.ReadyReadable | iface.ReadyWritable}}})

	require.NoError(t, waitDone(t, runAsync(l)))
	assert.Equal(t, []string{"read", "write", "task"}, order)
	assert.Equal(t, uint64(1), l.Stats().Dispatched)
}

func TestLoopHupGoesToReadable(t *testing.T) {
	l, fr := newTestLoop(t)
	var got iface.ReadHint
	h := &scriptHandler{fd: 7, onRead: func(hint iface.ReadHint) bool {
		got = hint
		return false
	}}
	tok, err := l.Registry.Register(h)
	require.NoError(t, err)
	fr.push(iface.Batch{IO: []iface.IOEvent{{Token: tok, Ready: iface.ReadyHup}}})
	require.NoError(t, l.Next(func() { l.Stop() }))

	require.NoError(t, waitDone(t, runAsync(l)))
	assert.True(t, got.IsHup())
	assert.False(t, got.IsData())
	assert.Equal(t, 1, h.closed)
}

func TestLoopTimeout(t *testing.T) {
	l, fr := newTestLoop(t)
	fired := 0
	handle, err := l.Timeout(func() {
		fired++
		l.Stop()
	}, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, fr.armed[handle.id])

	fr.expire(handle.id)
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.Equal(t, 1, fired)
	assert.False(t, handle.Cancel())
	assert.Equal(t, uint64(1), l.Stats().TimersFired)
}

func TestLoopCancelledTimeoutDoesNotFire(t *testing.T) {
	l, fr := newTestLoop(t)
	fired := false
	handle, err := l.Timeout(func() { fired = true }, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, handle.Cancel())
	assert.False(t, handle.Cancel())
	assert.NotContains(t, fr.armed, handle.id)

	// a late expiry report for a cancelled timer is ignored
	fr.push(iface.Batch{Timers: []iface.TimerID{handle.id}})
	require.NoError(t, l.Next(func() { l.Stop() }))
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.False(t, fired)
}

func TestLoopTasksFIFO(t *testing.T) {
	l, _ := newTestLoop(t)
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Next(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Next(func() { l.Stop() }))
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, uint64(11), l.Stats().TasksRun)
}

func TestLoopTaskPanicIsContained(t *testing.T) {
	l, _ := newTestLoop(t)
	ran := false
	require.NoError(t, l.Next(func() { panic("boom") }))
	require.NoError(t, l.Next(func() {
		ran = true
		l.Stop()
	}))
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.True(t, ran)
}

func TestLoopRunTwice(t *testing.T) {
	l, _ := newTestLoop(t)
	var inner error
	require.NoError(t, l.Next(func() {
		inner = l.Run()
		l.Stop()
	}))
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.ErrorIs(t, inner, errs.ErrLoopRunning)
	assert.Equal(t, uint64(1), l.Stats().Runs)
}

func TestLoopStopWhenIdle(t *testing.T) {
	l, _ := newTestLoop(t)
	assert.False(t, l.Stop())
	assert.False(t, l.IsRunning())

	// a refused stop leaves nothing behind for the next run
	ran := 0
	require.NoError(t, l.Next(func() { ran++ }))
	require.NoError(t, l.Next(func() { l.Stop() }))
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.Equal(t, 1, ran)
}

func TestLoopRestartAfterStop(t *testing.T) {
	l, _ := newTestLoop(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Next(func() { l.Stop() }))
		require.NoError(t, waitDone(t, runAsync(l)))
	}
	assert.Equal(t, uint64(3), l.Stats().Runs)
}

func TestLoopReactorErrorEndsRun(t *testing.T) {
	l, fr := newTestLoop(t)
	fr.failWait = errInjected
	err := waitDone(t, runAsync(l))
	assert.ErrorIs(t, err, errs.ErrReactor)
	assert.False(t, l.IsRunning())
}

func TestLoopDispatchErrorEndsRun(t *testing.T) {
	l, fr := newTestLoop(t)
	tok, err := l.Registry.Register(&scriptHandler{fd: 3})
	require.NoError(t, err)
	fr.failReregister = errInjected
	fr.push(iface.Batch{IO: []iface.IOEvent{{Token: tok, Ready: iface.ReadyReadable}}})

	err = waitDone(t, runAsync(l))
	assert.ErrorIs(t, err, errs.ErrReactor)
}

func TestLoopDispatchErrorFinishesBatch(t *testing.T) {
	l, fr := newTestLoop(t)
	tok, err := l.Registry.Register(&scriptHandler{fd: 3})
	require.NoError(t, err)
	fired := false
	handle, err := l.Timeout(func() { fired = true }, time.Millisecond)
	require.NoError(t, err)
	ran := false
	require.NoError(t, l.Next(func() { ran = true }))

	fr.failReregister = errInjected
	fr.mu.Lock()
	delete(fr.armed, handle.id)
	fr.mu.Unlock()
	fr.push(iface.Batch{
		IO:     []iface.IOEvent{{Token: tok, Ready: iface.ReadyReadable}},
		Timers: []iface.TimerID{handle.id},
	})

	err = waitDone(t, runAsync(l))
	assert.ErrorIs(t, err, errs.ErrReactor)
	assert.True(t, fired)
	assert.True(t, ran)
	assert.False(t, handle.Cancel())
	assert.Equal(t, uint64(1), l.Stats().TimersFired)
	assert.Equal(t, uint64(1), l.Stats().TasksRun)
}

func TestApplyCommands(t *testing.T) {
	l, fr := newTestLoop(t)

	r, err := l.Apply(NewHandlerCommand(&scriptHandler{fd: 21}))
	require.NoError(t, err)
	assert.True(t, l.Registry.Contains(r.Token))

	r, err = l.Apply(NewTimeoutCommand(func() {}, time.Second))
	require.NoError(t, err)
	require.NotNil(t, r.Timeout)
	assert.Equal(t, time.Second, fr.armed[r.Timeout.id])

	ran := false
	_, err = l.Apply(NewNextCommand(func() { ran = true }))
	require.NoError(t, err)
	require.NoError(t, l.Next(func() { l.Stop() }))
	require.NoError(t, waitDone(t, runAsync(l)))
	assert.True(t, ran)

	_, err = l.Apply(Command{Kind: CommandKind(9)})
	assert.ErrorIs(t, err, errs.ErrUnsupportedOp)
	assert.Equal(t, "command(9)", CommandKind(9).String())
}

func TestLoopClose(t *testing.T) {
	l, fr := newTestLoop(t)
	h := &scriptHandler{fd: 8}
	_, err := l.Registry.Register(h)
	require.NoError(t, err)
	handle, err := l.Timeout(func() {}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	assert.Equal(t, 1, h.closed)
	assert.False(t, handle.Cancel())
	assert.Empty(t, fr.armed)
	assert.True(t, fr.closed)
}

func TestLoadOptions(t *testing.T) {
	o := LoadOptions()
	assert.Equal(t, iface.MaxHandlers, o.Capacity)
	assert.True(t, o.LockOSThread)

	o = LoadOptions(WithCapacity(8), WithLockOSThread(false), WithWorkerPoolSize(4), WithEventBuffer(256))
	assert.Equal(t, 8, o.Capacity)
	assert.False(t, o.LockOSThread)
	assert.Equal(t, 4, o.WorkerPoolSize)
	assert.Equal(t, 256, o.EventBuffer)
}
