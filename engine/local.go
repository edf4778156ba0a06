package engine

import (
	"sync"
	"time"

	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils"
)

// engines created through Local, keyed by goroutine id.
var locals sync.Map

// Local returns the engine owned by the calling goroutine, creating it on
// first use. Call Release before the goroutine exits.
func Local() (*Engine, error) {
	id := utils.GoroutineID()
	if e, ok := locals.Load(id); ok {
		return e.(*Engine), nil
	}
	e, err := New()
	if err != nil {
		return nil, err
	}
	locals.Store(id, e)
	return e, nil
}

// Release closes and forgets the calling goroutine's engine.
func Release() error {
	e, ok := locals.LoadAndDelete(utils.GoroutineID())
	if !ok {
		return nil
	}
	return e.(*Engine).Close()
}

func Register(h iface.Handler) error {
	e, err := Local()
	if err != nil {
		return err
	}
	return e.Register(h)
}

func Timeout(cb func(), d time.Duration) (*TimeoutHandle, error) {
	e, err := Local()
	if err != nil {
		return nil, err
	}
	return e.Timeout(cb, d)
}

func Next(cb func()) error {
	e, err := Local()
	if err != nil {
		return err
	}
	return e.Next(cb)
}

func Interval(cb func(), d time.Duration) (*IntervalHandle, error) {
	e, err := Local()
	if err != nil {
		return nil, err
	}
	return e.Interval(cb, d)
}

func Run() error {
	e, err := Local()
	if err != nil {
		return err
	}
	return e.Run()
}

func Shutdown() {
	e, ok := locals.Load(utils.GoroutineID())
	if !ok {
		logger.Warningf("shutdown requested while the event loop is idle")
		return
	}
	e.(*Engine).Shutdown()
}
