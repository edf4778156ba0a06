package errs

import "errors"

var (
	ErrRegistryFull   = errors.New("handler registry is full")
	ErrReentrantRun   = errors.New("event loop is already running on this goroutine")
	ErrLoopRunning    = errors.New("event loop is running on another goroutine")
	ErrReactor        = errors.New("reactor failure")
	ErrTimer          = errors.New("timer failure")
	ErrEngineClosed   = errors.New("engine is closed")
	ErrUnsupportedOp  = errors.New("unsupported operation")
	ErrNilHandler     = errors.New("handler is nil")
	ErrInvalidBalance = errors.New("no engine available to balance onto")
)
