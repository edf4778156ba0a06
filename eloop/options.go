package eloop

import "github.com/moqsien/gkevent/iface"

type Option func(*iface.Options)

// WithCapacity bounds the handler registry. Values outside (0, iface.MaxHandlers]
// fall back to iface.MaxHandlers.
func WithCapacity(n int) Option {
	return func(o *iface.Options) { o.Capacity = n }
}

func WithLockOSThread(lock bool) Option {
	return func(o *iface.Options) { o.LockOSThread = lock }
}

func WithWorkerPoolSize(n int) Option {
	return func(o *iface.Options) { o.WorkerPoolSize = n }
}

func WithEventBuffer(n int) Option {
	return func(o *iface.Options) { o.EventBuffer = n }
}

func WithOptions(opts iface.Options) Option {
	return func(o *iface.Options) { *o = opts }
}

func LoadOptions(opts ...Option) *iface.Options {
	o := &iface.Options{LockOSThread: true}
	for _, opt := range opts {
		opt(o)
	}
	o.Normalize()
	return o
}
