package engine

import (
	"sync"

	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkevent/balancer"
	"github.com/moqsien/gkevent/eloop"
	"github.com/moqsien/gkevent/iface"
	"github.com/moqsien/gkevent/utils/errs"
)

// Group runs several engines, each on its own goroutine, and spreads new
// handlers over them. A handler stays on the engine it was given to.
type Group struct {
	Engines  []*Engine
	Balancer iface.IBalancer[*Engine]
	wg       sync.WaitGroup
	mu       sync.Mutex
	errList  []error
}

func NewGroup(n int, lb iface.Balancer, opts ...eloop.Option) (*Group, error) {
	if n <= 0 {
		n = 1
	}
	g := &Group{Balancer: balancer.New[*Engine](lb)}
	for i := 0; i < n; i++ {
		e, err := New(opts...)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.Engines = append(g.Engines, e)
		g.Balancer.Register(e)
	}
	return g, nil
}

func (that *Group) Start() {
	for i, e := range that.Engines {
		that.wg.Add(1)
		go func(i int, e *Engine) {
			defer that.wg.Done()
			if err := e.Run(); err != nil {
				logger.Errorf("engine %d stopped: %v", i, err)
				that.mu.Lock()
				that.errList = append(that.errList, err)
				that.mu.Unlock()
			}
		}(i, e)
	}
}

func (that *Group) Register(h iface.Handler) error {
	e := that.Balancer.Next()
	if e == nil {
		return errs.ErrInvalidBalance
	}
	return e.Register(h)
}

// Shutdown stops every engine. An engine that has not entered Run yet stops
// on its first iteration.
func (that *Group) Shutdown() {
	for i, e := range that.Engines {
		if e.Loop.Stop() {
			continue
		}
		if err := e.Sender().Next(e.Shutdown); err != nil {
			logger.Warningf("shutting down engine %d: %v", i, err)
		}
	}
}

// Wait blocks until every engine has returned from Run and reports the
// first failure.
func (that *Group) Wait() error {
	that.wg.Wait()
	that.mu.Lock()
	defer that.mu.Unlock()
	if len(that.errList) > 0 {
		return that.errList[0]
	}
	return nil
}

func (that *Group) Close() (err error) {
	for _, e := range that.Engines {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return
}

func (that *Group) Stats() []eloop.Stats {
	out := make([]eloop.Stats, 0, len(that.Engines))
	for _, e := range that.Engines {
		out = append(out, e.Stats())
	}
	return out
}
