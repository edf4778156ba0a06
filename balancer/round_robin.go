package balancer

import (
	"sync/atomic"

	"github.com/moqsien/gkevent/iface"
)

type RoundRobin[T iface.ILoad] struct {
	list []T
	next uint64
}

func (that *RoundRobin[T]) Len() int { return len(that.list) }

func (that *RoundRobin[T]) Iterator(f func(key int, val T) bool) {
	for key, val := range that.list {
		if !f(key, val) {
			break
		}
	}
}

// Register is not safe to call concurrently with Next.
func (that *RoundRobin[T]) Register(e T) {
	that.list = append(that.list, e)
}

func (that *RoundRobin[T]) Next() (e T) {
	if len(that.list) == 0 {
		return
	}
	i := atomic.AddUint64(&that.next, 1) - 1
	return that.list[i%uint64(len(that.list))]
}
