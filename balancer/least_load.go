package balancer

import "github.com/moqsien/gkevent/iface"

type LeastLoad[T iface.ILoad] struct {
	list []T
}

func (that *LeastLoad[T]) Len() int { return len(that.list) }

func (that *LeastLoad[T]) Iterator(f func(key int, val T) bool) {
	for k, v := range that.list {
		if !f(k, v) {
			break
		}
	}
}

func (that *LeastLoad[T]) Register(e T) {
	that.list = append(that.list, e)
}

// Next picks the first member carrying the smallest load.
func (that *LeastLoad[T]) Next() (e T) {
	if len(that.list) == 0 {
		return
	}
	best, bestLoad := that.list[0], that.list[0].Load()
	for _, v := range that.list[1:] {
		if l := v.Load(); l < bestLoad {
			best, bestLoad = v, l
		}
	}
	return best
}

func New[T iface.ILoad](kind iface.Balancer) iface.IBalancer[T] {
	if kind == iface.LeastLoadLB {
		return &LeastLoad[T]{}
	}
	return &RoundRobin[T]{}
}
