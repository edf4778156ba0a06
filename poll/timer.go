package poll

import (
	"container/heap"
	"sync"
	"time"

	"github.com/moqsien/gkevent/iface"
)

type timer struct {
	id    iface.TimerID
	when  time.Time
	index int
}

type timerHeap []*timer

func (that timerHeap) Len() int { return len(that) }

func (that timerHeap) Less(i, j int) bool {
	if that[i].when.Equal(that[j].when) {
		return that[i].id < that[j].id
	}
	return that[i].when.Before(that[j].when)
}

func (that timerHeap) Swap(i, j int) {
	that[i], that[j] = that[j], that[i]
	that[i].index = i
	that[j].index = j
}

func (that *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*that)
	*that = append(*that, t)
}

func (that *timerHeap) Pop() any {
	old := *that
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*that = old[:n-1]
	return t
}

// timerQueue holds one-shot deadlines. Cancel may race with the loop, so
// everything goes through mu.
type timerQueue struct {
	mu     sync.Mutex
	heap   timerHeap
	byID   map[iface.TimerID]*timer
	nextID iface.TimerID
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byID: make(map[iface.TimerID]*timer)}
}

func (that *timerQueue) arm(now time.Time, d time.Duration) iface.TimerID {
	if d < 0 {
		d = 0
	}
	that.mu.Lock()
	defer that.mu.Unlock()
	that.nextID++
	t := &timer{id: that.nextID, when: now.Add(d)}
	heap.Push(&that.heap, t)
	that.byID[t.id] = t
	return t.id
}

func (that *timerQueue) cancel(id iface.TimerID) bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	t, ok := that.byID[id]
	if !ok {
		return false
	}
	delete(that.byID, id)
	heap.Remove(&that.heap, t.index)
	return true
}

func (that *timerQueue) untilNext(now time.Time) (time.Duration, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()
	if len(that.heap) == 0 {
		return 0, false
	}
	return that.heap[0].when.Sub(now), true
}

func (that *timerQueue) expired(now time.Time, dst []iface.TimerID) []iface.TimerID {
	that.mu.Lock()
	defer that.mu.Unlock()
	for len(that.heap) > 0 && !that.heap[0].when.After(now) {
		t := heap.Pop(&that.heap).(*timer)
		delete(that.byID, t.id)
		dst = append(dst, t.id)
	}
	return dst
}

func (that *timerQueue) len() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.heap)
}

// msecCeil converts a wait to the millisecond granularity of the poll
// syscalls without waking early.
func msecCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
