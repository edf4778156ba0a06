package iface

import "time"

// Handler reacts to readiness of one file descriptor. Returning false from
// Readable or Writable deregisters the descriptor and drops the handler.
type Handler interface {
	Fd() int
	Readable(hint ReadHint) bool
	Writable() bool
}

type InterestHandler interface {
	Interest() Interest
}

type PollOptHandler interface {
	PollOpt() PollOpt
}

// Reactor is the readiness primitive a loop drives. Only Notify, Wake and
// CancelTimer may be called from goroutines other than the loop's.
type Reactor interface {
	Register(fd int, token Token, interest Interest, opt PollOpt) error
	Reregister(fd int, token Token, interest Interest, opt PollOpt) error
	Deregister(fd int) error
	Wait(batch *Batch) error
	ArmTimer(d time.Duration) (TimerID, error)
	CancelTimer(id TimerID) bool
	Notify(task Task) error
	Wake() error
	Close() error
}

// ILoad is implemented by anything a balancer can choose between.
type ILoad interface {
	Load() int64
}

type IBalancer[T ILoad] interface {
	Register(T)
	Next() T
	Iterator(f func(key int, val T) bool)
	Len() int
}

func InterestOf(h Handler) Interest {
	if ih, ok := h.(InterestHandler); ok {
		if i := ih.Interest(); i != 0 {
			return i
		}
	}
	return DefaultInterest
}

func PollOptOf(h Handler) PollOpt {
	if ph, ok := h.(PollOptHandler); ok {
		if o := ph.PollOpt(); o != 0 {
			return o
		}
	}
	return DefaultPollOpt
}
