package iface

import "strings"

type Token uint32

type TimerID uint64

type Interest uint8

func (that Interest) IsReadable() bool { return that&Readable != 0 }
func (that Interest) IsWritable() bool { return that&Writable != 0 }

func (that Interest) String() string {
	var parts []string
	if that.IsReadable() {
		parts = append(parts, "readable")
	}
	if that.IsWritable() {
		parts = append(parts, "writable")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

type PollOpt uint8

func (that PollOpt) IsEdge() bool    { return that&Edge != 0 }
func (that PollOpt) IsLevel() bool   { return that&Level != 0 }
func (that PollOpt) IsOneshot() bool { return that&Oneshot != 0 }

type ReadHint uint8

func (that ReadHint) IsData() bool  { return that&DataHint != 0 }
func (that ReadHint) IsHup() bool   { return that&HupHint != 0 }
func (that ReadHint) IsError() bool { return that&ErrorHint != 0 }

// Ready is what the reactor saw on a descriptor.
type Ready uint8

func (that Ready) IsReadable() bool { return that&ReadyReadable != 0 }
func (that Ready) IsWritable() bool { return that&ReadyWritable != 0 }
func (that Ready) IsHup() bool      { return that&ReadyHup != 0 }
func (that Ready) IsError() bool    { return that&ReadyError != 0 }

// Hint folds readiness into the hint handed to Readable. Hup and error
// conditions are reported through the readable side.
func (that Ready) Hint() (hint ReadHint, ok bool) {
	if that.IsReadable() {
		hint |= DataHint
	}
	if that.IsHup() {
		hint |= HupHint
	}
	if that.IsError() {
		hint |= ErrorHint
	}
	return hint, hint != 0
}

type Balancer int

// Task is the payload of the wake channel.
type Task func()

type IOEvent struct {
	Token Token
	Ready Ready
}

// Batch is everything one Wait produced.
type Batch struct {
	IO     []IOEvent
	Timers []TimerID
	Tasks  []Task
}

func (that *Batch) Reset() {
	for i := range that.Tasks {
		that.Tasks[i] = nil
	}
	that.IO = that.IO[:0]
	that.Timers = that.Timers[:0]
	that.Tasks = that.Tasks[:0]
}

func (that *Batch) IsEmpty() bool {
	return len(that.IO) == 0 && len(that.Timers) == 0 && len(that.Tasks) == 0
}

type Options struct {
	Capacity       int  `yaml:"capacity"`
	LockOSThread   bool `yaml:"lock_os_thread"`
	WorkerPoolSize int  `yaml:"worker_pool_size"`
	EventBuffer    int  `yaml:"event_buffer"`
}

func (that *Options) Normalize() {
	if that.Capacity <= 0 || that.Capacity > MaxHandlers {
		that.Capacity = MaxHandlers
	}
}
