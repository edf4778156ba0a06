package iface

const (
	Readable Interest = 1 << iota
	Writable
)

const (
	Edge PollOpt = 1 << iota
	Level
	Oneshot
)

const (
	DataHint ReadHint = 1 << iota
	HupHint
	ErrorHint
)

const (
	ReadyReadable Ready = 1 << iota
	ReadyWritable
	ReadyHup
	ReadyError
)

const (
	DefaultInterest = Readable
	DefaultPollOpt  = Level
)

const (
	RoundRobinLB Balancer = 0
	LeastLoadLB  Balancer = 1
)

const (
	MaxHandlers int = 64 * 1024
	MaxTasks    int = 256
)
