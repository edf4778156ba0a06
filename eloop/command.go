package eloop

import (
	"fmt"
	"time"

	"github.com/moqsien/gkevent/iface"
)

type CommandKind uint8

const (
	CmdHandler CommandKind = iota
	CmdTimeout
	CmdNext
)

func (that CommandKind) String() string {
	switch that {
	case CmdHandler:
		return "handler"
	case CmdTimeout:
		return "timeout"
	case CmdNext:
		return "next"
	default:
		return fmt.Sprintf("command(%d)", uint8(that))
	}
}

// Command is one registration request, applied to a loop by Eloop.Apply.
type Command struct {
	Kind     CommandKind
	Handler  iface.Handler
	Callback func()
	Delay    time.Duration
}

func NewHandlerCommand(h iface.Handler) Command {
	return Command{Kind: CmdHandler, Handler: h}
}

func NewTimeoutCommand(cb func(), d time.Duration) Command {
	return Command{Kind: CmdTimeout, Callback: cb, Delay: d}
}

func NewNextCommand(cb func()) Command {
	return Command{Kind: CmdNext, Callback: cb}
}

// Receipt is what applying a command produced.
type Receipt struct {
	Token   iface.Token
	Timeout *TimeoutHandle
}
