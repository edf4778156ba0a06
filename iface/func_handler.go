package iface

// FuncHandler adapts a pair of closures to Handler. Nil callbacks stop the
// handler when their side becomes ready.
type FuncHandler struct {
	FD      int
	OnRead  func(hint ReadHint) bool
	OnWrite func() bool
	Want    Interest
	Opt     PollOpt
}

func (that *FuncHandler) Fd() int { return that.FD }

func (that *FuncHandler) Readable(hint ReadHint) bool {
	if that.OnRead == nil {
		return false
	}
	return that.OnRead(hint)
}

func (that *FuncHandler) Writable() bool {
	if that.OnWrite == nil {
		return false
	}
	return that.OnWrite()
}

func (that *FuncHandler) Interest() Interest { return that.Want }

func (that *FuncHandler) PollOpt() PollOpt { return that.Opt }
