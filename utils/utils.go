package utils

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
)

func SysError(name string, err error) error {
	return os.NewSyscallError(name, err)
}

var goroutinePrefix = []byte("goroutine ")

// GoroutineID parses the id of the calling goroutine out of its stack header.
func GoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
