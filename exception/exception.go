package exception

import (
	"fmt"
	"runtime/debug"

	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/monitoring"
)

func SafeGo(name string, fn func()) {
	go func() {
		defer recoverPanic(name)
		fn()
	}()
}

// Run executes fn on the calling goroutine and turns a panic into an error.
// Background jobs run under errgroup use it so one panic fails the group.
func Run(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.IncreasePanicCount()
			logx.Error("PANIC", "Panic in: ", name, " ", r, "\n", string(debug.Stack()))
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn()
}

func recoverPanic(name string) {
	if r := recover(); r != nil {
		monitoring.IncreasePanicCount()
		logx.Error("PANIC", "Panic in: ", name, " ", r, "\n", string(debug.Stack()))
	}
}
