package go_func_utils

import (
	"runtime/debug"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger with its
// stack before being re-raised, since the curses UI hides stderr.
func SafeGo(logger logging.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}
