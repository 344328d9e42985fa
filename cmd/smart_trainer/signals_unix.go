//go:build !windows

package main

import (
	"os"
	"syscall"
)

// SIGCONT arrives when a stopped process (Ctrl-Z, laptop sleep) continues
var resumeSignals = []os.Signal{syscall.SIGCONT}
