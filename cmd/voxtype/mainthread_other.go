//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Hotkey events on macOS and Windows arrive on the main thread only.
func runOnMain(fn func()) {
	mainthread.Init(fn)
}
