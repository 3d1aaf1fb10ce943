//go:build linux

package thread

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// SetCPUAffinity locks the calling goroutine to its OS thread and pins that
// thread to coreID. A negative coreID does nothing.
func SetCPUAffinity(coreID int) error {
	if coreID < 0 {
		return nil
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
