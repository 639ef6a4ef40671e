// affinity_linux.go - pin the calling OS thread to one CPU via sched_setaffinity(2)

//go:build linux && !tinygo

package control

import "golang.org/x/sys/unix"

// SetAffinity pins the current OS thread to cpu. Call it after
// runtime.LockOSThread, otherwise the goroutine can migrate off the thread.
func SetAffinity(cpu int) error {
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
