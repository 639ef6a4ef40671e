// affinity_stub.go - CPU affinity no-op where sched_setaffinity(2) is missing
//
// macOS only offers affinity tags, not hard pinning; the thread stays
// locked with runtime.LockOSThread and the scheduler places it.

//go:build !linux || tinygo

package control

// SetAffinity is a no-op on this platform.
func SetAffinity(cpu int) error {
	return nil
}
