// mlock_unix.go - pin the byte store in RAM via mlock(2)
//
// A page fault on the device callback thread is an audible glitch; locking
// the store keeps it resident. Usually needs CAP_IPC_LOCK or a raised
// RLIMIT_MEMLOCK, so failures are returned, not fatal.

//go:build linux || darwin

package bytering

import "golang.org/x/sys/unix"

// LockMemory locks the store's pages into physical memory.
func (s *Store) LockMemory() error {
	return unix.Mlock(s.data)
}

// UnlockMemory releases a previous LockMemory.
func (s *Store) UnlockMemory() error {
	return unix.Munlock(s.data)
}
