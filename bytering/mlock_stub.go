// mlock_stub.go - no-op memory locking where mlock(2) is unavailable

//go:build !linux && !darwin

package bytering

// LockMemory is a no-op on this platform.
func (s *Store) LockMemory() error { return nil }

// UnlockMemory is a no-op on this platform.
func (s *Store) UnlockMemory() error { return nil }
