// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — cold-path diagnostic helpers (no fmt, no log)
//
// Purpose:
//   - Reports setup failures, journal errors and reader drop events.
//   - Output goes to stderr via utils.PrintWarning.
//
// ⚠️ Never invoke from Store/Fetch or any real-time callback. Real-time
//    threads post events into a ring.FIFO and a cold goroutine logs them.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "audioring/utils"

// DropError logs "<prefix>: <error>", or just "<prefix>" when err is nil
// (used as a cheap trace tag).
//
//go:nosplit
//go:inline
//go:registerparams
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
		return
	}
	utils.PrintWarning(prefix + "\n")
}

// DropMessage logs "<prefix>: <message>".
//
//go:nosplit
//go:inline
//go:registerparams
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
