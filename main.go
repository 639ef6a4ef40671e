// ════════════════════════════════════════════════════════════════════════════════════════════════
// Time-Indexed Audio Ring - Soak Runner
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Timestamped non-interleaved audio ring buffer
// Component: Main Entry Point & Run Orchestration
//
// Description:
//   Loads a soak configuration, runs it against a fresh timering.Buffer with
//   pinned readers, prints the JSON report to stdout and records the run in
//   the sqlite journal when one is configured.
//
// Usage:
//   audioring [-config soak.json] [-journal soak.db] [-runs]
//
// Exit status:
//   0 passed, 1 failed or runtime error, 2 bad configuration
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	rtdebug "runtime/debug"
	"strconv"
	"syscall"
	"time"

	"audioring/config"
	"audioring/control"
	"audioring/debug"
	"audioring/journal"
	"audioring/soak"
	"audioring/utils"
)

// heapSoftLimit lets the GC run only under real memory pressure while the
// soak is in progress; the ring and reader paths do not allocate.
const heapSoftLimit = 256 << 20

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "soak configuration file (JSON); built-in defaults when empty")
	journalPath := flag.String("journal", "", "sqlite journal file; overrides journalPath in the config")
	listRuns := flag.Bool("runs", false, "list journaled runs and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		debug.DropError("CONFIG", err)
		return 2
	}
	if *journalPath != "" {
		cfg.JournalPath = *journalPath
	}

	var j *journal.Journal
	if cfg.JournalPath != "" {
		if j, err = journal.Open(cfg.JournalPath); err != nil {
			debug.DropError("JOURNAL", err)
			return 1
		}
		defer func() {
			if err := j.Close(); err != nil {
				debug.DropError("JOURNAL_CLOSE", err)
			}
		}()
	}

	if *listRuns {
		if j == nil {
			debug.DropMessage("RUNS", "no journal configured")
			return 2
		}
		return printRuns(j, utils.PrintInfo)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	debug.DropMessage("INIT", cfg.Format().String()+", capacity "+utils.I64toa(cfg.Capacity())+
		" frames, "+utils.Itoa(len(cfg.Readers))+" readers, "+utils.Itoa(cfg.DurationMs)+" ms")

	// Ring and readers run GC-free; the collector's allocations are small.
	prevLimit := rtdebug.SetMemoryLimit(heapSoftLimit)
	prevGC := rtdebug.SetGCPercent(-1)
	rep, err := soak.Run(ctx, cfg, j)
	rtdebug.SetGCPercent(prevGC)
	rtdebug.SetMemoryLimit(prevLimit)
	if err != nil {
		debug.DropError("SOAK", err)
		return 1
	}

	data, err := rep.Encode()
	if err != nil {
		debug.DropError("REPORT", err)
		return 1
	}
	utils.PrintInfo(utils.B2s(data) + "\n")

	if !rep.Passed {
		return 1
	}
	return 0
}

// setupSignalHandling turns SIGINT/SIGTERM into a coordinated stop.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "Received interrupt, stopping soak")
		control.Shutdown()
		cancel()
	}()
}

// printRuns writes one line per journaled run to emit, newest first.
func printRuns(j *journal.Journal, emit func(string)) int {
	runs, err := j.Runs()
	if err != nil {
		debug.DropError("RUNS", err)
		return 1
	}
	for _, r := range runs {
		emit(formatRun(r) + "\n")
	}
	return 0
}

func formatRun(r journal.Run) string {
	line := "run " + utils.I64toa(r.ID) + "  " + r.StartedAt.UTC().Format(time.RFC3339)
	if r.FinishedAt.IsZero() {
		line += "  open"
	} else {
		line += "  " + r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String() +
			"  passed=" + strconv.FormatBool(r.Passed)
	}
	return line + "  events=" + utils.I64toa(r.Events)
}
