package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	j := openMemory(t)
	start := time.Unix(1700000000, 0)

	id, err := j.BeginRun(start, []byte(`{"durationMs":10}`))
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	runs, err := j.Runs()
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs() = %v, %v", runs, err)
	}
	if runs[0].ID != id || !runs[0].StartedAt.Equal(start) || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("open run = %+v", runs[0])
	}

	if err := j.FinishRun(id, start.Add(time.Second), []byte(`{"ok":true}`), true); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	runs, _ = j.Runs()
	r := runs[0]
	if !r.Passed || r.Report != `{"ok":true}` || r.Config != `{"durationMs":10}` || !r.FinishedAt.Equal(start.Add(time.Second)) {
		t.Fatalf("finished run = %+v", r)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	j := openMemory(t)
	if err := j.FinishRun(42, time.Now(), nil, false); err == nil {
		t.Fatal("FinishRun of a missing run succeeded")
	}
}

func TestEventsBatchedAndOrdered(t *testing.T) {
	j := openMemory(t)
	id, _ := j.BeginRun(time.Now(), []byte(`{}`))
	other, _ := j.BeginRun(time.Now(), []byte(`{}`))

	const n = CommitBatchSize + 10 // crosses one batch commit
	for i := 0; i < n; i++ {
		kind := "drop"
		if i%100 == 0 {
			kind = "resync"
		}
		ev := Event{Reader: i % 3, Kind: kind, SampleTime: int64(i) * 64, Frames: 64, At: time.Unix(0, int64(i))}
		if err := j.RecordEvent(id, ev); err != nil {
			t.Fatalf("RecordEvent %d: %v", i, err)
		}
	}
	if err := j.RecordEvent(other, Event{Kind: "drop"}); err != nil {
		t.Fatal(err)
	}

	events, err := j.Events(id)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != n {
		t.Fatalf("events = %d, want %d", len(events), n)
	}
	for i, ev := range events {
		if ev.SampleTime != int64(i)*64 || ev.Reader != i%3 || ev.At.UnixNano() != int64(i) {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}

	resyncs, err := j.Events(id, "resync")
	if err != nil || len(resyncs) != (n+99)/100 {
		t.Fatalf("resync events = %d, %v", len(resyncs), err)
	}
	both, _ := j.Events(id, "drop", "resync")
	if len(both) != n {
		t.Fatalf("drop+resync = %d, want %d", len(both), n)
	}

	runs, _ := j.Runs()
	if runs[0].ID != other || runs[0].Events != 1 || runs[1].Events != n {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soak.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := j.BeginRun(time.Now(), []byte(`{}`))
	j.RecordEvent(id, Event{Reader: 1, Kind: "drop", SampleTime: 5, Frames: 7, At: time.Now()})
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	events, err := j.Events(id)
	if err != nil || len(events) != 1 || events[0].Frames != 7 {
		t.Fatalf("events after reopen = %+v, %v", events, err)
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "soak.db")); err == nil {
		t.Fatal("Open in a missing directory succeeded")
	}
}
