package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/internal/writer"
)

func writeThread(t *testing.T, sessionDir string, threadID uint32, events []atf.IndexEvent, withDetail bool) {
	t.Helper()
	threadDir := filepath.Join(sessionDir, "thread_"+strconv.Itoa(int(threadID)))
	if err := os.MkdirAll(threadDir, 0o755); err != nil {
		t.Fatal(err)
	}

	iw, err := writer.CreateIndexWriter(filepath.Join(threadDir, "index.atf"), threadID, atf.ClockMachContinuous, withDetail)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if err := iw.Append(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := iw.Finalize(); err != nil {
		t.Fatal(err)
	}

	if !withDetail {
		return
	}
	dw, err := writer.CreateDetailWriter(filepath.Join(threadDir, "detail.atf"), threadID)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range events {
		if !e.HasDetail() {
			continue
		}
		if err := dw.Append(atf.DetailFunctionCall, 0, e.DetailSeq, e.TimestampNs, []byte("payload "+strconv.Itoa(i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := dw.Finalize(); err != nil {
		t.Fatal(err)
	}
}

func writeManifest(t *testing.T, dir string, m Manifest) {
	t.Helper()
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenSkipsDeclaredButMissingThreadDir(t *testing.T) {
	dir := t.TempDir()
	writeThread(t, dir, 1, []atf.IndexEvent{
		{TimestampNs: 100, FunctionID: 1, ThreadID: 1, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeManifest(t, dir, Manifest{
		Threads: []ThreadInfo{{ID: 1}, {ID: 2}},
	})

	sr, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	if len(sr.Threads()) != 1 {
		t.Fatalf("expected 1 opened thread (thread 2's directory never existed), got %d", len(sr.Threads()))
	}
	if sr.Threads()[0].ThreadID() != 1 {
		t.Fatalf("expected the opened thread to be thread 1, got %d", sr.Threads()[0].ThreadID())
	}
}

func TestEventCountSumsAcrossThreads(t *testing.T) {
	dir := t.TempDir()
	writeThread(t, dir, 1, []atf.IndexEvent{
		{TimestampNs: 100, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
		{TimestampNs: 200, EventKind: atf.KindReturn, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeThread(t, dir, 2, []atf.IndexEvent{
		{TimestampNs: 150, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeManifest(t, dir, Manifest{Threads: []ThreadInfo{{ID: 1}, {ID: 2}}})

	sr, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	if sr.EventCount() != 3 {
		t.Fatalf("expected 3 total events, got %d", sr.EventCount())
	}
}

func TestTimeRangeSpansAllThreads(t *testing.T) {
	dir := t.TempDir()
	writeThread(t, dir, 1, []atf.IndexEvent{
		{TimestampNs: 500, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
		{TimestampNs: 900, EventKind: atf.KindReturn, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeThread(t, dir, 2, []atf.IndexEvent{
		{TimestampNs: 100, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
		{TimestampNs: 600, EventKind: atf.KindReturn, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeManifest(t, dir, Manifest{Threads: []ThreadInfo{{ID: 1}, {ID: 2}}})

	sr, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	start, end := sr.TimeRange()
	if start != 100 || end != 900 {
		t.Fatalf("expected range [100,900], got [%d,%d]", start, end)
	}
}

func TestTimeRangeEmptySession(t *testing.T) {
	sr := &SessionReader{}
	start, end := sr.TimeRange()
	if start != 0 || end != 0 {
		t.Fatalf("expected (0,0) for a threadless session, got (%d,%d)", start, end)
	}
}

func TestThreadReaderResolvesDetailLinks(t *testing.T) {
	dir := t.TempDir()
	events := []atf.IndexEvent{
		{TimestampNs: 100, FunctionID: 1, ThreadID: 1, EventKind: atf.KindCall, DetailSeq: 0},
		{TimestampNs: 200, FunctionID: 1, ThreadID: 1, EventKind: atf.KindReturn, DetailSeq: atf.NoDetailSeq},
	}
	writeThread(t, dir, 1, events, true)
	writeManifest(t, dir, Manifest{Threads: []ThreadInfo{{ID: 1, HasDetail: true}}})

	sr, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	th := sr.Threads()[0]
	first, ok := th.Index.Get(0)
	if !ok {
		t.Fatal("expected event 0 to exist")
	}
	detail, ok := th.GetDetailFor(first)
	if !ok {
		t.Fatal("expected the call event's detail link to resolve")
	}
	if string(detail.Payload) != "payload 0" {
		t.Fatalf("unexpected detail payload: %q", detail.Payload)
	}

	back, ok := th.GetIndexFor(detail)
	if !ok || back != first {
		t.Fatalf("expected the detail event's back-link to resolve to the original index event, got %+v, ok=%v", back, ok)
	}

	second, ok := th.Index.Get(1)
	if !ok {
		t.Fatal("expected event 1 to exist")
	}
	if _, ok := th.GetDetailFor(second); ok {
		t.Fatal("expected the return event with NoDetailSeq to have no detail link")
	}
}

func TestMergedIterOrdersByTimestampAcrossThreads(t *testing.T) {
	dir := t.TempDir()
	writeThread(t, dir, 1, []atf.IndexEvent{
		{TimestampNs: 100, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
		{TimestampNs: 400, EventKind: atf.KindReturn, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeThread(t, dir, 2, []atf.IndexEvent{
		{TimestampNs: 200, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
		{TimestampNs: 300, EventKind: atf.KindReturn, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeManifest(t, dir, Manifest{Threads: []ThreadInfo{{ID: 1}, {ID: 2}}})

	sr, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	merged := sr.MergedIter()
	if len(merged) != 4 {
		t.Fatalf("expected 4 merged events, got %d", len(merged))
	}
	wantTimestamps := []uint64{100, 200, 300, 400}
	for i, want := range wantTimestamps {
		if merged[i].Event.TimestampNs != want {
			t.Fatalf("event %d: expected timestamp %d, got %d", i, want, merged[i].Event.TimestampNs)
		}
	}
	if merged[0].ThreadIndex != 0 || merged[1].ThreadIndex != 1 {
		t.Fatalf("unexpected thread assignment: %+v", merged[:2])
	}
}

func TestMergedIterBreaksTiesByThreadIndex(t *testing.T) {
	dir := t.TempDir()
	writeThread(t, dir, 1, []atf.IndexEvent{
		{TimestampNs: 100, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeThread(t, dir, 2, []atf.IndexEvent{
		{TimestampNs: 100, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq},
	}, false)
	writeManifest(t, dir, Manifest{Threads: []ThreadInfo{{ID: 1}, {ID: 2}}})

	sr, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	merged := sr.MergedIter()
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged events, got %d", len(merged))
	}
	if merged[0].ThreadIndex != 0 || merged[1].ThreadIndex != 1 {
		t.Fatalf("expected a tie at the same timestamp to break by thread index, got %+v", merged)
	}
}
