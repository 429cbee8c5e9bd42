package writer

import (
	"path/filepath"
	"testing"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/internal/reader"
)

func TestIndexWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.atf")

	iw, err := CreateIndexWriter(path, 1, atf.ClockMachContinuous, true)
	if err != nil {
		t.Fatal(err)
	}
	events := []atf.IndexEvent{
		{TimestampNs: 100, FunctionID: 1, ThreadID: 1, EventKind: atf.KindCall, CallDepth: 0, DetailSeq: atf.NoDetailSeq},
		{TimestampNs: 200, FunctionID: 2, ThreadID: 1, EventKind: atf.KindCall, CallDepth: 1, DetailSeq: 0},
		{TimestampNs: 300, FunctionID: 2, ThreadID: 1, EventKind: atf.KindReturn, CallDepth: 1, DetailSeq: atf.NoDetailSeq},
	}
	for _, e := range events {
		if err := iw.Append(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := iw.Finalize(); err != nil {
		t.Fatal(err)
	}

	ir, err := reader.OpenIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ir.Close()

	if !ir.HasFooter() {
		t.Error("expected a valid footer after a clean Finalize")
	}
	if ir.Len() != uint32(len(events)) {
		t.Fatalf("expected %d events, got %d", len(events), ir.Len())
	}
	if !ir.HasDetail() {
		t.Error("expected the header's detail flag to be set")
	}

	for i, want := range events {
		got, ok := ir.Get(uint32(i))
		if !ok {
			t.Fatalf("expected event %d to be present", i)
		}
		if got != want {
			t.Fatalf("event %d mismatch:\n got  %+v\n want %+v", i, got, want)
		}
	}

	start, end := ir.TimeRange()
	if start != 100 || end != 300 {
		t.Fatalf("expected time range [100,300], got [%d,%d]", start, end)
	}
}

func TestIndexWriterAbortLeavesNoFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.atf")

	iw, err := CreateIndexWriter(path, 1, atf.ClockMachContinuous, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := iw.Append(atf.IndexEvent{TimestampNs: 1, EventKind: atf.KindCall, DetailSeq: atf.NoDetailSeq}); err != nil {
		t.Fatal(err)
	}
	if err := iw.Abort(); err != nil {
		t.Fatal(err)
	}

	ir, err := reader.OpenIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ir.Close()

	if ir.HasFooter() {
		t.Error("expected Abort to leave no valid footer")
	}
	if ir.Len() != 1 {
		t.Fatalf("expected the file-size fallback to recover 1 event, got %d", ir.Len())
	}
}

func TestDetailWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail.atf")

	dw, err := CreateDetailWriter(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	payload1 := []byte("args: a, b")
	payload2 := []byte("return: 42")
	if err := dw.Append(atf.DetailFunctionCall, 0, 1, 200, payload1); err != nil {
		t.Fatal(err)
	}
	if err := dw.Append(atf.DetailFunctionReturn, 0, 2, 300, payload2); err != nil {
		t.Fatal(err)
	}
	if err := dw.Finalize(); err != nil {
		t.Fatal(err)
	}

	dr, err := reader.OpenDetail(path)
	if err != nil {
		t.Fatal(err)
	}
	defer dr.Close()

	if !dr.HasFooter() {
		t.Error("expected a valid footer after a clean Finalize")
	}
	if dr.Len() != 2 {
		t.Fatalf("expected 2 detail events, got %d", dr.Len())
	}

	ev0, ok := dr.Get(0)
	if !ok || string(ev0.Payload) != string(payload1) {
		t.Fatalf("unexpected first event: %+v", ev0)
	}
	ev1, ok := dr.GetByIndexSeq(2)
	if !ok || string(ev1.Payload) != string(payload2) {
		t.Fatalf("unexpected event looked up by index seq: %+v", ev1)
	}
}
