package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adatrace/ada-trace/internal/state"
)

var testRegistry *Registry

func init() {
	dir, err := os.MkdirTemp("", "ada-registry-test")
	if err != nil {
		panic(err)
	}
	testRegistry, err = Connect(filepath.Join(dir, "registry_test.db"))
	if err != nil {
		panic(err)
	}
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestUpsertAndGet(t *testing.T) {
	sess := state.Session{
		SessionID:   "sess-upsert",
		SessionPath: "/tmp/sess-upsert",
		AppInfo:     "myapp",
		Status:      state.StatusRunning,
		StartTime:   1000,
		PID:         intPtr(4242),
		CapturePID:  intPtr(4243),
	}
	if err := testRegistry.Upsert(sess); err != nil {
		t.Fatal(err)
	}

	got, err := testRegistry.Get(sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AppInfo != sess.AppInfo || got.Status != sess.Status || *got.PID != *sess.PID {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", got, sess)
	}
	if got.EndTime != nil {
		t.Errorf("expected nil EndTime, got %v", *got.EndTime)
	}
}

func TestUpsertReplaces(t *testing.T) {
	sess := state.Session{
		SessionID:   "sess-replace",
		SessionPath: "/tmp/sess-replace",
		AppInfo:     "myapp",
		Status:      state.StatusRunning,
		StartTime:   1000,
	}
	if err := testRegistry.Upsert(sess); err != nil {
		t.Fatal(err)
	}

	sess.Status = state.StatusComplete
	sess.EndTime = int64Ptr(2000)
	if err := testRegistry.Upsert(sess); err != nil {
		t.Fatal(err)
	}

	got, err := testRegistry.Get(sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != state.StatusComplete || got.EndTime == nil || *got.EndTime != 2000 {
		t.Errorf("update did not replace row: got %+v", got)
	}
}

func TestListByStatus(t *testing.T) {
	for i, st := range []state.Status{state.StatusRunning, state.StatusComplete, state.StatusFailed} {
		sess := state.Session{
			SessionID:   "sess-list-" + string(st),
			SessionPath: "/tmp/x",
			AppInfo:     "app",
			Status:      st,
			StartTime:   int64(2000 + i),
		}
		if err := testRegistry.Upsert(sess); err != nil {
			t.Fatal(err)
		}
	}

	failed, err := testRegistry.ListByStatus(state.StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	for _, sess := range failed {
		if sess.Status != state.StatusFailed {
			t.Errorf("ListByStatus returned non-matching status %s", sess.Status)
		}
	}
}

func TestReconcileReplacesContents(t *testing.T) {
	if err := testRegistry.Upsert(state.Session{SessionID: "stale", SessionPath: "/tmp", AppInfo: "a", Status: state.StatusRunning, StartTime: 1}); err != nil {
		t.Fatal(err)
	}

	fresh := []state.Session{
		{SessionID: "fresh-1", SessionPath: "/tmp", AppInfo: "a", Status: state.StatusComplete, StartTime: 5},
	}
	if err := testRegistry.Reconcile(fresh); err != nil {
		t.Fatal(err)
	}

	if _, err := testRegistry.Get("stale"); err == nil {
		t.Error("expected stale record to be gone after Reconcile")
	}
	if _, err := testRegistry.Get("fresh-1"); err != nil {
		t.Errorf("expected fresh-1 to be present: %v", err)
	}
}

func TestDelete(t *testing.T) {
	sess := state.Session{SessionID: "sess-delete", SessionPath: "/tmp", AppInfo: "a", Status: state.StatusRunning, StartTime: 1}
	if err := testRegistry.Upsert(sess); err != nil {
		t.Fatal(err)
	}
	if err := testRegistry.Delete(sess.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := testRegistry.Get(sess.SessionID); err == nil {
		t.Error("expected Get to fail after Delete")
	}
}
