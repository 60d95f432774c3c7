package record

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/dcosson/termscene/internal/dump"
)

func skipIfNoShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("record engine requires a POSIX PTY/shell")
	}
}

func TestRunRecordsDeterministicTimestamps(t *testing.T) {
	skipIfNoShell(t)

	script, err := ParseScript([]byte(`
command: ["sh", "-c", "printf hello; sleep 10"]
cols: 80
rows: 24
steps:
  - wait:
      content: "hello"
      timeout_ms: 2000
      poll_ms: 10
  - snapshot
  - input: "\n"
  - snapshot
`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}

	dumpPath := filepath.Join(t.TempDir(), "session.dump")
	count, err := Run(script, dumpPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 snapshots, got %d", count)
	}

	r, err := dump.Open(dumpPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var timestamps []int64
	for entry := range r.Snapshots(nil) {
		timestamps = append(timestamps, entry.Snapshot.Timestamp)
	}
	if len(timestamps) != 2 {
		t.Fatalf("expected 2 entries in the dump, got %d", len(timestamps))
	}
	// Step indices 1 and 3 in the script above are the "snapshot" steps.
	if timestamps[0] != 1000 || timestamps[1] != 3000 {
		t.Fatalf("expected deterministic timestamps [1000 3000], got %v", timestamps)
	}
}

func TestRunSurfacesWaitTimeout(t *testing.T) {
	skipIfNoShell(t)

	script, err := ParseScript([]byte(`
command: ["sh", "-c", "sleep 10"]
steps:
  - wait:
      content: "this never appears"
      timeout_ms: 100
      poll_ms: 10
`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}

	dumpPath := filepath.Join(t.TempDir(), "session.dump")
	_, err = Run(script, dumpPath)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if _, ok := err.(*ErrTimeout); !ok {
		t.Fatalf("expected an *ErrTimeout, got %T: %v", err, err)
	}
}
