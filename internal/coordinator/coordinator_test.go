package coordinator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mnohosten/repcrec/internal/txn"
)

func run(t *testing.T, script string) (*Coordinator, string) {
	t.Helper()
	var out bytes.Buffer
	c := New(Config{
		Input:  strings.NewReader(script),
		Output: &out,
		Trace:  true,
	})
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return c, out.String()
}

func status(t *testing.T, c *Coordinator, id string) txn.Status {
	t.Helper()
	tr, ok := c.mgr.Transaction(id)
	if !ok {
		t.Fatalf("transaction %s not found", id)
	}
	return tr.Status
}

// Scenario 1 (spec.md §8): read-only snapshot.
func TestReadOnlySnapshotScript(t *testing.T) {
	script := `
beginRO(T1)
begin(T2)
W(T2,x1,101)
end(T2)
R(T1,x1)
end(T1)
`
	c, out := run(t, script)
	if status(t, c, "T1") != txn.Committed {
		t.Fatalf("T1 status = %v, want Committed", status(t, c, "T1"))
	}
	if status(t, c, "T2") != txn.Committed {
		t.Fatalf("T2 status = %v, want Committed", status(t, c, "T2"))
	}
	if !strings.Contains(out, "T1 reads x1 = 10") {
		t.Fatalf("trace missing T1's snapshot read of 10:\n%s", out)
	}
}

// Scenario 2 (spec.md §8): FIFO writer precedence.
func TestFIFOWriterPrecedenceScript(t *testing.T) {
	script := `
begin(T1)
begin(T2)
R(T1,x1)
W(T2,x1,999)
begin(T3)
R(T3,x1)
end(T1)
end(T2)
end(T3)
`
	c, _ := run(t, script)
	for _, id := range []string{"T1", "T2", "T3"} {
		if got := status(t, c, id); got != txn.Committed {
			t.Fatalf("%s status = %v, want Committed", id, got)
		}
	}
	home := c.sites[2].Variable("x1")
	if got := home.Latest().Value; got != 999 {
		t.Fatalf("x1 final value = %d, want 999", got)
	}
}

// Scenario 3 (spec.md §8): commit-validation abort.
func TestCommitValidationAbortScript(t *testing.T) {
	script := `
begin(T1)
W(T1,x2,55)
fail(1)
end(T1)
`
	c, out := run(t, script)
	if status(t, c, "T1") != txn.Aborted {
		t.Fatalf("T1 status = %v, want Aborted", status(t, c, "T1"))
	}
	if !strings.Contains(out, "T1 aborts") {
		t.Fatalf("trace missing abort line:\n%s", out)
	}
	surviving := c.sites[3].Variable("x2")
	if got := surviving.Latest().Value; got != 20 {
		t.Fatalf("x2 on surviving site = %d, want 20", got)
	}
}

// Scenario 4 (spec.md §8): commit-validation pass despite recovery.
func TestCommitValidationPassDespiteRecoveryScript(t *testing.T) {
	script := `
fail(2)
begin(T1)
R(T1,x3)
recover(2)
end(T1)
`
	c, _ := run(t, script)
	if status(t, c, "T1") != txn.Committed {
		t.Fatalf("T1 status = %v, want Committed", status(t, c, "T1"))
	}
}

// Scenario 5 (spec.md §8): deadlock resolution, triggered by the
// periodic every-fifth-tick detection pass.
func TestDeadlockResolutionScript(t *testing.T) {
	script := `
begin(T1)
begin(T2)
W(T1,x2,1)
W(T2,x4,1)
W(T2,x2,2)
W(T1,x4,2)
begin(T3)
begin(T4)
dump()
dump()
`
	c, out := run(t, script)
	if status(t, c, "T2") != txn.Aborted {
		t.Fatalf("T2 status = %v, want Aborted", status(t, c, "T2"))
	}
	if status(t, c, "T1") != txn.Running {
		t.Fatalf("T1 status = %v, want Running", status(t, c, "T1"))
	}
	if !strings.Contains(out, "deadlock detected: aborting T2") {
		t.Fatalf("trace missing deadlock resolution line:\n%s", out)
	}
}

// Scenario 6 (spec.md §8): non-replicated immediate availability.
func TestNonReplicatedImmediateAvailabilityScript(t *testing.T) {
	script := `
fail(4)
recover(4)
begin(T1)
R(T1,x3)
`
	c, out := run(t, script)
	if status(t, c, "T1") != txn.Running {
		t.Fatalf("T1 status = %v, want Running", status(t, c, "T1"))
	}
	if !strings.Contains(out, "T1 reads x3 = 30") {
		t.Fatalf("trace missing successful read:\n%s", out)
	}
}

// Site recovery must retry the wait list (spec.md §4.3: recover is one
// of the three Retry triggers), not just leave a parked transaction
// blocked until an unrelated end/abort/deadlock event wakes it.
func TestRecoverWakesTransactionWaitingOnNoAvailableSites(t *testing.T) {
	script := `
fail(1)
fail(2)
fail(3)
fail(4)
fail(5)
fail(6)
fail(7)
fail(8)
fail(9)
fail(10)
begin(T1)
W(T1,x2,5)
recover(1)
`
	c, _ := run(t, script)
	if status(t, c, "T1") != txn.Running {
		t.Fatalf("T1 status = %v, want Running (recover should have retried its pending write)", status(t, c, "T1"))
	}
	home := c.sites[1].Variable("x2")
	if !home.HasUncommitted() {
		t.Fatal("T1's retried write should now be held uncommitted at the recovered site")
	}
}

func TestMalformedLineTerminatesRun(t *testing.T) {
	var out bytes.Buffer
	c := New(Config{
		Input:  strings.NewReader("begin(T1\n"),
		Output: &out,
		Trace:  true,
	})
	if err := c.Run(); err == nil {
		t.Fatal("expected an error for a malformed line")
	}
}

func TestUnknownCommandTerminatesRun(t *testing.T) {
	var out bytes.Buffer
	c := New(Config{
		Input:  strings.NewReader("frobnicate(T1)\n"),
		Output: &out,
		Trace:  true,
	})
	if err := c.Run(); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestDumpCommandsProduceOutput(t *testing.T) {
	script := `
dump()
dump(x3)
dump(4)
`
	_, out := run(t, script)
	if !strings.Contains(out, "x3") {
		t.Fatalf("expected dump output to mention x3:\n%s", out)
	}
}
