package cycle

import "testing"

func containsNode(cycle []string, node string) bool {
	for _, n := range cycle {
		if n == node {
			return true
		}
	}
	return false
}

func TestNoCycleInDAG(t *testing.T) {
	d := New()
	graph := map[string][]string{
		"T1": {"T2"},
		"T2": {"T3"},
		"T3": {},
	}
	cycles := d.Detect(graph)
	if len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
}

func TestSimpleTwoNodeCycle(t *testing.T) {
	d := New()
	graph := map[string][]string{
		"T1": {"T2"},
		"T2": {"T1"},
	}
	cycles := d.Detect(graph)
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(cycles), cycles)
	}
	if !containsNode(cycles[0], "T1") || !containsNode(cycles[0], "T2") {
		t.Fatalf("cycle should contain T1 and T2, got %v", cycles[0])
	}
}

func TestFourNodeCycle(t *testing.T) {
	d := New()
	graph := map[string][]string{
		"T1": {"T2"},
		"T2": {"T3"},
		"T3": {"T4"},
		"T4": {"T1"},
	}
	cycles := d.Detect(graph)
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(cycles), cycles)
	}
	for _, n := range []string{"T1", "T2", "T3", "T4"} {
		if !containsNode(cycles[0], n) {
			t.Fatalf("cycle should contain %s, got %v", n, cycles[0])
		}
	}
}

func TestTerminalNodesContributeNoOutgoingEdges(t *testing.T) {
	d := New()
	// T3 has no outgoing edges (as if terminal); no cycle possible.
	graph := map[string][]string{
		"T1": {"T2"},
		"T2": {"T3"},
		"T3": {},
	}
	cycles := d.Detect(graph)
	if len(cycles) != 0 {
		t.Fatalf("expected no cycles with a terminal sink node, got %v", cycles)
	}
}

func TestDetectorIsStatelessBetweenCalls(t *testing.T) {
	d := New()
	d.Detect(map[string][]string{"T1": {"T2"}, "T2": {"T1"}})

	cycles := d.Detect(map[string][]string{"T3": {"T4"}, "T4": {}})
	if len(cycles) != 0 {
		t.Fatalf("second Detect call should not see stale state from the first, got %v", cycles)
	}
}

func TestDisjointCyclesBothFound(t *testing.T) {
	d := New()
	graph := map[string][]string{
		"T1": {"T2"},
		"T2": {"T1"},
		"T3": {"T4"},
		"T4": {"T3"},
	}
	cycles := d.Detect(graph)
	if len(cycles) != 2 {
		t.Fatalf("expected 2 disjoint cycles, got %d: %v", len(cycles), cycles)
	}
}
