// Package manager implements the transaction manager: routing of
// reads and writes across site replicas, the FIFO wait list, retry on
// unblock, commit-time available-copies validation, and deadlock
// resolution, per spec.md §4.3.
package manager

import (
	"fmt"

	"github.com/mnohosten/repcrec/internal/cycle"
	"github.com/mnohosten/repcrec/internal/site"
	"github.com/mnohosten/repcrec/internal/txn"
)

// Manager dispatches operations across sites and owns all transaction
// bookkeeping. Sites never talk to each other; only the manager
// consults them.
type Manager struct {
	sites    map[int]*site.Site
	txns     map[string]*txn.Transaction
	waitList []string // FIFO: retry order is enqueue order
	detector *cycle.Detector
}

// New constructs a manager over the given site map, keyed by site id.
func New(sites map[int]*site.Site) *Manager {
	return &Manager{
		sites:    sites,
		txns:     make(map[string]*txn.Transaction),
		detector: cycle.New(),
	}
}

// Transaction returns the transaction record for id, if any.
func (m *Manager) Transaction(id string) (*txn.Transaction, bool) {
	t, ok := m.txns[id]
	return t, ok
}

// Begin starts a read-write transaction at the given tick.
func (m *Manager) Begin(id string, atTick int) error {
	if existing, ok := m.txns[id]; ok && !existing.IsTerminal() {
		return fmt.Errorf("begin %s: %w", id, ErrTransactionExists)
	}
	m.txns[id] = txn.New(id, atTick, txn.ReadWrite)
	return nil
}

// BeginRO starts a read-only transaction at the given tick.
func (m *Manager) BeginRO(id string, atTick int) error {
	if existing, ok := m.txns[id]; ok && !existing.IsTerminal() {
		return fmt.Errorf("beginRO %s: %w", id, ErrTransactionExists)
	}
	m.txns[id] = txn.New(id, atTick, txn.ReadOnly)
	return nil
}

// Locate returns, in ascending order, the site ids hosting varName.
func (m *Manager) Locate(varName string) ([]int, error) {
	idx, err := site.Index(varName)
	if err != nil {
		return nil, err
	}
	return site.Sites(idx), nil
}

// Read attempts a read of varName on behalf of id at the given tick.
// ok reports whether the read succeeded; value is only meaningful
// when ok is true.
func (m *Manager) Read(id, varName string, atTick int) (value int, ok bool, err error) {
	t, found := m.txns[id]
	if !found {
		return 0, false, fmt.Errorf("read %s %s: %w", id, varName, ErrUnknownTransaction)
	}
	if t.IsTerminal() {
		return 0, false, nil
	}

	if blocker := m.earlierPendingWriter(id, varName); blocker != "" {
		t.AddWaitFor(blocker)
		m.enqueueWaiting(t, &txn.Operation{Kind: txn.OpRead, Var: varName})
		return 0, false, nil
	}

	sites, err := m.Locate(varName)
	if err != nil {
		return 0, false, err
	}

	for _, sid := range sites {
		s := m.sites[sid]
		val, readOK, blocker := s.Read(id, t.Kind == txn.ReadOnly, t.StartTick, varName)
		if readOK {
			if t.Kind == txn.ReadWrite {
				t.RecordFirstAccess(sid, atTick)
			}
			m.removeFromWaitList(id)
			t.Status = txn.Running
			t.ClearWaitFor()
			return val, true, nil
		}
		if blocker != "" {
			t.AddWaitFor(blocker)
			break
		}
	}

	m.enqueueWaiting(t, &txn.Operation{Kind: txn.OpRead, Var: varName})
	return 0, false, nil
}

// earlierPendingWriter returns the id of the earliest transaction in
// the wait list, before id's own position (or before the whole list if
// id is not yet enqueued), whose pending operation is a write on
// varName. Returns "" if none.
func (m *Manager) earlierPendingWriter(id, varName string) string {
	limit := len(m.waitList)
	if pos := m.waitListPosition(id); pos >= 0 {
		limit = pos
	}
	for i := 0; i < limit; i++ {
		waiterID := m.waitList[i]
		waiter := m.txns[waiterID]
		if waiter == nil || waiter.Pending == nil {
			continue
		}
		if waiter.Pending.Kind == txn.OpWrite && waiter.Pending.Var == varName {
			return waiterID
		}
	}
	return ""
}

// Write attempts a write of val to varName on behalf of id at the
// given tick, per spec.md §4.3's available-copies write rule.
func (m *Manager) Write(id, varName string, val int, atTick int) error {
	t, found := m.txns[id]
	if !found {
		return fmt.Errorf("write %s %s: %w", id, varName, ErrUnknownTransaction)
	}
	if t.IsTerminal() {
		return nil
	}

	sites, err := m.Locate(varName)
	if err != nil {
		return err
	}

	var acquiredAt []int
	var blockers []string
	conflict := false
	anyAccepted := false

	for _, sid := range sites {
		s := m.sites[sid]
		ok, blk := s.Write(id, varName, val)
		switch {
		case ok:
			anyAccepted = true
			acquiredAt = append(acquiredAt, sid)
		case blk != nil:
			conflict = true
			blockers = append(blockers, blk...)
		default:
			// site down: contributes neither a success nor a blocker
		}
	}

	if !conflict && anyAccepted {
		for _, sid := range acquiredAt {
			t.RecordFirstAccess(sid, atTick)
		}
		m.removeFromWaitList(id)
		t.Status = txn.Running
		t.ClearWaitFor()
		return nil
	}

	// Failure: release any locks this attempt itself acquired, so
	// retries never retain partial state across attempts.
	for _, sid := range acquiredAt {
		m.sites[sid].ReleaseWriteLock(id, varName)
	}
	for _, b := range blockers {
		t.AddWaitFor(b)
	}
	m.enqueueWaiting(t, &txn.Operation{Kind: txn.OpWrite, Var: varName, Value: val})
	return nil
}

// End attempts to commit id, per spec.md §4.3.
func (m *Manager) End(id string, atTick int) error {
	t, found := m.txns[id]
	if !found {
		return fmt.Errorf("end %s: %w", id, ErrUnknownTransaction)
	}
	if t.IsTerminal() {
		return nil
	}

	if m.waitListPosition(id) >= 0 {
		return m.Abort(id, atTick)
	}

	if t.Kind == txn.ReadOnly {
		t.Status = txn.Committed
		m.clearFromOthersWaitFor(id)
		m.Retry(atTick)
		return nil
	}

	for sid, firstAccess := range t.SiteAccess {
		s := m.sites[sid]
		if !s.Up || s.UpSince > firstAccess {
			return m.Abort(id, atTick)
		}
	}

	for sid := range t.SiteAccess {
		m.sites[sid].Commit(id, atTick)
	}
	t.Status = txn.Committed
	m.clearFromOthersWaitFor(id)
	m.Retry(atTick)
	return nil
}

// Recover brings site id back up at the given tick and retries the
// wait list, per spec.md §4.3: a site recovery is one of the three
// events ((a) end/commit, (b) site recover, (c) deadlock-abort) that
// must re-drive transactions parked on "no available sites".
func (m *Manager) Recover(siteID, atTick int) error {
	s, ok := m.sites[siteID]
	if !ok {
		return fmt.Errorf("recover site %d: %w", siteID, ErrUnknownSite)
	}
	s.Recover(atTick)
	m.Retry(atTick)
	return nil
}

// Abort aborts id, per spec.md §4.3.
func (m *Manager) Abort(id string, atTick int) error {
	t, found := m.txns[id]
	if !found {
		return fmt.Errorf("abort %s: %w", id, ErrUnknownTransaction)
	}
	if t.IsTerminal() {
		return nil
	}

	m.removeFromWaitList(id)
	t.Status = txn.Aborted

	if t.Kind == txn.ReadWrite {
		for sid := range t.SiteAccess {
			m.sites[sid].Abort(id)
		}
	}

	m.clearFromOthersWaitFor(id)
	m.Retry(atTick)
	return nil
}

// Retry re-issues the pending operation of every transaction in the
// wait list, in enqueue order, as of the moment Retry is called.
func (m *Manager) Retry(atTick int) {
	snapshot := append([]string(nil), m.waitList...)
	for _, id := range snapshot {
		t, ok := m.txns[id]
		if !ok || t.IsTerminal() || t.Pending == nil {
			continue
		}
		op := t.Pending
		switch op.Kind {
		case txn.OpRead:
			m.Read(id, op.Var, atTick)
		case txn.OpWrite:
			m.Write(id, op.Var, op.Value, atTick)
		}
	}
}

// DetectAndResolve runs deadlock detection to a fixed point: while any
// cycle exists in the waits-for graph, it aborts the youngest
// transaction in the first discovered cycle (ties broken by
// lexicographically larger id) and retries. It returns the ids of
// every transaction aborted this way, in abort order.
func (m *Manager) DetectAndResolve(atTick int) []string {
	var victims []string
	for {
		graph := m.waitForGraph()
		cycles := m.detector.Detect(graph)
		if len(cycles) == 0 {
			return victims
		}
		victim := m.chooseVictim(cycles[0])
		m.Abort(victim, atTick)
		victims = append(victims, victim)
	}
}

func (m *Manager) waitForGraph() map[string][]string {
	graph := make(map[string][]string, len(m.txns))
	for id := range m.txns {
		graph[id] = nil
	}
	for id, t := range m.txns {
		if t.IsTerminal() {
			continue
		}
		for blocker := range t.WaitFor {
			graph[id] = append(graph[id], blocker)
		}
	}
	return graph
}

func (m *Manager) chooseVictim(cycleNodes []string) string {
	victim := cycleNodes[0]
	for _, id := range cycleNodes[1:] {
		if m.youngerThan(id, victim) {
			victim = id
		}
	}
	return victim
}

// youngerThan reports whether candidate should replace current as the
// chosen victim: a strictly larger start tick, or a tie broken by
// lexicographically larger id.
func (m *Manager) youngerThan(candidate, current string) bool {
	c, cur := m.txns[candidate], m.txns[current]
	if c.StartTick != cur.StartTick {
		return c.StartTick > cur.StartTick
	}
	return candidate > current
}

func (m *Manager) clearFromOthersWaitFor(id string) {
	for _, t := range m.txns {
		delete(t.WaitFor, id)
	}
}

func (m *Manager) enqueueWaiting(t *txn.Transaction, op *txn.Operation) {
	t.Status = txn.Waiting
	t.Pending = op
	if m.waitListPosition(t.ID) < 0 {
		m.waitList = append(m.waitList, t.ID)
	}
}

func (m *Manager) waitListPosition(id string) int {
	for i, w := range m.waitList {
		if w == id {
			return i
		}
	}
	return -1
}

func (m *Manager) removeFromWaitList(id string) {
	pos := m.waitListPosition(id)
	if pos < 0 {
		return
	}
	m.waitList = append(m.waitList[:pos], m.waitList[pos+1:]...)
}
