// Package txn implements transaction and operation metadata, per
// spec.md §3 / §4.3.
package txn

// Kind distinguishes read-write from read-only transactions.
type Kind int

const (
	ReadWrite Kind = iota
	ReadOnly
)

// Status is a transaction's lifecycle state.
type Status int

const (
	Running Status = iota
	Waiting
	Aborted
	Committed
)

// OpKind distinguishes a pending read from a pending write.
type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
)

// Operation is a transaction's single pending operation while Waiting.
type Operation struct {
	Kind  OpKind
	Var   string
	Value int // meaningful only when Kind == OpWrite
}

// Transaction holds everything the manager needs to route and
// validate one transaction's operations.
type Transaction struct {
	ID        string
	StartTick int
	Kind      Kind
	Status    Status

	WaitFor map[string]bool // transaction ids this one is blocked on

	Pending *Operation

	// SiteAccess maps site id to the tick of this transaction's
	// earliest successful access at that site; never overwritten once
	// set, per spec.md §5.
	SiteAccess map[int]int
}

// New creates a transaction in the Running state.
func New(id string, startTick int, kind Kind) *Transaction {
	return &Transaction{
		ID:         id,
		StartTick:  startTick,
		Kind:       kind,
		Status:     Running,
		WaitFor:    make(map[string]bool),
		SiteAccess: make(map[int]int),
	}
}

// IsTerminal reports whether the transaction can no longer be acted
// upon: committed or aborted transactions are immutable.
func (t *Transaction) IsTerminal() bool {
	return t.Status == Aborted || t.Status == Committed
}

// RecordFirstAccess records tick as the first-access tick for siteID,
// unless one is already recorded.
func (t *Transaction) RecordFirstAccess(siteID, tick int) {
	if _, seen := t.SiteAccess[siteID]; !seen {
		t.SiteAccess[siteID] = tick
	}
}

// AddWaitFor unions blocker into this transaction's wait-for set. A
// blank blocker (no identifiable lock holder) is a no-op.
func (t *Transaction) AddWaitFor(blocker string) {
	if blocker == "" || blocker == t.ID {
		return
	}
	t.WaitFor[blocker] = true
}

// ClearWaitFor empties the wait-for set, e.g. on a successful retry.
func (t *Transaction) ClearWaitFor() {
	t.WaitFor = make(map[string]bool)
}
