// Package site implements the per-site variable store and lock table,
// per spec.md §4.2. Sites never talk to each other; every method here
// operates purely on this site's own state.
package site

import (
	"fmt"

	"github.com/mnohosten/repcrec/internal/variable"
)

// lockEntry is the lock-table row for one variable: the set of
// read-lock holders and the (at most one) write-lock holder.
type lockEntry struct {
	readers map[string]bool
	writer  string // "" means unheld
}

func newLockEntry() *lockEntry {
	return &lockEntry{readers: make(map[string]bool)}
}

// Site owns a replica of the 20 database variables it is responsible
// for (all 10 replicate the even ones; each even-numbered site also
// hosts two odd ones, odd-numbered sites host none) plus that
// replica's lock table.
type Site struct {
	ID      int
	Up      bool
	UpSince int

	vars  map[string]*variable.Variable
	locks map[string]*lockEntry
}

// New constructs site id with its statically placed variables,
// initialized at tick 0 per spec.md §3 (variable xN starts at 10*N).
func New(id int) *Site {
	s := &Site{ID: id}
	s.initVars()
	s.Up = true
	s.UpSince = 0
	return s
}

func (s *Site) initVars() {
	s.vars = make(map[string]*variable.Variable)
	s.locks = make(map[string]*lockEntry)
	for n := 1; n <= 20; n++ {
		hosted := Replicated(n) || HomeSiteID(n) == s.ID
		if !hosted {
			continue
		}
		name := fmt.Sprintf("x%d", n)
		s.vars[name] = variable.New(name, 10*n)
		s.locks[name] = newLockEntry()
	}
}

// Hosts reports whether this site holds a replica of varName.
func (s *Site) Hosts(varName string) bool {
	_, ok := s.vars[varName]
	return ok
}

// acquireReadLock implements spec.md §4.2's read-lock grant policy.
// On denial it returns the write-lock holder, if any, as blocker.
func (s *Site) acquireReadLock(txnID, varName string) (ok bool, blocker string) {
	v := s.vars[varName]
	entry := s.locks[varName]

	if !v.AvailableForRead {
		return false, ""
	}
	if entry.writer != "" && entry.writer != txnID {
		return false, entry.writer
	}
	if entry.writer == txnID {
		// Write lock subsumes read; no new read lock recorded.
		return true, ""
	}
	entry.readers[txnID] = true
	return true, ""
}

// acquireWriteLock implements spec.md §4.2's write-lock grant policy.
// On denial it returns every current lock holder on v except txnID.
func (s *Site) acquireWriteLock(txnID, varName string) (ok bool, blockers []string) {
	entry := s.locks[varName]

	soleReader := len(entry.readers) == 1 && entry.readers[txnID]
	readersClear := len(entry.readers) == 0 || soleReader
	writerClear := entry.writer == "" || entry.writer == txnID

	if !readersClear || !writerClear {
		seen := make(map[string]bool)
		for r := range entry.readers {
			if r != txnID && !seen[r] {
				blockers = append(blockers, r)
				seen[r] = true
			}
		}
		if entry.writer != "" && entry.writer != txnID && !seen[entry.writer] {
			blockers = append(blockers, entry.writer)
		}
		return false, blockers
	}

	if soleReader {
		delete(entry.readers, txnID)
	}
	entry.writer = txnID
	return true, nil
}

// Read performs a read at this site, per spec.md §4.2.
// Returns (value, ok, blocker). blocker is only meaningful when !ok.
func (s *Site) Read(txnID string, isReadOnly bool, timestamp int, varName string) (value int, ok bool, blocker string) {
	if !s.Up {
		return 0, false, ""
	}
	v := s.vars[varName]

	if isReadOnly {
		val, readOK := v.Read(true, timestamp)
		return val, readOK, ""
	}

	lockOK, blk := s.acquireReadLock(txnID, varName)
	if !lockOK {
		return 0, false, blk
	}
	val, readOK := v.Read(false, timestamp)
	return val, readOK, ""
}

// Write attempts to write val to varName at this site, per spec.md
// §4.2. A down site reports (false, nil): down, not contested.
func (s *Site) Write(txnID, varName string, val int) (ok bool, blockers []string) {
	if !s.Up {
		return false, nil
	}
	lockOK, blk := s.acquireWriteLock(txnID, varName)
	if !lockOK {
		return false, blk
	}
	s.vars[varName].Write(val)
	return true, nil
}

// ReleaseWriteLock releases a write lock this transaction holds on
// varName without committing or aborting, discarding any uncommitted
// value it wrote. Used to unwind partial locks from a write attempt
// that failed on a different site, per spec.md §4.3.
func (s *Site) ReleaseWriteLock(txnID, varName string) {
	entry, ok := s.locks[varName]
	if !ok || entry.writer != txnID {
		return
	}
	s.vars[varName].AbortClear()
	entry.writer = ""
}

// Commit commits every variable this transaction holds the write lock
// on and releases every lock (read or write) it holds at this site.
func (s *Site) Commit(txnID string, tick int) {
	for name, entry := range s.locks {
		if entry.writer == txnID {
			s.vars[name].Commit(tick)
			entry.writer = ""
		}
		delete(entry.readers, txnID)
	}
}

// Abort releases every lock this transaction holds at this site,
// discarding any uncommitted value it had written.
func (s *Site) Abort(txnID string) {
	for name, entry := range s.locks {
		delete(entry.readers, txnID)
		if entry.writer == txnID {
			s.vars[name].AbortClear()
			entry.writer = ""
		}
	}
}

// LockHolders returns the blockers of varName at this site: read-lock
// holders plus the write-lock holder, useful for deadlock-graph
// construction callers that need a consistent view independent of a
// particular transaction's attempt.
func (s *Site) LockHolders(varName string) (readers []string, writer string) {
	entry, ok := s.locks[varName]
	if !ok {
		return nil, ""
	}
	for r := range entry.readers {
		readers = append(readers, r)
	}
	return readers, entry.writer
}

// Fail marks the site down. The lock table is cleared and every
// variable's uncommitted value is discarded; reads and writes fail
// from this point until Recover.
func (s *Site) Fail() {
	s.Up = false
	for _, v := range s.vars {
		v.AbortClear()
	}
	s.locks = make(map[string]*lockEntry)
	for name := range s.vars {
		s.locks[name] = newLockEntry()
	}
}

// Recover brings the site back up at the given tick. Replicated
// (even) variables become unavailable for read until their first
// post-recovery commit; non-replicated (odd) variables, which have
// nothing else to sync from, are immediately available.
func (s *Site) Recover(tick int) {
	s.locks = make(map[string]*lockEntry)
	for name, v := range s.vars {
		s.locks[name] = newLockEntry()
		idx, err := Index(name)
		if err != nil {
			continue
		}
		v.AvailableForRead = !Replicated(idx)
	}
	s.Up = true
	s.UpSince = tick
}

// VariableIDs returns the sorted-by-nothing-in-particular set of
// variable names hosted at this site; callers that need a
// deterministic order should sort the result.
func (s *Site) VariableIDs() []string {
	out := make([]string, 0, len(s.vars))
	for name := range s.vars {
		out = append(out, name)
	}
	return out
}

// Variable returns the named variable hosted at this site, or nil.
func (s *Site) Variable(varName string) *variable.Variable {
	return s.vars[varName]
}
