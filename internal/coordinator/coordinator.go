// Package coordinator parses the input script, advances the tick
// clock, and dispatches each command to the transaction manager, per
// spec.md §4.5 / §6. It is the direct descendant of
// original_source/src/ddbms.py's run() loop.
package coordinator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mnohosten/repcrec/internal/manager"
	"github.com/mnohosten/repcrec/internal/site"
	"github.com/mnohosten/repcrec/internal/tick"
	"github.com/mnohosten/repcrec/internal/txn"
)

const numSites = 10

// Coordinator owns the clock, the sites, and the manager, and drives
// them from a stream of input lines.
type Coordinator struct {
	cfg   Config
	clock *tick.Clock
	sites map[int]*site.Site
	mgr   *manager.Manager
	out   io.Writer

	committed int
	aborted   int
}

// New constructs a Coordinator with a fresh 10-site, 20-variable
// database at tick 0, per spec.md §3.
func New(cfg Config) *Coordinator {
	sites := make(map[int]*site.Site, numSites)
	for i := 1; i <= numSites; i++ {
		sites[i] = site.New(i)
	}
	return &Coordinator{
		cfg:   cfg,
		clock: tick.New(),
		sites: sites,
		mgr:   manager.New(sites),
		out:   cfg.Output,
	}
}

// Run reads lines from cfg.Input until EOF, dispatching each one.
// It returns a non-nil error on the first malformed line or dispatch
// failure, per spec.md §6/§7's "a parse error terminates the run"
// resolution (recorded in SPEC_FULL.md §6).
func (c *Coordinator) Run() error {
	c.dumpAll(c.clock.Now())

	scanner := bufio.NewScanner(c.cfg.Input)
	lineNo := 0
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		lineNo++

		name, args, err := parseLine(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		atTick := c.clock.Advance()
		if atTick%5 == 0 {
			c.resolveDeadlocks(atTick)
		}

		if err := c.dispatch(name, args, atTick); err != nil {
			return fmt.Errorf("line %d (%s): %w", lineNo, raw, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if c.cfg.DumpOnExit {
		c.dumpAll(c.clock.Now())
	}
	c.trace("done: %d ticks processed, %d committed, %d aborted",
		c.clock.Now(), c.committed, c.aborted)
	return nil
}

func (c *Coordinator) dispatch(name string, args []string, atTick int) error {
	switch name {
	case "begin":
		return c.doBegin(args, atTick, txn.ReadWrite)
	case "beginRO", "beginro":
		return c.doBegin(args, atTick, txn.ReadOnly)
	case "R":
		return c.doRead(args, atTick)
	case "W":
		return c.doWrite(args, atTick)
	case "end":
		// Per spec.md §4.5: run an extra detection pass before end when
		// this line's tick isn't already a multiple of five.
		if atTick%5 != 0 {
			c.resolveDeadlocks(atTick)
		}
		return c.doEnd(args, atTick)
	case "fail":
		return c.doFail(args)
	case "recover":
		return c.doRecover(args, atTick)
	case "dump":
		return c.doDump(args, atTick)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrMalformedLine, name)
	}
}

func (c *Coordinator) doBegin(args []string, atTick int, kind txn.Kind) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: begin expects 1 argument, got %d", ErrMalformedLine, len(args))
	}
	id := args[0]
	var err error
	if kind == txn.ReadOnly {
		err = c.mgr.BeginRO(id, atTick)
	} else {
		err = c.mgr.Begin(id, atTick)
	}
	if err != nil {
		return err
	}
	c.trace("%s begins (%s)", id, kindLabel(kind))
	return nil
}

func kindLabel(kind txn.Kind) string {
	if kind == txn.ReadOnly {
		return "read-only"
	}
	return "read-write"
}

func (c *Coordinator) doRead(args []string, atTick int) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: R expects 2 arguments, got %d", ErrMalformedLine, len(args))
	}
	id, varName := args[0], args[1]
	val, ok, err := c.mgr.Read(id, varName, atTick)
	if err != nil {
		return err
	}
	if ok {
		c.trace("%s reads %s = %d", id, varName, val)
	} else {
		c.trace("%s blocked reading %s", id, varName)
	}
	return nil
}

func (c *Coordinator) doWrite(args []string, atTick int) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: W expects 3 arguments, got %d", ErrMalformedLine, len(args))
	}
	id, varName := args[0], args[1]
	val, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: W value %q: %v", ErrMalformedLine, args[2], err)
	}
	if err := c.mgr.Write(id, varName, val, atTick); err != nil {
		return err
	}
	t, _ := c.mgr.Transaction(id)
	switch {
	case t == nil || t.Status == txn.Aborted || t.Status == txn.Committed:
		// Already terminal; Write was a silent no-op.
	case t.Status == txn.Waiting:
		c.trace("%s blocked writing %s", id, varName)
	default:
		c.trace("%s writes %s = %d", id, varName, val)
	}
	return nil
}

func (c *Coordinator) doEnd(args []string, atTick int) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: end expects 1 argument, got %d", ErrMalformedLine, len(args))
	}
	id := args[0]
	if t, ok := c.mgr.Transaction(id); ok && t.IsTerminal() {
		// Already committed or aborted (e.g. a deadlock victim) and
		// already counted; End would be a no-op.
		return nil
	}
	if err := c.mgr.End(id, atTick); err != nil {
		return err
	}
	t, _ := c.mgr.Transaction(id)
	if t == nil {
		return nil
	}
	switch t.Status {
	case txn.Committed:
		c.committed++
		c.trace("%s commits", id)
	case txn.Aborted:
		c.aborted++
		c.trace("%s aborts", id)
	}
	return nil
}

func (c *Coordinator) doFail(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: fail expects 1 argument, got %d", ErrMalformedLine, len(args))
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: fail site %q: %v", ErrMalformedLine, args[0], err)
	}
	s, ok := c.sites[id]
	if !ok {
		return fmt.Errorf("fail site %d: %w", id, manager.ErrUnknownSite)
	}
	s.Fail()
	c.trace("site %d fails", id)
	return nil
}

func (c *Coordinator) doRecover(args []string, atTick int) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: recover expects 1 argument, got %d", ErrMalformedLine, len(args))
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: recover site %q: %v", ErrMalformedLine, args[0], err)
	}
	if err := c.mgr.Recover(id, atTick); err != nil {
		return err
	}
	c.trace("site %d recovers", id)
	return nil
}

func (c *Coordinator) doDump(args []string, atTick int) error {
	switch len(args) {
	case 0:
		c.dumpAll(atTick)
		return nil
	case 1:
		arg := args[0]
		if strings.HasPrefix(arg, "x") {
			return c.dumpVariable(arg)
		}
		sid, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: dump argument %q", ErrMalformedLine, arg)
		}
		c.dumpSite(sid)
		return nil
	default:
		return fmt.Errorf("%w: dump expects 0 or 1 arguments, got %d", ErrMalformedLine, len(args))
	}
}

// resolveDeadlocks runs deadlock detection to a fixed point and traces
// every victim, per spec.md §4.3/§4.5.
func (c *Coordinator) resolveDeadlocks(atTick int) {
	for _, victim := range c.mgr.DetectAndResolve(atTick) {
		c.aborted++
		c.trace("deadlock detected: aborting %s", victim)
	}
}

func (c *Coordinator) trace(format string, args ...any) {
	if !c.cfg.Trace {
		return
	}
	fmt.Fprintf(c.out, format+"\n", args...)
}
