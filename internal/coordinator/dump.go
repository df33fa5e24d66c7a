package coordinator

import (
	"fmt"
	"sort"

	"github.com/mnohosten/repcrec/internal/site"
)

// dumpAll prints every site's state, per spec.md §6's dump(). Grounded
// on original_source/src/ddbms.py's querystate(), which iterates sites
// in id order and defers the per-variable formatting to dbsite.py.
func (c *Coordinator) dumpAll(atTick int) {
	fmt.Fprintf(c.out, "dump at tick %d:\n", atTick)
	for _, sid := range c.siteIDs() {
		c.dumpSite(sid)
	}
}

// dumpSite prints all variables of a single site. A down site prints a
// down marker instead, per spec.md §6.
func (c *Coordinator) dumpSite(sid int) {
	s, ok := c.sites[sid]
	if !ok {
		fmt.Fprintf(c.out, "  site %d: unknown\n", sid)
		return
	}
	if !s.Up {
		fmt.Fprintf(c.out, "  site %d: down\n", sid)
		return
	}
	names := s.VariableIDs()
	sort.Strings(names)
	for _, name := range names {
		v := s.Variable(name)
		fmt.Fprintf(c.out, "  site %d: %s = %d\n", sid, name, v.Latest().Value)
	}
}

// dumpVariable prints varName at every site that hosts it and
// currently has it available for read, per spec.md §6's dump(xN).
func (c *Coordinator) dumpVariable(varName string) error {
	idx, err := site.Index(varName)
	if err != nil {
		return err
	}
	for _, sid := range site.Sites(idx) {
		s := c.sites[sid]
		if !s.Up {
			continue
		}
		v := s.Variable(varName)
		if v == nil || !v.AvailableForRead {
			continue
		}
		fmt.Fprintf(c.out, "  %s at site %d = %d\n", varName, sid, v.Latest().Value)
	}
	return nil
}

func (c *Coordinator) siteIDs() []int {
	ids := make([]int, 0, len(c.sites))
	for id := range c.sites {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
