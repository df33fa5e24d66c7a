package coordinator

import (
	"fmt"
	"strings"
)

// parseLine splits one input line into a command name and its
// comma-separated, whitespace-trimmed arguments, per spec.md §6's
// "Name(arg1,arg2,...)" input language. This is the direct descendant
// of original_source/src/ddbms.py's run() loop, which does the same
// split on "(" and ")" before dispatching by method name.
func parseLine(line string) (name string, args []string, err error) {
	open := strings.IndexByte(line, '(')
	if open < 0 || !strings.HasSuffix(line, ")") {
		return "", nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	name = strings.TrimSpace(line[:open])
	if name == "" {
		return "", nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	inner := line[open+1 : len(line)-1]
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return name, nil, nil
	}
	for _, part := range strings.Split(inner, ",") {
		args = append(args, strings.TrimSpace(part))
	}
	return name, args, nil
}
