package coordinator

import "errors"

// ErrMalformedLine is returned when an input line cannot be parsed as
// Name(arg1,arg2,...), per spec.md §6/§7.
var ErrMalformedLine = errors.New("malformed input line")
