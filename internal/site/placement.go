package site

import (
	"fmt"
	"strconv"
	"strings"
)

// Index extracts N from a variable name "xN", per spec.md §3/§6.
func Index(name string) (int, error) {
	n := strings.TrimPrefix(name, "x")
	if n == name {
		return 0, fmt.Errorf("variable name %q does not start with 'x'", name)
	}
	idx, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("variable name %q: %w", name, err)
	}
	return idx, nil
}

// Replicated reports whether variable index N lives on every site
// (even N) as opposed to a single site (odd N).
func Replicated(idx int) bool {
	return idx%2 == 0
}

// HomeSiteID returns the single site id hosting odd-indexed variable
// N: site 1+(N mod 10). Only meaningful when !Replicated(idx).
func HomeSiteID(idx int) int {
	return 1 + idx%10
}

// Sites returns, in ascending order, the site ids that host variable
// index idx, regardless of whether those sites are currently up.
func Sites(idx int) []int {
	if Replicated(idx) {
		ids := make([]int, 0, 10)
		for i := 1; i <= 10; i++ {
			ids = append(ids, i)
		}
		return ids
	}
	return []int{HomeSiteID(idx)}
}
