package verify

import "fmt"

// Bounds is an inclusive page-count range. A nil side is unbounded.
type Bounds struct {
	Min *int
	Max *int
}

// NewBounds treats a non-positive min as absent, so NewBounds(0, nil) is
// inactive.
func NewBounds(minPages int, maxPages *int) Bounds {
	var b Bounds
	if minPages > 0 {
		b.Min = &minPages
	}
	if maxPages != nil {
		m := *maxPages
		b.Max = &m
	}
	return b
}

// Pages returns a pointer to n, for building Bounds literals.
func Pages(n int) *int { return &n }

// Active reports whether filtering is requested at all.
func (b Bounds) Active() bool {
	return (b.Min != nil && *b.Min > 0) || b.Max != nil
}

// Contains reports min <= n <= max, with absent sides unbounded.
func (b Bounds) Contains(n int) bool {
	if b.Min != nil && n < *b.Min {
		return false
	}
	if b.Max != nil && n > *b.Max {
		return false
	}
	return true
}

func (b Bounds) String() string {
	lo, hi := "0", "inf"
	if b.Min != nil {
		lo = fmt.Sprint(*b.Min)
	}
	if b.Max != nil {
		hi = fmt.Sprint(*b.Max)
	}
	return "[" + lo + ", " + hi + "]"
}
