// Package expand grows seed units into contiguous, list-aware context blocks.
package expand

import (
	"sort"

	"ragqa/internal/lexical"
)

// Options sets the scan window around each seed. LookBehind and LookAhead are unit
// counts; EarlyStop is the distance past which a forward scan ends at the first unit
// without a list marker.
type Options struct {
	LookBehind int
	LookAhead  int
	EarlyStop  int
}

func DefaultOptions() Options {
	return Options{LookBehind: 1, LookAhead: 20, EarlyStop: 8}
}

// Expander reconstructs enumerations and continuations that ingestion split across
// adjacent units. It favours recall: adjacent context is over-included rather than
// an enumeration truncated.
type Expander struct {
	opts Options
}

func New(opts Options) *Expander {
	if opts.LookBehind < 0 {
		opts.LookBehind = 0
	}
	if opts.LookAhead < 0 {
		opts.LookAhead = 0
	}
	if opts.EarlyStop < 0 {
		opts.EarlyStop = 0
	}
	return &Expander{opts: opts}
}

// Expand returns the union of the windows around every seed, ascending and without
// duplicates. A scanned unit is kept when it is the seed, starts with a list marker,
// or contains one of the keywords. Out-of-range seeds are ignored.
func (x *Expander) Expand(seeds []int, keywords []string, entries []lexical.Entry) []int {
	n := len(entries)
	included := make(map[int]struct{})
	keep := func(i int) bool {
		return entries[i].ListItem || entries[i].ContainsAny(keywords)
	}

	for _, s := range seeds {
		if s < 0 || s >= n {
			continue
		}
		included[s] = struct{}{}

		for i := s - 1; i >= 0 && i >= s-x.opts.LookBehind; i-- {
			if keep(i) {
				included[i] = struct{}{}
			}
		}

		for i := s + 1; i < n && i <= s+x.opts.LookAhead; i++ {
			if keep(i) {
				included[i] = struct{}{}
			}
			if i-s > x.opts.EarlyStop && !entries[i].ListItem {
				break
			}
		}
	}

	out := make([]int, 0, len(included))
	for i := range included {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
