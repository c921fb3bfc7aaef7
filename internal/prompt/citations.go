package prompt

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	citationRe  = regexp.MustCompile(`\[([0-9٠-٩]+)\]`)
	referenceRe = regexp.MustCompile(`^\s*\[?([0-9٠-٩]+)\]?\s*[-–.)]`)
	digitFolder = strings.NewReplacer("٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9")
)

// CitationReport describes how an answer follows the citation contract: citation
// numbers appear in strictly increasing order from 1 without gaps or repeats, and
// the bibliography lists exactly the cited numbers.
type CitationReport struct {
	Cited    []int
	Listed   []int
	Problems []string
}

func (r CitationReport) OK() bool { return len(r.Problems) == 0 }

// CheckCitations inspects answer against the citation contract. It never fails;
// violations are listed in the report.
func CheckCitations(answer string) CitationReport {
	body, bib, hasBib := strings.Cut(answer, ReferencesLabel)
	var r CitationReport

	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(body, -1) {
		n := atoi(m[1])
		if seen[n] {
			r.Problems = append(r.Problems, fmt.Sprintf("citation [%d] repeated", n))
			continue
		}
		seen[n] = true
		if want := len(r.Cited) + 1; n != want {
			r.Problems = append(r.Problems, fmt.Sprintf("citation [%d] out of sequence, expected [%d]", n, want))
		}
		r.Cited = append(r.Cited, n)
	}

	if !hasBib {
		if len(r.Cited) > 0 {
			r.Problems = append(r.Problems, "bibliography missing")
		}
		return r
	}
	for _, line := range strings.Split(bib, "\n") {
		if m := referenceRe.FindStringSubmatch(line); m != nil {
			r.Listed = append(r.Listed, atoi(m[1]))
		}
	}
	cited := slices.Sorted(slices.Values(r.Cited))
	listed := slices.Compact(slices.Sorted(slices.Values(r.Listed)))
	if !slices.Equal(cited, listed) {
		r.Problems = append(r.Problems, fmt.Sprintf("bibliography lists %v, cited %v", listed, cited))
	}
	return r
}

func atoi(s string) int {
	n, _ := strconv.Atoi(digitFolder.Replace(s))
	return n
}
