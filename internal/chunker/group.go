package chunker

import (
	"strings"
	"unicode/utf8"
)

// fragment is a [start, end) byte range of the body.
type fragment struct {
	start, end int
	fixed      bool
}

// group packs consecutive segments into fragments. A fragment is closed before
// the segment that would push it past target. A segment longer than
// target*ratio is never merged with its neighbours; it is sliced on its own
// with the fixed-size splitter.
func group(body string, bounds []int, target int, ratio float64) []fragment {
	limit := int(float64(target) * ratio)
	var frags []fragment
	start, prev := 0, 0
	for _, b := range bounds {
		if b-prev > limit {
			if prev > start {
				frags = append(frags, fragment{start: start, end: prev})
			}
			frags = append(frags, toFragments(fixedCuts(body, prev, b, target), prev, true)...)
			start, prev = b, b
			continue
		}
		if b-start > target && prev > start {
			frags = append(frags, fragment{start: start, end: prev})
			start = prev
		}
		prev = b
	}
	if prev > start {
		frags = append(frags, fragment{start: start, end: prev})
	}
	return frags
}

func toFragments(cuts []int, from int, fixed bool) []fragment {
	frags := make([]fragment, 0, len(cuts))
	start := from
	for _, c := range cuts {
		frags = append(frags, fragment{start: start, end: c, fixed: fixed})
		start = c
	}
	return frags
}

// fixedCuts slices body[from:to] into pieces of about target bytes and
// returns the end offset of each piece. It is pure string arithmetic and
// cannot fail.
func fixedCuts(body string, from, to, target int) []int {
	if target <= 0 {
		target = DefaultTargetBytes
	}
	var cuts []int
	pos := from
	for to-pos > target {
		c := safeCut(body, pos, pos+target, to, target)
		cuts = append(cuts, c)
		pos = c
	}
	if pos < to {
		cuts = append(cuts, to)
	}
	return cuts
}

// safeCut picks the closing-tag boundary nearest to ideal, looking back to
// start and forward half a target. Without one it cuts at ideal, moved off
// any partial tag or UTF-8 sequence. The result is always in (start, limit].
func safeCut(body string, start, ideal, limit, target int) int {
	back := -1
	if i := strings.LastIndex(body[start:ideal], "</"); i >= 0 {
		if j := strings.IndexByte(body[start+i:limit], '>'); j >= 0 {
			back = start + i + j + 1
		}
	}
	if back-start < target/4 {
		back = -1
	}

	fwd := -1
	horizon := min(limit, ideal+target/2)
	if i := strings.Index(body[ideal:horizon], "</"); i >= 0 {
		if j := strings.IndexByte(body[ideal+i:limit], '>'); j >= 0 {
			fwd = ideal + i + j + 1
		}
	}

	c := -1
	switch {
	case back > start && fwd > start:
		c = back
		if fwd-ideal < ideal-back {
			c = fwd
		}
	case back > start:
		c = back
	case fwd > start:
		c = fwd
	}
	if c > start && c <= limit {
		return c
	}

	c = ideal
	window := body[start:c]
	if lt, gt := strings.LastIndexByte(window, '<'), strings.LastIndexByte(window, '>'); lt > gt && lt > 0 {
		c = start + lt
	}
	for c > start && c < len(body) && !utf8.RuneStart(body[c]) {
		c--
	}
	if c <= start {
		c = ideal
		for c < limit && !utf8.RuneStart(body[c]) {
			c++
		}
	}
	return c
}
