package review

import "sort"

// Segment is a render-time union of strictly overlapping spans from one or
// more highlights. HighlightIDs preserves first-encounter order during the
// sweep; FirstSpanOwner records, per highlight, whether the segment contains
// that highlight's first span (the anchor the viewer scrolls to).
type Segment struct {
	Start          int             `json:"start"`
	End            int             `json:"end"`
	HighlightIDs   []string        `json:"highlightIds"`
	FirstSpanOwner map[string]bool `json:"firstSpanOwner"`
}

// spanRef tags a span with its owning highlight and its position within it.
type spanRef struct {
	start, end int
	highlight  string
	index      int
}

// Merge partitions the active highlight set into segments. When isolatedID is
// non-empty only that highlight contributes (empty result if it is unknown).
//
// Spans merge only on strict overlap: a span whose start equals the current
// segment's end starts a new segment. Sorting all spans by start before the
// sweep makes the union correct regardless of input order, including spans
// that would otherwise extend an earlier segment backward.
func Merge(highlights []Highlight, isolatedID string) []Segment {
	active := highlights
	if isolatedID != "" {
		active = nil
		for _, h := range highlights {
			if h.ID == isolatedID {
				active = []Highlight{h}
				break
			}
		}
	}

	var refs []spanRef
	for _, h := range active {
		for i, s := range h.Spans {
			refs = append(refs, spanRef{start: s.Start, end: s.End, highlight: h.ID, index: i})
		}
	}
	if len(refs) == 0 {
		return []Segment{}
	}

	// Stable keeps ties in emission order: highlight order, then span index.
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].start < refs[j].start
	})

	segments := []Segment{newSegment(refs[0])}
	for _, ref := range refs[1:] {
		last := &segments[len(segments)-1]
		if ref.start < last.End && ref.end > last.Start {
			last.absorb(ref)
			continue
		}
		segments = append(segments, newSegment(ref))
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	return segments
}

func newSegment(ref spanRef) Segment {
	return Segment{
		Start:          ref.start,
		End:            ref.end,
		HighlightIDs:   []string{ref.highlight},
		FirstSpanOwner: map[string]bool{ref.highlight: ref.index == 0},
	}
}

func (s *Segment) absorb(ref spanRef) {
	if ref.start < s.Start {
		s.Start = ref.start
	}
	if ref.end > s.End {
		s.End = ref.end
	}
	if _, seen := s.FirstSpanOwner[ref.highlight]; !seen {
		s.HighlightIDs = append(s.HighlightIDs, ref.highlight)
		s.FirstSpanOwner[ref.highlight] = ref.index == 0
		return
	}
	if ref.index == 0 {
		s.FirstSpanOwner[ref.highlight] = true
	}
}
