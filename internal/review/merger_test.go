package review

import (
	"reflect"
	"testing"
)

func hl(id string, spans ...Span) Highlight {
	return Highlight{ID: id, Spans: spans}
}

func TestMergeDisjointSpansKeepBoundaries(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 10, End: 20}),
		hl("h2", Span{Start: 30, End: 40}),
		hl("h3", Span{Start: 50, End: 60}),
	}

	segments := Merge(highlights, "")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, want := range []Span{{10, 20}, {30, 40}, {50, 60}} {
		if segments[i].Start != want.Start || segments[i].End != want.End {
			t.Errorf("segment %d: expected [%d,%d), got [%d,%d)", i, want.Start, want.End, segments[i].Start, segments[i].End)
		}
		if len(segments[i].HighlightIDs) != 1 {
			t.Errorf("segment %d: expected a single highlight id, got %v", i, segments[i].HighlightIDs)
		}
	}
}

func TestMergeOverlappingSpansFromTwoHighlights(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 10, End: 50}),
		hl("h2", Span{Start: 30, End: 70}),
	}

	segments := Merge(highlights, "")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Start != 10 || seg.End != 70 {
		t.Errorf("expected [10,70), got [%d,%d)", seg.Start, seg.End)
	}
	if !reflect.DeepEqual(seg.HighlightIDs, []string{"h1", "h2"}) {
		t.Errorf("expected ids in sweep order [h1 h2], got %v", seg.HighlightIDs)
	}
}

// A later span can begin before the segment built so far. Sorting by start
// before the sweep must still produce a single united segment.
func TestMergeBackwardExtension(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 50, End: 100}),
		hl("h2", Span{Start: 60, End: 90}),
		hl("h3", Span{Start: 40, End: 55}),
	}

	segments := Merge(highlights, "")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(segments), segments)
	}
	seg := segments[0]
	if seg.Start != 40 || seg.End != 100 {
		t.Errorf("expected [40,100), got [%d,%d)", seg.Start, seg.End)
	}
	if len(seg.HighlightIDs) != 3 {
		t.Errorf("expected all three highlight ids, got %v", seg.HighlightIDs)
	}
}

func TestMergeDeepBackwardReExtension(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 50, End: 100}),
		hl("h2", Span{Start: 60, End: 90}),
		hl("h3", Span{Start: 40, End: 55}),
		hl("h4", Span{Start: 30, End: 45}),
	}

	segments := Merge(highlights, "")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(segments), segments)
	}
	if segments[0].Start != 30 || segments[0].End != 100 {
		t.Errorf("expected [30,100), got [%d,%d)", segments[0].Start, segments[0].End)
	}
	if len(segments[0].HighlightIDs) != 4 {
		t.Errorf("expected four highlight ids, got %v", segments[0].HighlightIDs)
	}
}

func TestMergeTouchingSpansStaySeparate(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 10, End: 20}),
		hl("h2", Span{Start: 20, End: 30}),
	}

	segments := Merge(highlights, "")
	if len(segments) != 2 {
		t.Fatalf("touching spans must not merge, got %d segments", len(segments))
	}
}

func TestMergeSortsUnsortedSpansWithinHighlight(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 40, End: 60}, Span{Start: 5, End: 15}),
	}

	segments := Merge(highlights, "")
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Start != 5 || segments[1].Start != 40 {
		t.Errorf("segments must come back sorted by start: %+v", segments)
	}
	if segments[0].FirstSpanOwner["h1"] {
		t.Errorf("span at [5,15) is h1's second span, not its first")
	}
	if !segments[1].FirstSpanOwner["h1"] {
		t.Errorf("span at [40,60) is h1's first span")
	}
}

func TestMergeIsolation(t *testing.T) {
	highlights := []Highlight{
		hl("h1", Span{Start: 10, End: 50}),
		hl("h2", Span{Start: 30, End: 70}),
	}

	segments := Merge(highlights, "h2")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Start != 30 || seg.End != 70 {
		t.Errorf("isolated merge must only use h2's spans, got [%d,%d)", seg.Start, seg.End)
	}
	if !reflect.DeepEqual(seg.HighlightIDs, []string{"h2"}) {
		t.Errorf("expected only h2, got %v", seg.HighlightIDs)
	}

	if got := Merge(highlights, "missing"); len(got) != 0 {
		t.Errorf("unknown isolation id must produce no segments, got %+v", got)
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	if got := Merge(nil, ""); len(got) != 0 {
		t.Errorf("nil highlights: expected empty, got %+v", got)
	}
	if got := Merge([]Highlight{{ID: "h1"}}, ""); len(got) != 0 {
		t.Errorf("highlight without spans must contribute nothing, got %+v", got)
	}
}

func TestSliceClampsOutOfRangeSpans(t *testing.T) {
	content := "hello world"
	cases := []struct {
		name string
		span Span
		want string
	}{
		{"inside", Span{0, 5}, "hello"},
		{"negative start", Span{-3, 5}, "hello"},
		{"end past content", Span{6, 100}, "world"},
		{"fully outside", Span{50, 60}, ""},
		{"inverted", Span{5, 2}, ""},
	}
	for _, tc := range cases {
		if got := Slice(content, tc.span); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
