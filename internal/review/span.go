// Package review implements the document-viewer core: highlight spans over
// document text, merging of overlapping spans into renderable segments,
// viewer selection state, and per-highlight comment threads.
package review

// CommentKind distinguishes AI-generated commentary from reviewer comments.
type CommentKind string

const (
	KindSystem CommentKind = "system"
	KindUser   CommentKind = "user"
)

// Span is a half-open [Start, End) character interval into document content.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Comment is one entry in a highlight's thread. Threads are append-only;
// comments are never edited or deleted.
type Comment struct {
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Timestamp string      `json:"timestamp"`
	Content   string      `json:"content"`
	Kind      CommentKind `json:"type"`
}

// Highlight is a flagged region of a document: one or more spans plus the
// reviewer-facing metadata attached to them. Spans are not required to
// arrive sorted; consumers sort before use.
type Highlight struct {
	ID                    string    `json:"id"`
	Spans                 []Span    `json:"highlighting"`
	Reason                string    `json:"reason,omitempty"`
	ClarificationQuestion string    `json:"clarification_qn,omitempty"`
	Comments              []Comment `json:"comments"`
}

// Document is the viewer payload: full text plus its highlights. Content is
// immutable once fetched; highlights mutate as comments arrive.
type Document struct {
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Highlights []Highlight `json:"highlights"`
}

// FindHighlight returns a pointer into the document's highlight slice, or nil.
func (d *Document) FindHighlight(id string) *Highlight {
	for i := range d.Highlights {
		if d.Highlights[i].ID == id {
			return &d.Highlights[i]
		}
	}
	return nil
}

// Slice extracts the text covered by a span, clamping silently so that
// malformed ranges never panic.
func Slice(content string, s Span) string {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > len(content) {
		end = len(content)
	}
	if start >= end {
		return ""
	}
	return content[start:end]
}
