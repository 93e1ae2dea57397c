package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FallbackAuthor signs system comments produced without a live model.
const FallbackAuthor = "GeoCompliance AI"

// ErrHighlightNotFound is returned when a thread operation names an unknown
// highlight id.
var ErrHighlightNotFound = errors.New("highlight not found")

// ReplyContext carries everything the reply collaborator may need to ground
// its answer.
type ReplyContext struct {
	HighlightID string
	DocumentID  string
	ProjectID   string
	UserText    string
}

// Replier generates a system reply for a highlight thread. Implementations
// live outside this package; failures are absorbed by the thread store.
type Replier interface {
	Reply(ctx context.Context, rc ReplyContext) (Comment, error)
}

// ThreadStore owns the comment threads of one document. Appends are atomic:
// each mutation holds the lock for its full duration, so a comment added
// while a reply request is in flight can never interleave mid-update.
type ThreadStore struct {
	mu      sync.Mutex
	doc     *Document
	replier Replier
	counter atomic.Int64
}

// NewThreadStore wraps doc. replier may be nil; every reply then uses the
// deterministic fallback.
func NewThreadStore(doc *Document, replier Replier) *ThreadStore {
	return &ThreadStore{doc: doc, replier: replier}
}

// AddComment appends a user comment synchronously. This is the optimistic
// half of the reply flow: it succeeds locally whether or not the remote echo
// ever arrives, and two identical calls append two distinct comments.
func (t *ThreadStore) AddComment(highlightID, content, author string) (Comment, error) {
	comment := Comment{
		ID:        t.nextID("comment"),
		Author:    author,
		Timestamp: "Just now",
		Content:   content,
		Kind:      KindUser,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.doc.FindHighlight(highlightID)
	if h == nil {
		return Comment{}, ErrHighlightNotFound
	}
	h.Comments = append(h.Comments, comment)
	return comment, nil
}

// RequestReply asks the replier for a system response to userText and appends
// it to the highlight's thread. A replier failure degrades to the
// deterministic fallback comment; the error never reaches the caller. The
// user's own comment is expected to have been appended (synchronously) before
// this is invoked, so the reply always lands after it.
func (t *ThreadStore) RequestReply(ctx context.Context, rc ReplyContext) (Comment, error) {
	reply, err := t.generateReply(ctx, rc)
	if err != nil {
		reply = FallbackReply(rc.UserText)
	}
	reply.Kind = KindSystem
	if reply.ID == "" {
		reply.ID = t.nextID("response")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.doc.FindHighlight(rc.HighlightID)
	if h == nil {
		return Comment{}, ErrHighlightNotFound
	}
	h.Comments = append(h.Comments, reply)
	return reply, nil
}

// nextID combines epoch millis with a session counter so ids stay unique
// even when two comments land within the same millisecond.
// Snapshot returns a copy of the document with its threads as they stand.
// Comment slices are copied so callers can read without holding the lock.
func (t *ThreadStore) Snapshot() Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc := *t.doc
	doc.Highlights = make([]Highlight, len(t.doc.Highlights))
	copy(doc.Highlights, t.doc.Highlights)
	for i := range doc.Highlights {
		doc.Highlights[i].Comments = append([]Comment(nil), doc.Highlights[i].Comments...)
	}
	return doc
}

func (t *ThreadStore) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixMilli(), t.counter.Add(1))
}

func (t *ThreadStore) generateReply(ctx context.Context, rc ReplyContext) (Comment, error) {
	if t.replier == nil {
		return Comment{}, errors.New("no replier configured")
	}
	return t.replier.Reply(ctx, rc)
}

// FallbackReply is the canned system response used whenever reply generation
// is unavailable. It always references the user's text so the thread never
// ends on an unanswered question.
func FallbackReply(userText string) Comment {
	return Comment{
		Author:    FallbackAuthor,
		Timestamp: "Just now",
		Content: fmt.Sprintf(
			"Thank you for your input. Based on your comment %q, "+
				"I recommend reviewing the latest GDPR guidelines section 4.2 for data processing compliance. "+
				"This should address your concerns about user consent flows.", userText),
		Kind: KindSystem,
	}
}
