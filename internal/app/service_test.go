package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"geocompliance/api/internal/review"
	"geocompliance/api/internal/store"
)

// fakeStore implements dataStore with per-method hooks; unset methods behave
// like an empty database.
type fakeStore struct {
	mu sync.Mutex

	pingFn func(ctx context.Context) error

	projects   map[string]store.Project
	documents  map[string]store.Document
	highlights map[string]store.Highlight
	comments   []store.Comment
	entries    []store.ArticleEntry
	convs      map[string]store.Conversation
	messages   []store.Message

	getDocumentFn  func(ctx context.Context, projectID, documentID string) (store.Document, error)
	getHighlightFn func(ctx context.Context, documentID, highlightID string) (store.Highlight, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:   map[string]store.Project{},
		documents:  map[string]store.Document{},
		highlights: map[string]store.Highlight{},
		convs:      map[string]store.Conversation{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) SummaryCounts(context.Context) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects), len(f.documents), 0, nil
}

func (f *fakeStore) ListProjects(context.Context) ([]store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetProject(_ context.Context, projectID string) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) InsertProject(_ context.Context, item store.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[item.ID] = item
	return nil
}

func (f *fakeStore) ListDocumentsByProject(_ context.Context, projectID string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Document
	for _, d := range f.documents {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDocument(ctx context.Context, projectID, documentID string) (store.Document, error) {
	if f.getDocumentFn != nil {
		return f.getDocumentFn(ctx, projectID, documentID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.documents[documentID]
	if !ok || d.ProjectID != projectID {
		return store.Document{}, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeStore) InsertDocument(_ context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) ListHighlights(_ context.Context, documentID string) ([]store.Highlight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Highlight
	for _, h := range f.highlights {
		if h.DocumentID == documentID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) GetHighlight(ctx context.Context, documentID, highlightID string) (store.Highlight, error) {
	if f.getHighlightFn != nil {
		return f.getHighlightFn(ctx, documentID, highlightID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.highlights[highlightID]
	if !ok || h.DocumentID != documentID {
		return store.Highlight{}, sql.ErrNoRows
	}
	return h, nil
}

func (f *fakeStore) InsertHighlight(_ context.Context, item store.Highlight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highlights[item.ID] = item
	return nil
}

func (f *fakeStore) ListComments(_ context.Context, highlightID string) ([]store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Comment
	for _, c := range f.comments {
		if c.HighlightID == highlightID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertComment(_ context.Context, item store.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, item)
	return nil
}

func (f *fakeStore) InsertArticleEntry(_ context.Context, item store.ArticleEntry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.EntID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, item)
	return item.EntID, nil
}

func (f *fakeStore) GetOrCreateConversation(_ context.Context, conversationID string) (store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[conversationID]; ok {
		return c, nil
	}
	c := store.Conversation{ID: conversationID}
	f.convs[conversationID] = c
	return c, nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID string) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, item store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, item)
	return nil
}

// seedFake bootstraps a service over a fake store.
func seedFake(t *testing.T, opts Options) (*Service, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	svc := NewService(fs, opts)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return svc, fs
}

func TestBootstrapSeedsOnce(t *testing.T) {
	svc, fs := seedFake(t, Options{})

	if len(fs.projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(fs.projects))
	}
	if len(fs.highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(fs.highlights))
	}
	if len(fs.comments) == 0 {
		t.Fatal("expected seeded thread comments")
	}

	before := len(fs.comments)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if len(fs.comments) != before {
		t.Error("second bootstrap must not reseed")
	}
}

func TestGetReviewDocumentAssemblesThreads(t *testing.T) {
	svc, _ := seedFake(t, Options{})

	view, err := svc.GetReviewDocument(context.Background(), "project-1", "doc-1")
	if err != nil {
		t.Fatalf("GetReviewDocument: %v", err)
	}
	if view.Offline {
		t.Error("expected live document")
	}
	if len(view.Document.Highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(view.Document.Highlights))
	}
	for _, h := range view.Document.Highlights {
		if len(h.Spans) == 0 {
			t.Errorf("highlight %s lost its spans", h.ID)
		}
		if len(h.Comments) == 0 {
			t.Errorf("highlight %s lost its comments", h.ID)
		}
	}
}

func TestGetReviewDocumentUnknownIDIs404(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	_, err := svc.GetReviewDocument(context.Background(), "project-1", "doc-nope")
	if err == nil {
		t.Fatal("expected error for unknown document")
	}
}

func TestGetReviewDocumentFallsBackWhenStoreDown(t *testing.T) {
	svc, fs := seedFake(t, Options{})
	fs.getDocumentFn = func(context.Context, string, string) (store.Document, error) {
		return store.Document{}, sql.ErrConnDone
	}

	view, err := svc.GetReviewDocument(context.Background(), "project-1", "doc-1")
	if err != nil {
		t.Fatalf("GetReviewDocument: %v", err)
	}
	if !view.Offline {
		t.Error("expected offline fallback")
	}
	if len(view.Document.Highlights) != 2 {
		t.Errorf("fallback document should carry seed highlights, got %d", len(view.Document.Highlights))
	}
}

func TestOfflineCommentSurvivesRefetch(t *testing.T) {
	svc, fs := seedFake(t, Options{})
	fs.getDocumentFn = func(context.Context, string, string) (store.Document, error) {
		return store.Document{}, sql.ErrConnDone
	}
	fs.getHighlightFn = func(context.Context, string, string) (store.Highlight, error) {
		return store.Highlight{}, sql.ErrConnDone
	}

	comment, err := svc.AddComment(context.Background(), "project-1", "doc-1", "highlight-1", "added while degraded", "Dana")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	view, err := svc.GetReviewDocument(context.Background(), "project-1", "doc-1")
	if err != nil {
		t.Fatalf("GetReviewDocument: %v", err)
	}
	if !view.Offline {
		t.Fatal("expected offline fallback")
	}
	found := false
	for _, h := range view.Document.Highlights {
		for _, c := range h.Comments {
			if c.ID == comment.ID {
				found = true
			}
		}
	}
	if !found {
		t.Error("comment added while the store was down must appear in the refetched document")
	}
}

func TestSegmentsHonorIsolation(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	ctx := context.Background()

	all, err := svc.Segments(ctx, "project-1", "doc-1", "viewer-1", "")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(all.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(all.Segments))
	}

	if _, err := svc.ApplySelection(ctx, "viewer-1", "doc-1", SelectionAction{Type: "isolate", HighlightID: "highlight-2"}); err != nil {
		t.Fatalf("ApplySelection: %v", err)
	}

	isolated, err := svc.Segments(ctx, "project-1", "doc-1", "viewer-1", "")
	if err != nil {
		t.Fatalf("Segments after isolate: %v", err)
	}
	if len(isolated.Segments) != 1 {
		t.Fatalf("expected 1 isolated segment, got %d", len(isolated.Segments))
	}
	if isolated.Selection.Isolated != "highlight-2" {
		t.Errorf("selection = %+v", isolated.Selection)
	}

	// Another viewer is unaffected.
	other, err := svc.Segments(ctx, "project-1", "doc-1", "viewer-2", "")
	if err != nil {
		t.Fatalf("Segments for other viewer: %v", err)
	}
	if len(other.Segments) != 2 {
		t.Errorf("other viewer should see all segments, got %d", len(other.Segments))
	}
}

func TestSegmentsIsolateOverrideIsEphemeral(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	ctx := context.Background()

	view, err := svc.Segments(ctx, "project-1", "doc-1", "viewer-1", "highlight-1")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(view.Segments) != 1 {
		t.Fatalf("expected 1 segment with override, got %d", len(view.Segments))
	}

	// The override must not be written back to the stored selection.
	view, err = svc.Segments(ctx, "project-1", "doc-1", "viewer-1", "")
	if err != nil {
		t.Fatalf("Segments without override: %v", err)
	}
	if len(view.Segments) != 2 {
		t.Errorf("stored selection changed: %d segments", len(view.Segments))
	}
}

func TestApplySelectionClickCycles(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	ctx := context.Background()
	ids := []string{"highlight-1", "highlight-2"}

	sel, err := svc.ApplySelection(ctx, "viewer-1", "doc-1", SelectionAction{Type: "click", HighlightIDs: ids})
	if err != nil {
		t.Fatalf("click 1: %v", err)
	}
	if sel.Active != "highlight-1" {
		t.Errorf("after click 1: %+v", sel)
	}

	sel, err = svc.ApplySelection(ctx, "viewer-1", "doc-1", SelectionAction{Type: "click", HighlightIDs: ids})
	if err != nil {
		t.Fatalf("click 2: %v", err)
	}
	if sel.Active != "highlight-2" {
		t.Errorf("after click 2: %+v", sel)
	}

	sel, err = svc.ApplySelection(ctx, "viewer-1", "doc-1", SelectionAction{Type: "reset"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if sel != (review.Selection{}) {
		t.Errorf("after reset: %+v", sel)
	}
}

func TestApplySelectionRejectsUnknownAction(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	_, err := svc.ApplySelection(context.Background(), "viewer-1", "doc-1", SelectionAction{Type: "hover"})
	var domainErr *DomainError
	if !asDomainError(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 domain error, got %v", err)
	}
}

func TestAddCommentPersists(t *testing.T) {
	svc, fs := seedFake(t, Options{})

	before := len(fs.comments)
	comment, err := svc.AddComment(context.Background(), "project-1", "doc-1", "highlight-1", "Looks risky.", "Dana")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.Kind != review.KindUser || comment.Author != "Dana" {
		t.Errorf("comment = %+v", comment)
	}
	if len(fs.comments) != before+1 {
		t.Errorf("comment not persisted")
	}

	// Identical content is a second comment, never deduplicated.
	if _, err := svc.AddComment(context.Background(), "project-1", "doc-1", "highlight-1", "Looks risky.", "Dana"); err != nil {
		t.Fatalf("AddComment repeat: %v", err)
	}
	if len(fs.comments) != before+2 {
		t.Error("duplicate content should still append")
	}
}

func TestAddCommentUnknownHighlight(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	_, err := svc.AddComment(context.Background(), "project-1", "doc-1", "highlight-99", "hi", "")
	var domainErr *DomainError
	if !asDomainError(err, &domainErr) || domainErr.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

type failingReplier struct{}

func (failingReplier) Reply(context.Context, review.ReplyContext) (review.Comment, error) {
	return review.Comment{}, sql.ErrConnDone
}

func TestRequestReplyFallsBackAndPersists(t *testing.T) {
	svc, fs := seedFake(t, Options{Replier: failingReplier{}})

	comment, err := svc.RequestReply(context.Background(), "project-1", "doc-1", "highlight-1", "What about consent flows?")
	if err != nil {
		t.Fatalf("RequestReply: %v", err)
	}
	if comment.Kind != review.KindSystem || comment.Author != review.FallbackAuthor {
		t.Errorf("comment = %+v", comment)
	}
	if !strings.Contains(comment.Content, `"What about consent flows?"`) {
		t.Errorf("fallback should quote the user text: %q", comment.Content)
	}

	persisted, _ := fs.ListComments(context.Background(), "highlight-1")
	found := false
	for _, c := range persisted {
		if c.ID == comment.ID {
			found = true
		}
	}
	if !found {
		t.Error("reply not persisted")
	}
}

func TestAddLawStoresEntries(t *testing.T) {
	svc, fs := seedFake(t, Options{})

	result, err := svc.AddLaw(context.Background(), "Sample Act\n\nDefinitions\n1.1 \"User\" — a person.\n\nArticle 1 — Scope\nApplies broadly.\n")
	if err != nil {
		t.Fatalf("AddLaw: %v", err)
	}
	if result.Title != "Sample Act" || result.Definitions != 1 || result.Articles != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(fs.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(fs.entries))
	}
	if fs.entries[0].Word == nil || *fs.entries[0].Word != "User" {
		t.Errorf("definition entry = %+v", fs.entries[0])
	}
}

func TestAddLawRejectsUnparseableText(t *testing.T) {
	svc, _ := seedFake(t, Options{})
	_, err := svc.AddLaw(context.Background(), "")
	var domainErr *DomainError
	if !asDomainError(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestPostChatMessageStoresBothTurns(t *testing.T) {
	svc, fs := seedFake(t, Options{})

	exchange, err := svc.PostChatMessage(context.Background(), "conv-1", "Is this compliant?")
	if err != nil {
		t.Fatalf("PostChatMessage: %v", err)
	}
	if exchange.UserMessage.Kind != "user" || exchange.Reply.Kind != "system" {
		t.Errorf("exchange = %+v", exchange)
	}
	if len(fs.messages) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(fs.messages))
	}

	history, err := svc.ChatHistory(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history.Messages) != 2 {
		t.Errorf("history = %+v", history)
	}
}

func asDomainError(err error, target **DomainError) bool {
	if err == nil {
		return false
	}
	de, ok := err.(*DomainError)
	if !ok {
		return false
	}
	*target = de
	return true
}

// sanity: seeded spans survive the JSON round trip through the fake store.
func TestSeededSpansRoundTrip(t *testing.T) {
	_, fs := seedFake(t, Options{})
	for id, h := range fs.highlights {
		var spans []review.Span
		if err := json.Unmarshal([]byte(h.SpansJSON), &spans); err != nil {
			t.Fatalf("highlight %s spans: %v", id, err)
		}
		if len(spans) == 0 {
			t.Errorf("highlight %s has no spans", id)
		}
	}
}
