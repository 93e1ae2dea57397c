package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"geocompliance/api/internal/audit"
	"geocompliance/api/internal/export"
	"geocompliance/api/internal/lawlib"
	"geocompliance/api/internal/llm"
	"geocompliance/api/internal/objstore"
	"geocompliance/api/internal/review"
	"geocompliance/api/internal/search"
	"geocompliance/api/internal/session"
	"geocompliance/api/internal/store"
	"geocompliance/api/internal/util"
)

type dataStore interface {
	Ping(ctx context.Context) error
	SummaryCounts(ctx context.Context) (projects, documents, audits int, err error)

	ListProjects(ctx context.Context) ([]store.Project, error)
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	InsertProject(ctx context.Context, item store.Project) error

	ListDocumentsByProject(ctx context.Context, projectID string) ([]store.Document, error)
	GetDocument(ctx context.Context, projectID, documentID string) (store.Document, error)
	InsertDocument(ctx context.Context, item store.Document) error

	ListHighlights(ctx context.Context, documentID string) ([]store.Highlight, error)
	GetHighlight(ctx context.Context, documentID, highlightID string) (store.Highlight, error)
	InsertHighlight(ctx context.Context, item store.Highlight) error
	ListComments(ctx context.Context, highlightID string) ([]store.Comment, error)
	InsertComment(ctx context.Context, item store.Comment) error

	InsertArticleEntry(ctx context.Context, item store.ArticleEntry) (int64, error)

	GetOrCreateConversation(ctx context.Context, conversationID string) (store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	InsertMessage(ctx context.Context, item store.Message) error
}

// Service owns the application logic behind the HTTP layer.
type Service struct {
	store      dataStore
	selections session.Store
	loader     *review.Loader
	offline    *review.ThreadStore
	replier    review.Replier
	provider   llm.Provider
	searcher   *search.Service
	auditor    *audit.Runner
	objects    *objstore.Store
	exporter   *export.Service
}

// Options carries the optional collaborators; any may be nil and the service
// degrades to its deterministic fallbacks.
type Options struct {
	Selections session.Store
	Replier    review.Replier
	Provider   llm.Provider
	Searcher   *search.Service
	Auditor    *audit.Runner
	Objects    *objstore.Store
	Exporter   *export.Service
}

func NewService(ds dataStore, opts Options) *Service {
	s := &Service{
		store:      ds,
		selections: opts.Selections,
		replier:    opts.Replier,
		provider:   opts.Provider,
		searcher:   opts.Searcher,
		auditor:    opts.Auditor,
		objects:    opts.Objects,
		exporter:   opts.Exporter,
	}
	if s.selections == nil {
		s.selections = session.NewMemoryStore(0)
	}
	// When Postgres is unreachable the viewer still gets the built-in
	// sample document, with comment threads held in memory. The loader
	// serves a snapshot of that same document, so comments added while
	// degraded stay visible on the next fetch.
	seed := review.SeedDocument()
	s.offline = review.NewThreadStore(&seed, opts.Replier)
	s.loader = review.NewLoaderWithFallback(&storeSource{store: ds}, s.offline.Snapshot)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// storeSource assembles a review.Document from Postgres rows.
type storeSource struct {
	store dataStore
}

func (src *storeSource) FetchDocument(ctx context.Context, projectID, documentID string) (review.Document, error) {
	doc, err := src.store.GetDocument(ctx, projectID, documentID)
	if err != nil {
		return review.Document{}, err
	}

	rows, err := src.store.ListHighlights(ctx, documentID)
	if err != nil {
		return review.Document{}, err
	}

	highlights := make([]review.Highlight, 0, len(rows))
	for _, row := range rows {
		var spans []review.Span
		if err := json.Unmarshal([]byte(row.SpansJSON), &spans); err != nil {
			return review.Document{}, fmt.Errorf("decode spans for highlight %s: %w", row.ID, err)
		}

		comments, err := src.store.ListComments(ctx, row.ID)
		if err != nil {
			return review.Document{}, err
		}
		converted := make([]review.Comment, 0, len(comments))
		for _, c := range comments {
			converted = append(converted, review.Comment{
				ID:        c.ID,
				Author:    c.Author,
				Timestamp: displayTimestamp(c.CreatedAt),
				Content:   c.Content,
				Kind:      review.CommentKind(c.Kind),
			})
		}

		highlights = append(highlights, review.Highlight{
			ID:                    row.ID,
			Spans:                 spans,
			Reason:                row.Reason,
			ClarificationQuestion: row.ClarificationQn,
			Comments:              converted,
		})
	}

	return review.Document{
		Title:      doc.Title,
		Content:    doc.Content,
		Highlights: highlights,
	}, nil
}

// displayTimestamp renders comment times the way the review panel shows them.
func displayTimestamp(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "Just now"
	case age < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// ---- projects & documents ----

func (s *Service) ListProjects(ctx context.Context) ([]ProjectDTO, error) {
	rows, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, toProjectDTO(p))
	}
	return out, nil
}

// ProjectDetail bundles a project with its documents. Listing omits full
// document text.
type ProjectDetail struct {
	Project   ProjectDTO    `json:"project"`
	Documents []DocumentDTO `json:"documents"`
}

func (s *Service) GetProject(ctx context.Context, projectID string) (ProjectDetail, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	rows, err := s.store.ListDocumentsByProject(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	documents := make([]DocumentDTO, 0, len(rows))
	for _, d := range rows {
		documents = append(documents, toDocumentDTO(d))
	}
	return ProjectDetail{Project: toProjectDTO(project), Documents: documents}, nil
}

// DocumentView is the review payload for one document.
type DocumentView struct {
	Document review.Document `json:"document"`
	Offline  bool            `json:"offline"`
}

func (s *Service) GetReviewDocument(ctx context.Context, projectID, documentID string) (DocumentView, error) {
	// An unknown id within a reachable store is a 404, not a fallback.
	if _, err := s.store.GetDocument(ctx, projectID, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentView{}, err
		}
	}
	doc, offline := s.loader.Load(ctx, projectID, documentID)
	return DocumentView{Document: doc, Offline: offline}, nil
}

// ---- segments & selection ----

// SegmentsView is the render-ready reconciliation of a document's highlights.
type SegmentsView struct {
	Segments  []review.Segment `json:"segments"`
	Selection review.Selection `json:"selection"`
	Offline   bool             `json:"offline"`
}

// Segments recomputes the render partition. isolateOverride, when non-empty,
// wins over the viewer's stored isolation for this one response without
// touching the stored state.
func (s *Service) Segments(ctx context.Context, projectID, documentID, viewerID, isolateOverride string) (SegmentsView, error) {
	view, err := s.GetReviewDocument(ctx, projectID, documentID)
	if err != nil {
		return SegmentsView{}, err
	}

	sel, err := s.selections.Get(ctx, viewerID, documentID)
	if err != nil {
		log.Printf("app: selection lookup failed, using empty selection: %v", err)
		sel = review.Selection{}
	}
	if isolateOverride != "" {
		sel.Isolated = isolateOverride
	}

	return SegmentsView{
		Segments:  review.Merge(view.Document.Highlights, sel.Isolated),
		Selection: sel,
		Offline:   view.Offline,
	}, nil
}

// SelectionAction is one viewer interaction with the highlight layer.
type SelectionAction struct {
	Type         string   `json:"type"` // click | isolate | clear_isolation | reset
	HighlightID  string   `json:"highlightId,omitempty"`
	HighlightIDs []string `json:"highlightIds,omitempty"`
}

func (s *Service) ApplySelection(ctx context.Context, viewerID, documentID string, action SelectionAction) (review.Selection, error) {
	sel, err := s.selections.Get(ctx, viewerID, documentID)
	if err != nil {
		log.Printf("app: selection lookup failed, starting from empty: %v", err)
		sel = review.Selection{}
	}

	switch action.Type {
	case "click":
		sel.ClickSegment(action.HighlightIDs)
	case "isolate":
		if action.HighlightID == "" {
			return review.Selection{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "highlightId is required for isolate", nil)
		}
		sel.SelectIsolate(action.HighlightID)
	case "clear_isolation":
		sel.ClearIsolation()
	case "reset":
		sel.Reset()
	default:
		return review.Selection{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown selection action", map[string]any{"type": action.Type})
	}

	if err := s.selections.Save(ctx, viewerID, documentID, sel); err != nil {
		return review.Selection{}, fmt.Errorf("save selection: %w", err)
	}
	return sel, nil
}

// ---- comment threads ----

func (s *Service) AddComment(ctx context.Context, projectID, documentID, highlightID, content, author string) (review.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return review.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if author == "" {
		author = "You"
	}

	_, err := s.store.GetHighlight(ctx, documentID, highlightID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return review.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "Highlight not found", nil)
		}
		// Store unreachable: append to the in-memory fallback thread.
		log.Printf("app: comment store unavailable, using offline thread: %v", err)
		comment, offErr := s.offline.AddComment(highlightID, content, author)
		if errors.Is(offErr, review.ErrHighlightNotFound) {
			return review.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "Highlight not found", nil)
		}
		return comment, offErr
	}

	comment := review.Comment{
		ID:        util.EpochID("comment"),
		Author:    author,
		Timestamp: "Just now",
		Content:   content,
		Kind:      review.KindUser,
	}
	if err := s.store.InsertComment(ctx, store.Comment{
		ID:          comment.ID,
		HighlightID: highlightID,
		Author:      comment.Author,
		Content:     comment.Content,
		Kind:        string(comment.Kind),
	}); err != nil {
		return review.Comment{}, err
	}
	return comment, nil
}

// RequestReply generates the assistant's follow-up for a thread. Provider
// failures degrade to the canned response rather than surfacing an error.
func (s *Service) RequestReply(ctx context.Context, projectID, documentID, highlightID, userText string) (review.Comment, error) {
	if strings.TrimSpace(userText) == "" {
		return review.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userText is required", nil)
	}

	_, err := s.store.GetHighlight(ctx, documentID, highlightID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return review.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "Highlight not found", nil)
		}
		log.Printf("app: reply store unavailable, using offline thread: %v", err)
		comment, offErr := s.offline.RequestReply(ctx, review.ReplyContext{
			HighlightID: highlightID,
			DocumentID:  documentID,
			ProjectID:   projectID,
			UserText:    userText,
		})
		if errors.Is(offErr, review.ErrHighlightNotFound) {
			return review.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "Highlight not found", nil)
		}
		return comment, offErr
	}

	comment := s.generateReply(ctx, review.ReplyContext{
		HighlightID: highlightID,
		DocumentID:  documentID,
		ProjectID:   projectID,
		UserText:    userText,
	})

	if err := s.store.InsertComment(ctx, store.Comment{
		ID:          comment.ID,
		HighlightID: highlightID,
		Author:      comment.Author,
		Content:     comment.Content,
		Kind:        string(comment.Kind),
	}); err != nil {
		return review.Comment{}, err
	}
	return comment, nil
}

func (s *Service) generateReply(ctx context.Context, rc review.ReplyContext) review.Comment {
	var comment review.Comment
	if s.replier == nil {
		comment = review.FallbackReply(rc.UserText)
	} else {
		var err error
		comment, err = s.replier.Reply(ctx, rc)
		if err != nil {
			log.Printf("app: reply generation failed, using fallback: %v", err)
			comment = review.FallbackReply(rc.UserText)
		}
	}
	comment.Kind = review.KindSystem
	if comment.ID == "" {
		comment.ID = util.EpochID("response")
	}
	return comment
}

// ---- law library ----

// LawIngestResult summarizes an ingested bill.
type LawIngestResult struct {
	Title       string `json:"title"`
	Definitions int    `json:"definitions"`
	Articles    int    `json:"articles"`
	ObjectKey   string `json:"objectKey,omitempty"`
}

// AddLaw parses bill text, stores every definition and article in the law
// library, pushes them to the search index, and archives the raw text when an
// object store is configured.
func (s *Service) AddLaw(ctx context.Context, billText string) (LawIngestResult, error) {
	bill, err := lawlib.Parse(billText)
	if err != nil {
		return LawIngestResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	for _, def := range bill.Definitions {
		word := def.Word
		entID, err := s.store.InsertArticleEntry(ctx, store.ArticleEntry{
			ArtNum:    def.ArtNum,
			Type:      lawlib.EntryDefinition,
			BelongsTo: bill.Title,
			Contents:  def.Content,
			Word:      &word,
		})
		if err != nil {
			return LawIngestResult{}, err
		}
		s.indexArticle(entID, def.ArtNum, lawlib.EntryDefinition, bill.Title, def.Content, def.Word)
	}

	for _, article := range bill.Articles {
		entID, err := s.store.InsertArticleEntry(ctx, store.ArticleEntry{
			ArtNum:    article.ArtNum,
			Type:      lawlib.EntryLaw,
			BelongsTo: bill.Title,
			Contents:  article.Contents,
		})
		if err != nil {
			return LawIngestResult{}, err
		}
		s.indexArticle(entID, article.ArtNum, lawlib.EntryLaw, bill.Title, article.Contents, "")
	}

	result := LawIngestResult{
		Title:       bill.Title,
		Definitions: len(bill.Definitions),
		Articles:    len(bill.Articles),
	}

	if s.objects != nil {
		key, err := s.objects.PutBill(ctx, bill.Title, []byte(billText))
		if err != nil {
			log.Printf("app: bill archive failed for %q: %v", bill.Title, err)
		} else {
			result.ObjectKey = key
		}
	}
	return result, nil
}

func (s *Service) indexArticle(entID int64, artNum, entryType, belongsTo, contents, word string) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexArticle(search.ArticleRecord{
		ID:        fmt.Sprintf("%d", entID),
		ArtNum:    artNum,
		EntryType: entryType,
		BelongsTo: belongsTo,
		Contents:  contents,
		Word:      word,
	})
}

// ---- search ----

func (s *Service) Search(q search.Query) search.Response {
	if s.searcher == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.searcher.Search(q)
}

// ---- chat ----

// ChatHistory is one conversation with its messages.
type ChatHistory struct {
	ConversationID string       `json:"conversationId"`
	Messages       []MessageDTO `json:"messages"`
}

// OpenConversation returns the conversation with the given id, creating it on
// first use. A blank id mints a fresh one.
func (s *Service) OpenConversation(ctx context.Context, conversationID string) (ConversationDTO, error) {
	if conversationID == "" {
		conversationID = util.NewID("conv")
	}
	conv, err := s.store.GetOrCreateConversation(ctx, conversationID)
	if err != nil {
		return ConversationDTO{}, err
	}
	return toConversationDTO(conv), nil
}

func (s *Service) ChatHistory(ctx context.Context, conversationID string) (ChatHistory, error) {
	conv, err := s.store.GetOrCreateConversation(ctx, conversationID)
	if err != nil {
		return ChatHistory{}, err
	}
	messages, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ChatHistory{}, err
	}
	return ChatHistory{ConversationID: conv.ID, Messages: toMessageDTOs(messages)}, nil
}

// ChatExchange is the outcome of posting one message: the stored user turn
// and the assistant's response.
type ChatExchange struct {
	ConversationID string     `json:"conversationId"`
	UserMessage    MessageDTO `json:"userMessage"`
	Reply          MessageDTO `json:"reply"`
}

func (s *Service) PostChatMessage(ctx context.Context, conversationID, content string) (ChatExchange, error) {
	if strings.TrimSpace(content) == "" {
		return ChatExchange{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if conversationID == "" {
		conversationID = util.NewID("conv")
	}

	conv, err := s.store.GetOrCreateConversation(ctx, conversationID)
	if err != nil {
		return ChatExchange{}, err
	}

	userMsg := store.Message{
		ID:             util.EpochID("msg"),
		ConversationID: conv.ID,
		Kind:           "user",
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.store.InsertMessage(ctx, userMsg); err != nil {
		return ChatExchange{}, err
	}

	replyText := s.chatReply(ctx, content)
	reply := store.Message{
		ID:             util.EpochID("response"),
		ConversationID: conv.ID,
		Kind:           "system",
		Content:        replyText,
		CreatedAt:      time.Now(),
	}
	if err := s.store.InsertMessage(ctx, reply); err != nil {
		return ChatExchange{}, err
	}

	return ChatExchange{ConversationID: conv.ID, UserMessage: toMessageDTO(userMsg), Reply: toMessageDTO(reply)}, nil
}

func (s *Service) chatReply(ctx context.Context, content string) string {
	if s.provider == nil {
		return review.FallbackReply(content).Content
	}
	resp, err := s.provider.Respond(ctx, llm.ReplyRequest{UserText: content})
	if err != nil {
		log.Printf("app: chat reply generation failed, using fallback: %v", err)
		return review.FallbackReply(content).Content
	}
	return resp.Text
}

// ---- audits ----

func (s *Service) StartAudit(ctx context.Context, projectID string, maxScenarios int, async bool) (AuditDTO, error) {
	if s.auditor == nil {
		return AuditDTO{}, domainError(http.StatusServiceUnavailable, "AUDIT_UNAVAILABLE", "Audit runner not configured", nil)
	}
	started, err := s.auditor.Start(ctx, projectID, maxScenarios, async)
	if err != nil {
		return AuditDTO{}, err
	}
	return toAuditDTO(started), nil
}

func (s *Service) GetAudit(ctx context.Context, auditID string) (AuditDTO, []IssueDTO, error) {
	if s.auditor == nil {
		return AuditDTO{}, nil, domainError(http.StatusServiceUnavailable, "AUDIT_UNAVAILABLE", "Audit runner not configured", nil)
	}
	auditRow, issues, err := s.auditor.Get(ctx, auditID)
	if err != nil {
		return AuditDTO{}, nil, err
	}
	return toAuditDTO(auditRow), toIssueDTOs(issues), nil
}

func (s *Service) AuditReport(ctx context.Context, auditID string) (string, error) {
	if s.auditor == nil {
		return "", domainError(http.StatusServiceUnavailable, "AUDIT_UNAVAILABLE", "Audit runner not configured", nil)
	}
	return s.auditor.Report(ctx, auditID)
}

func (s *Service) ExportAuditReport(ctx context.Context, auditID string, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	return s.exporter.Export(ctx, export.Request{AuditID: auditID, Format: format})
}

// ---- summary ----

// Summary is the landing-page counters payload.
type Summary struct {
	Projects  int `json:"projects"`
	Documents int `json:"documents"`
	Audits    int `json:"audits"`
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	projects, documents, audits, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Projects: projects, Documents: documents, Audits: audits}, nil
}

// ---- bootstrap ----

// Bootstrap seeds the sample project and its highlighted document on first
// run so a fresh deployment has something to review.
func (s *Service) Bootstrap(ctx context.Context) error {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) > 0 {
		return nil
	}

	seed := review.SeedDocument()

	if err := s.store.InsertProject(ctx, store.Project{
		ID:          "project-1",
		Name:        "Creator Connect",
		Description: "Creator monetization and live collaboration features.",
		Status:      "In Review",
	}); err != nil {
		return err
	}

	if err := s.store.InsertDocument(ctx, store.Document{
		ID:        "doc-1",
		ProjectID: "project-1",
		Title:     seed.Title,
		Type:      "tdd",
		Status:    "review",
		Content:   seed.Content,
		Version:   1,
	}); err != nil {
		return err
	}

	for _, highlight := range seed.Highlights {
		spansJSON, err := json.Marshal(highlight.Spans)
		if err != nil {
			return fmt.Errorf("encode spans for %s: %w", highlight.ID, err)
		}
		if err := s.store.InsertHighlight(ctx, store.Highlight{
			ID:              highlight.ID,
			DocumentID:      "doc-1",
			SpansJSON:       string(spansJSON),
			Reason:          highlight.Reason,
			ClarificationQn: highlight.ClarificationQuestion,
		}); err != nil {
			return err
		}
		for _, comment := range highlight.Comments {
			if err := s.store.InsertComment(ctx, store.Comment{
				ID:          comment.ID,
				HighlightID: highlight.ID,
				Author:      comment.Author,
				Content:     comment.Content,
				Kind:        string(comment.Kind),
			}); err != nil {
				return err
			}
		}
	}

	if s.searcher != nil {
		s.searcher.IndexDocument(search.DocumentRecord{
			ID:        "doc-1",
			Title:     seed.Title,
			ProjectID: "project-1",
			DocType:   "tdd",
			Status:    "review",
		})
	}
	return nil
}
