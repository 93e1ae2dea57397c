// Package audit scans a project's documents against the law library and
// records compliance issues.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"geocompliance/api/internal/llm"
	"geocompliance/api/internal/store"
	"geocompliance/api/internal/util"
)

// Audit lifecycle states.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DefaultMaxScenarios caps how many article entries a single run evaluates.
const DefaultMaxScenarios = 25

type dataStore interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListDocumentsByProject(ctx context.Context, projectID string) ([]store.Document, error)
	GetDocument(ctx context.Context, projectID, documentID string) (store.Document, error)
	ListArticleEntries(ctx context.Context, limit int) ([]store.ArticleEntry, error)
	GetArticleEntry(ctx context.Context, entID int64) (store.ArticleEntry, error)
	InsertAudit(ctx context.Context, item store.Audit) error
	GetAudit(ctx context.Context, auditID string) (store.Audit, error)
	UpdateAuditStatus(ctx context.Context, auditID, status string) error
	InsertIssue(ctx context.Context, item store.Issue) error
	ListIssuesByAudit(ctx context.Context, auditID string) ([]store.Issue, error)
	CreateIssueConversation(ctx context.Context, conversationID, auditID, issueID string) error
	ListConversationsByIssue(ctx context.Context, issueID string) ([]store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
}

// Evidence is one quoted passage backing an issue.
type Evidence struct {
	DocumentID string `json:"documentId"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Quote      string `json:"quote"`
}

// Runner drives audit execution. provider may be nil; runs then rely on the
// deterministic term-matching scan alone.
type Runner struct {
	store    dataStore
	provider llm.Provider
}

func NewRunner(ds dataStore, provider llm.Provider) *Runner {
	return &Runner{store: ds, provider: provider}
}

// Start creates an audit for the project and runs it. With async true the
// scan continues in the background and the pending audit is returned
// immediately; callers poll Get for status transitions.
func (r *Runner) Start(ctx context.Context, projectID string, maxScenarios int, async bool) (store.Audit, error) {
	if _, err := r.store.GetProject(ctx, projectID); err != nil {
		return store.Audit{}, fmt.Errorf("resolve project %s: %w", projectID, err)
	}

	audit := store.Audit{
		ID:        util.NewID("audit"),
		ProjectID: projectID,
		Status:    StatusPending,
	}
	if err := r.store.InsertAudit(ctx, audit); err != nil {
		return store.Audit{}, err
	}

	if maxScenarios <= 0 {
		maxScenarios = DefaultMaxScenarios
	}

	if async {
		go func() {
			// Detached from the request context; the scan outlives it.
			bg := context.Background()
			if err := r.run(bg, audit.ID, projectID, maxScenarios); err != nil {
				log.Printf("audit: background run %s failed: %v", audit.ID, err)
			}
		}()
		return audit, nil
	}

	if err := r.run(ctx, audit.ID, projectID, maxScenarios); err != nil {
		return store.Audit{}, err
	}
	return r.store.GetAudit(ctx, audit.ID)
}

func (r *Runner) run(ctx context.Context, auditID, projectID string, maxScenarios int) error {
	if err := r.store.UpdateAuditStatus(ctx, auditID, StatusInProgress); err != nil {
		return fmt.Errorf("mark audit in progress: %w", err)
	}

	if err := r.scan(ctx, auditID, projectID, maxScenarios); err != nil {
		if statusErr := r.store.UpdateAuditStatus(ctx, auditID, StatusFailed); statusErr != nil {
			log.Printf("audit: mark %s failed: %v", auditID, statusErr)
		}
		return err
	}

	return r.store.UpdateAuditStatus(ctx, auditID, StatusCompleted)
}

// scan evaluates up to maxScenarios article entries against every document in
// the project. An entry produces an issue when a defined term or obligation
// keyword from the entry appears in a document, which marks the passage as
// needing review against that article.
func (r *Runner) scan(ctx context.Context, auditID, projectID string, maxScenarios int) error {
	documents, err := r.store.ListDocumentsByProject(ctx, projectID)
	if err != nil {
		return err
	}
	entries, err := r.store.ListArticleEntries(ctx, maxScenarios)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		term := matchTerm(entry)
		if term == "" {
			continue
		}

		for _, doc := range documents {
			full, err := r.store.GetDocument(ctx, projectID, doc.ID)
			if err != nil {
				return fmt.Errorf("load document %s: %w", doc.ID, err)
			}

			idx := indexFold(full.Content, term)
			if idx < 0 {
				continue
			}

			ev := []Evidence{{
				DocumentID: doc.ID,
				Start:      idx,
				End:        idx + len(term),
				Quote:      surrounding(full.Content, idx, len(term)),
			}}
			if err := r.recordIssue(ctx, auditID, entry, term, doc, ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) recordIssue(ctx context.Context, auditID string, entry store.ArticleEntry, term string, doc store.Document, evidence []Evidence) error {
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	issue := store.Issue{
		ID:      util.NewID("issue"),
		AuditID: auditID,
		EntID:   &entry.EntID,
		Description: fmt.Sprintf("%s (%s) may apply: document %q references %q.",
			entry.BelongsTo, entry.ArtNum, doc.Title, term),
		Status:          "open",
		ClarificationQn: r.clarificationQuestion(ctx, entry, term, doc),
	}
	ej := string(evidenceJSON)
	issue.EvidenceJSON = &ej

	if err := r.store.InsertIssue(ctx, issue); err != nil {
		return err
	}

	// Every issue gets a conversation so reviewers can discuss it in place.
	convID := util.NewID("conv")
	if err := r.store.CreateIssueConversation(ctx, convID, auditID, issue.ID); err != nil {
		return fmt.Errorf("create issue conversation: %w", err)
	}
	return nil
}

func (r *Runner) clarificationQuestion(ctx context.Context, entry store.ArticleEntry, term string, doc store.Document) string {
	fallback := fmt.Sprintf("How does %q handle the obligations of %s %s regarding %q?",
		doc.Title, entry.BelongsTo, entry.ArtNum, term)

	if r.provider == nil {
		return fallback
	}

	resp, err := r.provider.Respond(ctx, llm.ReplyRequest{
		System:    "You write one short clarification question a compliance auditor would ask a product team. Reply with the question only.",
		UserText:  fmt.Sprintf("The document %q mentions %q.", doc.Title, term),
		Context:   fmt.Sprintf("%s %s: %s", entry.BelongsTo, entry.ArtNum, entry.Contents),
		MaxTokens: 200,
	})
	if err != nil {
		log.Printf("audit: clarification generation failed, using canned question: %v", err)
		return fallback
	}
	return resp.Text
}

// Get returns the audit with its issues.
func (r *Runner) Get(ctx context.Context, auditID string) (store.Audit, []store.Issue, error) {
	audit, err := r.store.GetAudit(ctx, auditID)
	if err != nil {
		return store.Audit{}, nil, err
	}
	issues, err := r.store.ListIssuesByAudit(ctx, auditID)
	if err != nil {
		return store.Audit{}, nil, err
	}
	return audit, issues, nil
}

// matchTerm picks the token the scan looks for in document text: the defined
// word for definitions, the first quoted phrase for laws and recitals.
func matchTerm(entry store.ArticleEntry) string {
	if entry.Word != nil && strings.TrimSpace(*entry.Word) != "" {
		return strings.TrimSpace(*entry.Word)
	}

	start := strings.IndexByte(entry.Contents, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(entry.Contents[start+1:], '"')
	if end <= 0 {
		return ""
	}
	return entry.Contents[start+1 : start+1+end]
}

func indexFold(haystack, needle string) int {
	return strings.Index(strings.ToLower(haystack), strings.ToLower(needle))
}

// surrounding extracts a short quote around the match for evidence display.
func surrounding(content string, idx, matchLen int) string {
	const margin = 60
	start := idx - margin
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + margin
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(content[start:end])
}
