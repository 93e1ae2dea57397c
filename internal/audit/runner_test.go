package audit

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"geocompliance/api/internal/store"
)

// memStore is an in-memory dataStore for runner tests.
type memStore struct {
	mu            sync.Mutex
	projects      map[string]store.Project
	documents     []store.Document
	entries       []store.ArticleEntry
	audits        map[string]store.Audit
	issues        []store.Issue
	conversations []store.Conversation
	messages      []store.Message
}

func newMemStore() *memStore {
	return &memStore{
		projects: map[string]store.Project{},
		audits:   map[string]store.Audit{},
	}
}

func (m *memStore) GetProject(_ context.Context, projectID string) (store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *memStore) ListDocumentsByProject(_ context.Context, projectID string) ([]store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Document
	for _, d := range m.documents {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) GetDocument(_ context.Context, projectID, documentID string) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.documents {
		if d.ProjectID == projectID && d.ID == documentID {
			return d, nil
		}
	}
	return store.Document{}, sql.ErrNoRows
}

func (m *memStore) ListArticleEntries(_ context.Context, limit int) ([]store.ArticleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > 0 && limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func (m *memStore) GetArticleEntry(_ context.Context, entID int64) (store.ArticleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.EntID == entID {
			return e, nil
		}
	}
	return store.ArticleEntry{}, sql.ErrNoRows
}

func (m *memStore) InsertAudit(_ context.Context, item store.Audit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits[item.ID] = item
	return nil
}

func (m *memStore) GetAudit(_ context.Context, auditID string) (store.Audit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audits[auditID]
	if !ok {
		return store.Audit{}, sql.ErrNoRows
	}
	return a, nil
}

func (m *memStore) UpdateAuditStatus(_ context.Context, auditID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audits[auditID]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	m.audits[auditID] = a
	return nil
}

func (m *memStore) InsertIssue(_ context.Context, item store.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = append(m.issues, item)
	return nil
}

func (m *memStore) ListIssuesByAudit(_ context.Context, auditID string) ([]store.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Issue
	for _, issue := range m.issues {
		if issue.AuditID == auditID {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (m *memStore) CreateIssueConversation(_ context.Context, conversationID, auditID, issueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = append(m.conversations, store.Conversation{
		ID:      conversationID,
		AuditID: &auditID,
		IssueID: &issueID,
	})
	return nil
}

func (m *memStore) ListConversationsByIssue(_ context.Context, issueID string) ([]store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Conversation
	for _, c := range m.conversations {
		if c.IssueID != nil && *c.IssueID == issueID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID string) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func seedScanFixture() *memStore {
	ms := newMemStore()
	ms.projects["project-1"] = store.Project{ID: "project-1", Name: "Creator Connect"}
	ms.documents = []store.Document{
		{
			ID:        "doc-1",
			ProjectID: "project-1",
			Title:     "Creator Connect TDD",
			Type:      "tdd",
			Version:   1,
			Content:   "The platform supports livestreaming for all users including minors, with location sharing enabled by default.",
		},
	}
	word := "minors"
	ms.entries = []store.ArticleEntry{
		{
			EntID:     1,
			ArtNum:    "1.3",
			Type:      "definition",
			BelongsTo: "Digital Trust and Safety Act",
			Contents:  "refers to a User under the age of eighteen",
			Word:      &word,
		},
		{
			EntID:     2,
			ArtNum:    "Article 7",
			Type:      "law",
			BelongsTo: "Digital Trust and Safety Act",
			Contents:  "Platforms offering \"location sharing\" must default it to off for protected accounts.",
		},
		{
			EntID:     3,
			ArtNum:    "Article 9",
			Type:      "law",
			BelongsTo: "Digital Trust and Safety Act",
			Contents:  "Provisions about \"cryptocurrency payouts\" and settlement windows.",
		},
	}
	return ms
}

func TestRunnerSyncAuditFindsIssues(t *testing.T) {
	ms := seedScanFixture()
	runner := NewRunner(ms, nil)

	audit, err := runner.Start(context.Background(), "project-1", 0, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if audit.Status != StatusCompleted {
		t.Errorf("expected completed audit, got %s", audit.Status)
	}

	issues, err := ms.ListIssuesByAudit(context.Background(), audit.ID)
	if err != nil {
		t.Fatalf("ListIssuesByAudit: %v", err)
	}
	// "minors" and "location sharing" match; "cryptocurrency payouts" does not.
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %+v", len(issues), issues)
	}

	for _, issue := range issues {
		if issue.EntID == nil {
			t.Error("issue missing article reference")
		}
		if issue.EvidenceJSON == nil || !strings.Contains(*issue.EvidenceJSON, "doc-1") {
			t.Errorf("issue evidence missing document reference: %+v", issue)
		}
		if issue.ClarificationQn == "" {
			t.Error("issue missing clarification question")
		}
		convs, _ := ms.ListConversationsByIssue(context.Background(), issue.ID)
		if len(convs) != 1 {
			t.Errorf("expected one conversation for issue %s, got %d", issue.ID, len(convs))
		}
	}
}

func TestRunnerAsyncAuditCompletes(t *testing.T) {
	ms := seedScanFixture()
	runner := NewRunner(ms, nil)

	audit, err := runner.Start(context.Background(), "project-1", 10, true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if audit.Status != StatusPending {
		t.Errorf("async start should return pending audit, got %s", audit.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		current, err := ms.GetAudit(context.Background(), audit.ID)
		if err != nil {
			t.Fatalf("GetAudit: %v", err)
		}
		if current.Status == StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit did not complete, status %s", current.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunnerRejectsUnknownProject(t *testing.T) {
	runner := NewRunner(newMemStore(), nil)
	if _, err := runner.Start(context.Background(), "nope", 0, false); err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestMatchTerm(t *testing.T) {
	word := "Minor"
	tests := []struct {
		name  string
		entry store.ArticleEntry
		want  string
	}{
		{"definition word", store.ArticleEntry{Word: &word}, "Minor"},
		{"quoted phrase", store.ArticleEntry{Contents: `Platforms offering "age assurance" must...`}, "age assurance"},
		{"no quotes", store.ArticleEntry{Contents: "Nothing quotable here."}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchTerm(tt.entry); got != tt.want {
				t.Errorf("matchTerm = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReportRendersFindings(t *testing.T) {
	ms := seedScanFixture()
	runner := NewRunner(ms, nil)

	audit, err := runner.Start(context.Background(), "project-1", 0, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	report, err := runner.Report(context.Background(), audit.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	for _, want := range []string{
		"# Compliance Audit Report: Creator Connect",
		"## Executive Summary",
		"## Findings (2)",
		"Digital Trust and Safety Act",
		"TDD (v1)",
		"Open question:",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q\n---\n%s", want, report)
		}
	}
}

func TestReportForCleanAudit(t *testing.T) {
	ms := seedScanFixture()
	ms.entries = nil // nothing to match
	runner := NewRunner(ms, nil)

	audit, err := runner.Start(context.Background(), "project-1", 0, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	report, err := runner.Report(context.Background(), audit.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !strings.Contains(report, "No compliance issues were identified") {
		t.Errorf("clean report missing empty-findings line:\n%s", report)
	}
}
