package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- projects ----

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.status, p.created_at,
		       (SELECT COUNT(*) FROM documents d WHERE d.project_id = p.id)
		FROM projects p
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Status, &item.CreatedAt, &item.DocumentCount); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, created_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Name, &item.Description, &item.Status, &item.CreatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, item Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Name, item.Description, item.Status)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// ---- documents ----

func (s *PostgresStore) ListDocumentsByProject(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, doc_type, status, version, created_at
		FROM documents
		WHERE project_id=$1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Type, &item.Status, &item.Version, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, projectID, documentID string) (Document, error) {
	var item Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, doc_type, status, content, content_span, version, created_at
		FROM documents
		WHERE id=$1 AND project_id=$2
	`, documentID, projectID).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Type, &item.Status, &item.Content, &item.ContentSpan, &item.Version, &item.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, title, doc_type, status, content, content_span, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.ProjectID, item.Title, item.Type, item.Status, item.Content, item.ContentSpan, item.Version)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// ---- highlights & comments ----

func (s *PostgresStore) ListHighlights(ctx context.Context, documentID string) ([]Highlight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, spans::text, reason, clarification_qn, created_at
		FROM highlights
		WHERE document_id=$1
		ORDER BY created_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	items := make([]Highlight, 0)
	for rows.Next() {
		var item Highlight
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.SpansJSON, &item.Reason, &item.ClarificationQn, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan highlight: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate highlights: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetHighlight(ctx context.Context, documentID, highlightID string) (Highlight, error) {
	var item Highlight
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, spans::text, reason, clarification_qn, created_at
		FROM highlights
		WHERE id=$1 AND document_id=$2
	`, highlightID, documentID).Scan(&item.ID, &item.DocumentID, &item.SpansJSON, &item.Reason, &item.ClarificationQn, &item.CreatedAt)
	if err != nil {
		return Highlight{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertHighlight(ctx context.Context, item Highlight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO highlights (id, document_id, spans, reason, clarification_qn)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.DocumentID, item.SpansJSON, item.Reason, item.ClarificationQn)
	if err != nil {
		return fmt.Errorf("insert highlight: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, highlightID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, highlight_id, author, content, kind, created_at
		FROM comments
		WHERE highlight_id=$1
		ORDER BY created_at ASC, id ASC
	`, highlightID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.HighlightID, &item.Author, &item.Content, &item.Kind, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, highlight_id, author, content, kind)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.HighlightID, item.Author, item.Content, item.Kind)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ---- laws ----

func (s *PostgresStore) InsertArticleEntry(ctx context.Context, item ArticleEntry) (int64, error) {
	var entID int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO article_entries (art_num, entry_type, belongs_to, contents, word)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ent_id
	`, item.ArtNum, item.Type, item.BelongsTo, item.Contents, item.Word).Scan(&entID)
	if err != nil {
		return 0, fmt.Errorf("insert article entry: %w", err)
	}
	return entID, nil
}

func (s *PostgresStore) GetArticleEntry(ctx context.Context, entID int64) (ArticleEntry, error) {
	var item ArticleEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT ent_id, art_num, entry_type, belongs_to, contents, word, created_at
		FROM article_entries
		WHERE ent_id=$1
	`, entID).Scan(&item.EntID, &item.ArtNum, &item.Type, &item.BelongsTo, &item.Contents, &item.Word, &item.CreatedAt)
	if err != nil {
		return ArticleEntry{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListArticleEntries(ctx context.Context, limit int) ([]ArticleEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ent_id, art_num, entry_type, belongs_to, contents, word, created_at
		FROM article_entries
		ORDER BY ent_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list article entries: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleEntry, 0)
	for rows.Next() {
		var item ArticleEntry
		if err := rows.Scan(&item.EntID, &item.ArtNum, &item.Type, &item.BelongsTo, &item.Contents, &item.Word, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan article entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article entries: %w", err)
	}
	return items, nil
}

// ---- audits & issues ----

func (s *PostgresStore) InsertAudit(ctx context.Context, item Audit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audits (id, project_id, status)
		VALUES ($1, $2, $3)
	`, item.ID, item.ProjectID, item.Status)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAudit(ctx context.Context, auditID string) (Audit, error) {
	var item Audit
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, created_at, completed_at
		FROM audits
		WHERE id=$1
	`, auditID).Scan(&item.ID, &item.ProjectID, &item.Status, &item.CreatedAt, &item.CompletedAt)
	if err != nil {
		return Audit{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateAuditStatus(ctx context.Context, auditID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE audits
		SET status=$2,
		    completed_at=CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		WHERE id=$1
	`, auditID, status)
	if err != nil {
		return fmt.Errorf("update audit status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update audit status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) InsertIssue(ctx context.Context, item Issue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (id, audit_id, ent_id, description, status, evidence, clarification_qn)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`, item.ID, item.AuditID, item.EntID, item.Description, item.Status, item.EvidenceJSON, item.ClarificationQn)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListIssuesByAudit(ctx context.Context, auditID string) ([]Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_id, ent_id, description, status, evidence::text, clarification_qn, created_at
		FROM issues
		WHERE audit_id=$1
		ORDER BY created_at ASC
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	items := make([]Issue, 0)
	for rows.Next() {
		var item Issue
		if err := rows.Scan(&item.ID, &item.AuditID, &item.EntID, &item.Description, &item.Status, &item.EvidenceJSON, &item.ClarificationQn, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return items, nil
}

// ---- conversations & messages ----

// GetOrCreateConversation resolves an existing conversation or creates one.
// A caller-supplied id that does not exist yet is created under that id, so
// clients can keep stable conversation handles across restarts.
func (s *PostgresStore) GetOrCreateConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var item Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, audit_id, issue_id, created_at
		FROM conversations
		WHERE id=$1
	`, conversationID).Scan(&item.ID, &item.AuditID, &item.IssueID, &item.CreatedAt)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, fmt.Errorf("lookup conversation: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id)
		VALUES ($1)
		RETURNING id, audit_id, issue_id, created_at
	`, conversationID).Scan(&item.ID, &item.AuditID, &item.IssueID, &item.CreatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) CreateIssueConversation(ctx context.Context, conversationID, auditID, issueID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, audit_id, issue_id)
		VALUES ($1, $2, $3)
	`, conversationID, auditID, issueID)
	if err != nil {
		return fmt.Errorf("create issue conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListConversationsByIssue(ctx context.Context, issueID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_id, issue_id, created_at
		FROM conversations
		WHERE issue_id=$1
		ORDER BY created_at ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]Conversation, 0)
	for rows.Next() {
		var item Conversation
		if err := rows.Scan(&item.ID, &item.AuditID, &item.IssueID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, kind, content, created_at
		FROM messages
		WHERE conversation_id=$1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.ConversationID, &item.Kind, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, item Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, kind, content)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.ConversationID, item.Kind, item.Content)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ---- summary ----

func (s *PostgresStore) SummaryCounts(ctx context.Context) (projects, documents, audits int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM projects),
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM audits)
	`).Scan(&projects, &documents, &audits)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("summary counts: %w", err)
	}
	return projects, documents, audits, nil
}
