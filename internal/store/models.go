package store

import "time"

type Project struct {
	ID            string
	Name          string
	Description   string
	Status        string
	DocumentCount int
	CreatedAt     time.Time
}

type Document struct {
	ID          string
	ProjectID   string
	Title       string
	Type        string
	Status      string
	Content     string
	ContentSpan *string
	Version     int
	CreatedAt   time.Time
}

// Highlight rows keep their spans as raw JSON; the review package owns the
// span semantics and does the decoding.
type Highlight struct {
	ID              string
	DocumentID      string
	SpansJSON       string
	Reason          string
	ClarificationQn string
	CreatedAt       time.Time
}

type Comment struct {
	ID          string
	HighlightID string
	Author      string
	Content     string
	Kind        string
	CreatedAt   time.Time
}

type ArticleEntry struct {
	EntID     int64
	ArtNum    string
	Type      string
	BelongsTo string
	Contents  string
	Word      *string
	CreatedAt time.Time
}

type Audit struct {
	ID          string
	ProjectID   string
	Status      string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type Issue struct {
	ID              string
	AuditID         string
	EntID           *int64
	Description     string
	Status          string
	EvidenceJSON    *string
	ClarificationQn string
	CreatedAt       time.Time
}

type Conversation struct {
	ID        string
	AuditID   *string
	IssueID   *string
	CreatedAt time.Time
}

type Message struct {
	ID             string
	ConversationID string
	Kind           string
	Content        string
	CreatedAt      time.Time
}
