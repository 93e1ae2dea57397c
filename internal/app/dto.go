package app

import (
	"encoding/json"
	"time"

	"geocompliance/api/internal/store"
)

// Wire shapes for rows leaving the store. Store models stay tag-free; the
// frontend contract (camelCase keys) lives here.

type ProjectDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	DocumentCount int       `json:"documentCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type DocumentDTO struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

type ConversationDTO struct {
	ID        string    `json:"id"`
	AuditID   *string   `json:"auditId,omitempty"`
	IssueID   *string   `json:"issueId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Kind           string    `json:"type"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type AuditDTO struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type IssueDTO struct {
	ID                    string          `json:"id"`
	AuditID               string          `json:"auditId"`
	EntID                 *int64          `json:"entId,omitempty"`
	Description           string          `json:"description"`
	Status                string          `json:"status"`
	Evidence              json.RawMessage `json:"evidence,omitempty"`
	ClarificationQuestion string          `json:"clarificationQuestion,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
}

func toProjectDTO(p store.Project) ProjectDTO {
	return ProjectDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Status:        p.Status,
		DocumentCount: p.DocumentCount,
		CreatedAt:     p.CreatedAt,
	}
}

func toDocumentDTO(d store.Document) DocumentDTO {
	return DocumentDTO{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Title:     d.Title,
		Type:      d.Type,
		Status:    d.Status,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
	}
}

func toConversationDTO(c store.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:        c.ID,
		AuditID:   c.AuditID,
		IssueID:   c.IssueID,
		CreatedAt: c.CreatedAt,
	}
}

func toMessageDTO(m store.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Kind:           m.Kind,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func toAuditDTO(a store.Audit) AuditDTO {
	return AuditDTO{
		ID:          a.ID,
		ProjectID:   a.ProjectID,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt,
		CompletedAt: a.CompletedAt,
	}
}

func toIssueDTO(i store.Issue) IssueDTO {
	dto := IssueDTO{
		ID:                    i.ID,
		AuditID:               i.AuditID,
		EntID:                 i.EntID,
		Description:           i.Description,
		Status:                i.Status,
		ClarificationQuestion: i.ClarificationQn,
		CreatedAt:             i.CreatedAt,
	}
	if i.EvidenceJSON != nil {
		dto.Evidence = json.RawMessage(*i.EvidenceJSON)
	}
	return dto
}

func toMessageDTOs(rows []store.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(rows))
	for _, m := range rows {
		out = append(out, toMessageDTO(m))
	}
	return out
}

func toIssueDTOs(rows []store.Issue) []IssueDTO {
	out := make([]IssueDTO, 0, len(rows))
	for _, i := range rows {
		out = append(out, toIssueDTO(i))
	}
	return out
}
