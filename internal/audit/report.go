package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"geocompliance/api/internal/llm"
	"geocompliance/api/internal/store"
)

// Dossier is the assembled material a report is written from.
type Dossier struct {
	Project  store.Project
	Audit    store.Audit
	DocLine  string
	Findings []Finding
}

// Finding pairs an issue with the article it cites and any discussion.
type Finding struct {
	Issue      store.Issue
	LawName    string
	ArtNum     string
	ArticleTxt string
	Evidence   []Evidence
	Transcript []store.Message
}

// BuildDossier gathers everything known about an audit: project details,
// audited documents, each issue with its cited article and the conversation
// attached to it.
func (r *Runner) BuildDossier(ctx context.Context, auditID string) (Dossier, error) {
	audit, err := r.store.GetAudit(ctx, auditID)
	if err != nil {
		return Dossier{}, fmt.Errorf("load audit %s: %w", auditID, err)
	}
	project, err := r.store.GetProject(ctx, audit.ProjectID)
	if err != nil {
		return Dossier{}, fmt.Errorf("load project %s: %w", audit.ProjectID, err)
	}
	documents, err := r.store.ListDocumentsByProject(ctx, audit.ProjectID)
	if err != nil {
		return Dossier{}, err
	}

	docParts := make([]string, 0, len(documents))
	for _, doc := range documents {
		docParts = append(docParts, fmt.Sprintf("%s (v%d)", strings.ToUpper(doc.Type), doc.Version))
	}

	issues, err := r.store.ListIssuesByAudit(ctx, auditID)
	if err != nil {
		return Dossier{}, err
	}

	findings := make([]Finding, 0, len(issues))
	for _, issue := range issues {
		finding := Finding{Issue: issue}

		if issue.EntID != nil {
			entry, err := r.store.GetArticleEntry(ctx, *issue.EntID)
			if err != nil {
				return Dossier{}, fmt.Errorf("load article %d: %w", *issue.EntID, err)
			}
			finding.LawName = entry.BelongsTo
			finding.ArtNum = entry.ArtNum
			finding.ArticleTxt = entry.Contents
		}

		if issue.EvidenceJSON != nil {
			if err := json.Unmarshal([]byte(*issue.EvidenceJSON), &finding.Evidence); err != nil {
				log.Printf("audit: issue %s has malformed evidence, skipping: %v", issue.ID, err)
			}
		}

		convs, err := r.store.ListConversationsByIssue(ctx, issue.ID)
		if err != nil {
			return Dossier{}, err
		}
		if len(convs) > 0 {
			transcript, err := r.store.ListMessages(ctx, convs[0].ID)
			if err != nil {
				return Dossier{}, err
			}
			finding.Transcript = transcript
		}

		findings = append(findings, finding)
	}

	return Dossier{
		Project:  project,
		Audit:    audit,
		DocLine:  strings.Join(docParts, ", "),
		Findings: findings,
	}, nil
}

// Report renders the dossier as markdown. When an LLM provider is configured
// it writes the executive summary; the findings section is always assembled
// deterministically so the report never depends on provider availability.
func (r *Runner) Report(ctx context.Context, auditID string) (string, error) {
	dossier, err := r.BuildDossier(ctx, auditID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance Audit Report: %s\n\n", dossier.Project.Name)
	fmt.Fprintf(&b, "**Audit:** %s  \n**Status:** %s  \n**Documents:** %s\n\n",
		dossier.Audit.ID, dossier.Audit.Status, dossier.DocLine)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(r.executiveSummary(ctx, dossier))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## Findings (%d)\n\n", len(dossier.Findings))
	if len(dossier.Findings) == 0 {
		b.WriteString("No compliance issues were identified in this run.\n")
	}
	for i, finding := range dossier.Findings {
		fmt.Fprintf(&b, "### %d. %s %s\n\n", i+1, finding.LawName, finding.ArtNum)
		fmt.Fprintf(&b, "%s\n\n", finding.Issue.Description)
		if finding.ArticleTxt != "" {
			fmt.Fprintf(&b, "> %s\n\n", finding.ArticleTxt)
		}
		for _, ev := range finding.Evidence {
			fmt.Fprintf(&b, "- Evidence (doc %s, chars %d-%d): \"…%s…\"\n", ev.DocumentID, ev.Start, ev.End, ev.Quote)
		}
		if finding.Issue.ClarificationQn != "" {
			fmt.Fprintf(&b, "\n**Open question:** %s\n", finding.Issue.ClarificationQn)
		}
		if len(finding.Transcript) > 0 {
			b.WriteString("\n**Discussion:**\n\n")
			for _, msg := range finding.Transcript {
				fmt.Fprintf(&b, "- _%s_: %s\n", msg.Kind, msg.Content)
			}
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (r *Runner) executiveSummary(ctx context.Context, dossier Dossier) string {
	fallback := fmt.Sprintf("This audit of %q evaluated %s and surfaced %d potential compliance issue(s). Each finding below cites the triggering regulation, the supporting passage, and the open question for the product team.",
		dossier.Project.Name, dossier.DocLine, len(dossier.Findings))

	if r.provider == nil {
		return fallback
	}

	laws := map[string]bool{}
	for _, finding := range dossier.Findings {
		if finding.LawName != "" {
			laws[finding.LawName] = true
		}
	}
	lawNames := make([]string, 0, len(laws))
	for name := range laws {
		lawNames = append(lawNames, name)
	}

	resp, err := r.provider.Respond(ctx, llm.ReplyRequest{
		System:    "You write the executive summary of a compliance audit report in 3-4 sentences. Mention only regulations and counts you are given.",
		UserText:  fmt.Sprintf("Project %q, documents %s, %d findings.", dossier.Project.Name, dossier.DocLine, len(dossier.Findings)),
		Context:   "Regulations involved: " + strings.Join(lawNames, ", "),
		MaxTokens: 400,
	})
	if err != nil {
		log.Printf("audit: summary generation failed, using canned summary: %v", err)
		return fallback
	}
	return resp.Text
}
