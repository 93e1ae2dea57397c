package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ReportSource produces the markdown report for an audit.
type ReportSource interface {
	Report(ctx context.Context, auditID string) (string, error)
}

// Service provides audit report export functionality
type Service struct {
	source ReportSource
}

// NewService creates a new export service
func NewService(source ReportSource) *Service {
	return &Service{source: source}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	markdown, err := s.source.Report(ctx, req.AuditID)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}

	title := reportTitle(markdown, req.AuditID)

	switch req.Format {
	case FormatMarkdown, "":
		return &Result{
			Data:     []byte(markdown),
			Filename: sanitizeFilename(title) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil

	case FormatPDF:
		html, err := RenderReportHTML(TemplateData{
			Title:       title,
			ProjectName: title,
			GeneratedAt: time.Now(),
			BodyHTML:    template.HTML(markdownToHTML(markdown)),
		})
		if err != nil {
			return nil, fmt.Errorf("render report html: %w", err)
		}
		return exportPDF(html, title)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

// reportTitle pulls the H1 from the markdown, falling back to the audit id.
func reportTitle(markdown, auditID string) string {
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return "Audit " + auditID
}
