package export

import (
	"bytes"
	"html/template"
	"time"
)

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title       string
	ProjectName string
	GeneratedAt time.Time
	BodyHTML    template.HTML
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h3 { margin-top: 2rem; }
    blockquote { background: #f5f5f5; padding: 0.75rem 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    ul { padding-left: 1.25rem; }
  </style>
</head>
<body>
  <div class="meta">{{.ProjectName}} | Generated {{.GeneratedAt.Format "Jan 2, 2006 15:04 MST"}}</div>
  {{.BodyHTML}}
</body>
</html>`))

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
