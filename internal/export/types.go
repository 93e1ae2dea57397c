// Package export renders audit reports for download as PDF.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
)

// Request contains parameters for an export operation
type Request struct {
	AuditID string
	Format  Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not supported.
	ErrUnsupportedFormat = errors.New("export format not supported")
)
