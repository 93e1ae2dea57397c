package export

import (
	"html"
	"strings"
)

// markdownToHTML converts the report subset of markdown (headings, block
// quotes, list items, bold, italics) to HTML. Reports are generated by this
// service, so only the constructs the report writer emits are handled.
func markdownToHTML(md string) string {
	var b strings.Builder
	inList := false

	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			closeList()
		case strings.HasPrefix(trimmed, "### "):
			closeList()
			b.WriteString("<h3>" + inlineHTML(trimmed[4:]) + "</h3>\n")
		case strings.HasPrefix(trimmed, "## "):
			closeList()
			b.WriteString("<h2>" + inlineHTML(trimmed[3:]) + "</h2>\n")
		case strings.HasPrefix(trimmed, "# "):
			closeList()
			b.WriteString("<h1>" + inlineHTML(trimmed[2:]) + "</h1>\n")
		case strings.HasPrefix(trimmed, "> "):
			closeList()
			b.WriteString("<blockquote>" + inlineHTML(trimmed[2:]) + "</blockquote>\n")
		case strings.HasPrefix(trimmed, "- "):
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			b.WriteString("<li>" + inlineHTML(trimmed[2:]) + "</li>\n")
		default:
			closeList()
			b.WriteString("<p>" + inlineHTML(trimmed) + "</p>\n")
		}
	}
	closeList()
	return b.String()
}

// inlineHTML escapes the text and then applies **bold** and _italic_ spans.
func inlineHTML(text string) string {
	escaped := html.EscapeString(text)
	escaped = replacePairs(escaped, "**", "<strong>", "</strong>")
	escaped = replacePairs(escaped, "_", "<em>", "</em>")
	return escaped
}

// replacePairs swaps alternating occurrences of marker for open/close tags.
// An unmatched trailing marker is left as-is.
func replacePairs(s, marker, open, close string) string {
	parts := strings.Split(s, marker)
	if len(parts) < 3 {
		return s
	}

	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			if i%2 == 1 && i+1 < len(parts) {
				b.WriteString(open)
			} else if i%2 == 0 {
				b.WriteString(close)
			} else {
				b.WriteString(marker)
			}
		}
		b.WriteString(part)
	}
	return b.String()
}
