// Package lawlib parses legislative bill text into law-library entries.
package lawlib

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry types stored in the law library.
const (
	EntryDefinition = "definition"
	EntryLaw        = "law"
	EntryRecital    = "recital"
)

// Definition is a numbered defined term from a bill's Definitions block.
type Definition struct {
	ArtNum  string
	Word    string
	Content string
}

// Article is one numbered article with its heading folded into the contents.
type Article struct {
	ArtNum   string
	Contents string
}

// Bill is the parsed form of a legislative text.
type Bill struct {
	Title       string
	Definitions []Definition
	Articles    []Article
}

var (
	definitionsBlockRe = regexp.MustCompile(`(?is)Definitions(.*?)Article\s+1`)
	definitionRe       = regexp.MustCompile(`(\d+\.\d+)\s+"([^"]+)"\s*—\s*(.+)`)
	articleSplitRe     = regexp.MustCompile(`(Article\s+\d+\s*—)`)
	articleHeaderRe    = regexp.MustCompile(`(Article\s+\d+)\s*—\s*(.*)`)
)

// Parse extracts the title, definitions and articles from raw bill text.
// The title is the first non-blank line. Definitions live between the word
// "Definitions" and "Article 1"; each matches `1.1 "Term" — text`. Articles
// are delimited by `Article N —` headings.
func Parse(content string) (Bill, error) {
	var bill Bill

	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			bill.Title = trimmed
			break
		}
	}
	if bill.Title == "" {
		return Bill{}, fmt.Errorf("bill text has no title line")
	}

	if block := definitionsBlockRe.FindStringSubmatch(content); block != nil {
		bill.Definitions = parseDefinitions(block[1])
	}

	bill.Articles = parseArticles(content)

	if len(bill.Definitions) == 0 && len(bill.Articles) == 0 {
		return Bill{}, fmt.Errorf("bill %q contains no definitions or articles", bill.Title)
	}
	return bill, nil
}

func parseDefinitions(block string) []Definition {
	var defs []Definition
	for _, line := range strings.Split(block, "\n") {
		match := definitionRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		defs = append(defs, Definition{
			ArtNum:  strings.TrimSpace(match[1]),
			Word:    strings.TrimSpace(match[2]),
			Content: strings.TrimSpace(match[3]),
		})
	}
	return defs
}

func parseArticles(content string) []Article {
	// Split yields ["before", "Article 1 —", "content1", "Article 2 —", ...].
	parts := splitKeepingDelimiters(content)
	if len(parts) < 2 {
		return nil
	}

	var articles []Article
	for i := 1; i < len(parts); i += 2 {
		header := strings.TrimSpace(parts[i])
		var text string
		if i+1 < len(parts) {
			text = strings.TrimSpace(parts[i+1])
		}

		match := articleHeaderRe.FindStringSubmatch(header)
		if match == nil {
			continue
		}
		artNum := match[1]
		title := strings.TrimSpace(match[2])

		contents := text
		if title != "" {
			contents = title + " — " + text
		}
		articles = append(articles, Article{
			ArtNum:   artNum,
			Contents: strings.TrimSpace(contents),
		})
	}
	return articles
}

// splitKeepingDelimiters mimics a split that retains the matched Article
// headings as their own elements.
func splitKeepingDelimiters(content string) []string {
	locs := articleSplitRe.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return []string{content}
	}

	var parts []string
	prev := 0
	for _, loc := range locs {
		parts = append(parts, content[prev:loc[0]], content[loc[0]:loc[1]])
		prev = loc[1]
	}
	parts = append(parts, content[prev:])
	return parts
}
