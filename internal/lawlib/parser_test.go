package lawlib

import (
	"strings"
	"testing"
)

const sampleBill = `Digital Trust and Safety Act

Preamble
Whereas online platforms shape public discourse, this Act establishes duties of care.

Definitions
1.1 "User" — refers to any natural person holding an account on a covered platform.
1.2 "Content" — refers to any material uploaded, shared, or generated on a covered platform.
1.3 "Minor" — refers to a User under the age of eighteen.

Article 1 — Scope
This Act applies to any platform with more than one million monthly active Users.

Article 2 — Age Assurance
Covered platforms must deploy proportionate age assurance measures for features accessible to Minors.

Article 3 — Transparency Reporting
Covered platforms shall publish semi-annual transparency reports covering Content moderation actions.
`

func TestParseBill(t *testing.T) {
	bill, err := Parse(sampleBill)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if bill.Title != "Digital Trust and Safety Act" {
		t.Errorf("title = %q", bill.Title)
	}

	if len(bill.Definitions) != 3 {
		t.Fatalf("expected 3 definitions, got %d: %+v", len(bill.Definitions), bill.Definitions)
	}
	first := bill.Definitions[0]
	if first.ArtNum != "1.1" || first.Word != "User" {
		t.Errorf("first definition = %+v", first)
	}
	if !strings.HasPrefix(first.Content, "refers to any natural person") {
		t.Errorf("first definition content = %q", first.Content)
	}
	if bill.Definitions[2].Word != "Minor" {
		t.Errorf("third definition = %+v", bill.Definitions[2])
	}

	if len(bill.Articles) != 3 {
		t.Fatalf("expected 3 articles, got %d: %+v", len(bill.Articles), bill.Articles)
	}
	if bill.Articles[0].ArtNum != "Article 1" {
		t.Errorf("first article number = %q", bill.Articles[0].ArtNum)
	}
	if !strings.Contains(bill.Articles[0].Contents, "one million monthly active Users") {
		t.Errorf("first article contents = %q", bill.Articles[0].Contents)
	}
	if !strings.Contains(bill.Articles[1].Contents, "age assurance") {
		t.Errorf("second article contents = %q", bill.Articles[1].Contents)
	}
	// Article contents must not bleed into the following article.
	if strings.Contains(bill.Articles[1].Contents, "Transparency Reporting") {
		t.Errorf("second article contains third article text: %q", bill.Articles[1].Contents)
	}
}

func TestParseBillWithoutDefinitions(t *testing.T) {
	text := `Short Act

Article 1 — Everything
All provisions apply immediately.
`
	bill, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(bill.Definitions) != 0 {
		t.Errorf("expected no definitions, got %+v", bill.Definitions)
	}
	if len(bill.Articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(bill.Articles))
	}
}

func TestParseRejectsEmptyText(t *testing.T) {
	if _, err := Parse("   \n\n  "); err == nil {
		t.Fatal("expected error for blank input")
	}
}

func TestParseRejectsProseWithoutArticles(t *testing.T) {
	if _, err := Parse("Just a Title\n\nSome prose with no structure at all."); err == nil {
		t.Fatal("expected error for text without definitions or articles")
	}
}
