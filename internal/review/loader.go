package review

import (
	"context"
	"log"
)

// Source fetches a document with its highlights from the backing store.
type Source interface {
	FetchDocument(ctx context.Context, projectID, documentID string) (Document, error)
}

// Loader resolves a document for viewing: live data when the source answers,
// the bundled sample otherwise. Substituting the fallback is an explicit
// policy here, not a side effect inside the fetch path.
type Loader struct {
	source   Source
	fallback func() Document
}

// NewLoader builds a loader around source. source may be nil (always offline).
func NewLoader(source Source) *Loader {
	return &Loader{source: source, fallback: SeedDocument}
}

// NewLoaderWithFallback uses fallback instead of the bundled sample. The
// function is re-evaluated on every offline load, so it can reflect state
// accumulated elsewhere, such as comments added to an offline thread store.
func NewLoaderWithFallback(source Source, fallback func() Document) *Loader {
	if fallback == nil {
		fallback = SeedDocument
	}
	return &Loader{source: source, fallback: fallback}
}

// Load fetches the document. On any source failure the fallback is returned
// with offline=true; Load itself never fails.
func (l *Loader) Load(ctx context.Context, projectID, documentID string) (Document, bool) {
	if l.source == nil {
		return l.fallback(), true
	}
	doc, err := l.source.FetchDocument(ctx, projectID, documentID)
	if err != nil {
		log.Printf("review: fetch document %s/%s failed, serving bundled data: %v", projectID, documentID, err)
		return l.fallback(), true
	}
	return doc, false
}
