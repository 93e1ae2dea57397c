package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultArticle  ResultType = "article"
	ResultDocument ResultType = "document"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	BelongsTo string     `json:"belongsTo,omitempty"`
	ProjectID string     `json:"projectId,omitempty"`
	EntryType string     `json:"entryType,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterBelongsTo string     // restrict articles to one regulation
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ArticleRecord is the data we index for a law-library entry.
type ArticleRecord struct {
	ID        string `json:"id"`
	ArtNum    string `json:"artNum"`
	EntryType string `json:"entryType"`
	BelongsTo string `json:"belongsTo"`
	Contents  string `json:"contents"`
	Word      string `json:"word,omitempty"`
}

// DocumentRecord is the data we index for a project document.
type DocumentRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ProjectID string `json:"projectId"`
	DocType   string `json:"docType"`
	Status    string `json:"status"`
}
