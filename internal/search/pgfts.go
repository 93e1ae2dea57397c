package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across article_entries and documents
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultArticle {
		artVector := "to_tsvector('english', a.belongs_to || ' ' || a.art_num || ' ' || a.contents || ' ' || COALESCE(a.word, ''))"
		artWhere := artVector + " @@ " + tsQuery
		if q.FilterBelongsTo != "" {
			artWhere += fmt.Sprintf(" AND a.belongs_to = $%d", argN)
			args = append(args, q.FilterBelongsTo)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'article'::text AS type, a.ent_id::text AS id,
				COALESCE(NULLIF(a.word, ''), a.art_num) AS title,
				ts_headline('english', a.contents, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				a.belongs_to, ''::text AS project_id, a.entry_type,
				ts_rank(%s, %s) AS rank
			FROM article_entries a
			WHERE %s`, tsQuery, artVector, tsQuery, artWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultDocument {
		docVector := "to_tsvector('english', d.title)"
		docWhere := docVector + " @@ " + tsQuery
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'document'::text AS type, d.id,
				d.title,
				ts_headline('english', d.title, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS belongs_to, d.project_id, d.doc_type AS entry_type,
				ts_rank(%s, %s) AS rank
			FROM documents d
			WHERE %s`, tsQuery, docVector, tsQuery, docWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, belongs_to, project_id, entry_type
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.BelongsTo, &r.ProjectID, &r.EntryType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ArticleRecord, []DocumentRecord, error) {
	artRows, err := p.db.QueryContext(ctx, `
		SELECT ent_id::text, art_num, entry_type, belongs_to, contents, COALESCE(word, '')
		FROM article_entries
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load articles: %w", err)
	}
	defer artRows.Close()

	articles := make([]ArticleRecord, 0)
	for artRows.Next() {
		var a ArticleRecord
		if err := artRows.Scan(&a.ID, &a.ArtNum, &a.EntryType, &a.BelongsTo, &a.Contents, &a.Word); err != nil {
			return nil, nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := artRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate articles: %w", err)
	}

	docRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, project_id, doc_type, status
		FROM documents
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()

	documents := make([]DocumentRecord, 0)
	for docRows.Next() {
		var d DocumentRecord
		if err := docRows.Scan(&d.ID, &d.Title, &d.ProjectID, &d.DocType, &d.Status); err != nil {
			return nil, nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate documents: %w", err)
	}

	return articles, documents, nil
}
