// Package search provides the read-only lookup backends the retrieval stage
// queries: a historical-ticket similarity index and a table-schema index.
// Scoring is lexical token overlap, which keeps local runs deterministic;
// a vector backend slots in behind the same interfaces.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// TicketSearcher finds historical tickets similar to a query.
type TicketSearcher interface {
	Search(ctx context.Context, query string, k int) ([]ticket.SimilarTicket, error)
}

// SchemaSearcher finds table schemas relevant to a query. tableFilter, when
// non-empty, restricts results to tables whose name contains the filter.
type SchemaSearcher interface {
	SearchSchemas(ctx context.Context, query string, k int, tableFilter string) ([]ticket.SchemaMatch, error)
}

// TicketIndex is an in-memory TicketSearcher over a fixed corpus.
type TicketIndex struct {
	entries []CorpusTicket
}

// CorpusTicket is one historical ticket in the index.
type CorpusTicket struct {
	ID      string `yaml:"id" json:"id"`
	Content string `yaml:"content" json:"content"`
}

func NewTicketIndex(entries []CorpusTicket) *TicketIndex {
	return &TicketIndex{entries: entries}
}

func (ix *TicketIndex) Search(ctx context.Context, query string, k int) ([]ticket.SimilarTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}
	q := tokenize(query)
	scored := make([]ticket.SimilarTicket, 0, len(ix.entries))
	for _, e := range ix.entries {
		s := overlap(q, tokenize(e.Content))
		if s <= 0 {
			continue
		}
		scored = append(scored, ticket.SimilarTicket{ID: e.ID, Content: e.Content, Score: s})
	}
	// Stable order: score descending, id ascending on ties.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// TableSchema is one entry in the schema index.
type TableSchema struct {
	TableName     string   `yaml:"table_name" json:"table_name"`
	Description   string   `yaml:"description" json:"description"`
	Columns       []string `yaml:"columns" json:"columns"`
	BusinessRules []string `yaml:"business_rules,omitempty" json:"business_rules,omitempty"`
	Relationships []string `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// SchemaIndex is an in-memory SchemaSearcher.
type SchemaIndex struct {
	schemas []TableSchema
}

func NewSchemaIndex(schemas []TableSchema) *SchemaIndex {
	return &SchemaIndex{schemas: schemas}
}

func (ix *SchemaIndex) SearchSchemas(ctx context.Context, query string, k int, tableFilter string) ([]ticket.SchemaMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	q := tokenize(query)
	filter := strings.ToLower(strings.TrimSpace(tableFilter))
	matches := make([]ticket.SchemaMatch, 0, len(ix.schemas))
	for _, sc := range ix.schemas {
		if filter != "" && !strings.Contains(strings.ToLower(sc.TableName), filter) {
			continue
		}
		text := sc.TableName + " " + sc.Description + " " + strings.Join(sc.Columns, " ")
		s := overlap(q, tokenize(text))
		if filter != "" && s <= 0 {
			s = 0.1 // filter hit with no lexical overlap still counts
		}
		if s <= 0 {
			continue
		}
		matches = append(matches, ticket.SchemaMatch{
			TableName:     sc.TableName,
			Description:   sc.Description,
			Columns:       sc.Columns,
			BusinessRules: sc.BusinessRules,
			Relationships: sc.Relationships,
			Relevance:     s,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Relevance != matches[j].Relevance {
			return matches[i].Relevance > matches[j].Relevance
		}
		return matches[i].TableName < matches[j].TableName
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func tokenize(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(tok) < 3 {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// overlap is |q ∩ d| / |q|, the fraction of query tokens found in the doc.
func overlap(q, d map[string]struct{}) float64 {
	if len(q) == 0 {
		return 0
	}
	n := 0
	for t := range q {
		if _, ok := d[t]; ok {
			n++
		}
	}
	return float64(n) / float64(len(q))
}
