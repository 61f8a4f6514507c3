package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Corpus is the on-disk shape of the lookup data: historical tickets plus
// table schemas, loaded together from one YAML file.
type Corpus struct {
	Tickets []CorpusTicket `yaml:"tickets"`
	Schemas []TableSchema  `yaml:"schemas"`
}

// LoadCorpus reads a corpus file with strict field checking. Unknown keys
// are an error so typos don't silently drop data.
func LoadCorpus(path string) (Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var c Corpus
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Corpus{}, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	if len(c.Tickets) == 0 && len(c.Schemas) == 0 {
		return Corpus{}, fmt.Errorf("corpus %s is empty", path)
	}
	return c, nil
}

// DefaultCorpus is the bundled sample data used when no corpus file is
// configured: a small set of recurring incident shapes and the two tables
// the execution stage touches.
func DefaultCorpus() Corpus {
	return Corpus{
		Tickets: []CorpusTicket{
			{ID: "TICKET-1", Content: "Login authentication failure - users unable to access system"},
			{ID: "TICKET-2", Content: "Database connection timeout errors in production environment"},
			{ID: "TICKET-3", Content: "Payment gateway integration returning 500 errors"},
			{ID: "TICKET-4", Content: "Email notification service not sending confirmations"},
			{ID: "TICKET-5", Content: "API rate limiting causing client timeouts"},
			{ID: "TICKET-6", Content: "SSL certificate expired causing HTTPS errors"},
			{ID: "TICKET-7", Content: "Memory leak in application server causing crashes"},
			{ID: "TICKET-8", Content: "Broken image uploads in user profile section"},
			{ID: "TICKET-9", Content: "Search functionality returning incorrect results"},
			{ID: "TICKET-10", Content: "Mobile app crashes on iOS devices during startup"},
		},
		Schemas: []TableSchema{
			{
				TableName:   "tickets",
				Description: "Open and historical support tickets",
				Columns:     []string{"ticket_id", "description", "status", "assignee", "created_at"},
				BusinessRules: []string{
					"ticket_id is unique",
					"status is one of open, in_progress, resolved, closed",
				},
				Relationships: []string{"assignee references agents.agent_id"},
			},
			{
				TableName:   "agents",
				Description: "Support agents and their specialties",
				Columns:     []string{"agent_id", "name", "specialty", "active"},
				BusinessRules: []string{
					"agent_id is unique",
				},
			},
		},
	}
}
