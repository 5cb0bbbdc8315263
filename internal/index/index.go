package index

// DocumentIndex defines the index operations used by the API, the MCP server
// and the CLI. Consumers depend on this interface rather than *DB.
type DocumentIndex interface {
	UpsertDocument(row DocumentRow, body string, links []Link) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(path string) (*DocumentRow, error)
	ListDocuments(f Filter) ([]DocumentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]Link, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)
