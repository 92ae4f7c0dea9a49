package searchindex

// Record is one indexed chunk.
type Record struct {
	ID            string    // UUID, index key
	Title         string    // Document title, suffixed with the part number for multi-chunk documents
	Content       string    // Chunk text
	ContentVector []float32 // Embedding of Content
	Filepath      string    // Source file name
	MetaJSON      string    // Serialized metadata.Meta
}

// Result reports the outcome of writing one Record.
type Result struct {
	ID        string
	Succeeded bool
	Reason    string // Set when Succeeded is false
}

// Query describes a similarity search.
type Query struct {
	Vector []float32 // Required
	Text   string    // Optional lexical filter over content
	Top    int       // Maximum hits, DefaultTop when zero
}

// DefaultTop is the number of hits returned when Query.Top is unset.
const DefaultTop = 5

// Hit is one search result ordered by Score descending.
type Hit struct {
	ID       string
	Score    float64
	Title    string
	Content  string
	Filepath string
	MetaJSON string
}

// Stats describes an index.
type Stats struct {
	Name        string
	RecordCount uint64
}
