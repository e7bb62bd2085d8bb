// Package corpus defines the immutable product document model, the static
// field-weight table used by ranking, and the JSON corpus loader.
package corpus

// Document is a single product record. Documents are owned by the Corpus and
// never mutated after load; any field except PID may be empty.
type Document struct {
	PID         string            `json:"pid"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Brand       string            `json:"brand"`
	Category    string            `json:"category"`
	SubCategory string            `json:"sub_category"`
	Seller      string            `json:"seller"`
	Details     map[string]string `json:"product_details"`
}

// Corpus maps document id to Document. It is built once at startup and is
// read-only for the lifetime of the process.
type Corpus map[string]Document
