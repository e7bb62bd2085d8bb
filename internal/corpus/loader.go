package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	pkgerrors "github.com/searchlab/prodsearch/pkg/errors"
)

// rawProduct mirrors one line/element of the product dump. Details values may
// be strings or nested arrays of single-entry objects depending on the export,
// so they are decoded loosely and stringified.
type rawProduct struct {
	PID         string          `json:"pid"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Seller      string          `json:"seller"`
	Details     json.RawMessage `json:"product_details"`
}

// Load reads a JSON corpus file (an array of product objects) and returns the
// in-memory Corpus keyed by pid. Entries without a pid are skipped.
func Load(path string) (Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading corpus file %s: %v", pkgerrors.ErrCorpusNotLoaded, path, err)
	}

	var raw []rawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing corpus file %s: %v", pkgerrors.ErrCorpusNotLoaded, path, err)
	}

	logger := slog.Default().With("component", "corpus-loader")
	c := make(Corpus, len(raw))
	skipped := 0
	for _, r := range raw {
		if r.PID == "" {
			skipped++
			continue
		}
		c[r.PID] = Document{
			PID:         r.PID,
			Title:       r.Title,
			Description: r.Description,
			Brand:       r.Brand,
			Category:    r.Category,
			SubCategory: r.SubCategory,
			Seller:      r.Seller,
			Details:     decodeDetails(r.Details),
		}
	}
	logger.Info("corpus loaded", "path", path, "documents", len(c), "skipped", skipped)
	return c, nil
}

// decodeDetails accepts either {"k":"v"} or [{"k":"v"}, ...] shapes and
// flattens them into a single map.
func decodeDetails(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var list []map[string]string
	if err := json.Unmarshal(raw, &list); err == nil {
		merged := make(map[string]string)
		for _, m := range list {
			for k, v := range m {
				merged[k] = v
			}
		}
		if len(merged) > 0 {
			return merged
		}
	}
	return nil
}
