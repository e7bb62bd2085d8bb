package corpus

import (
	"sort"
	"strings"
)

// Canonical field names. FieldDetails is a synthetic field holding the
// flattened product-details map.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldBrand       = "brand"
	FieldCategory    = "category"
	FieldSubCategory = "sub_category"
	FieldDetails     = "details"
	FieldSeller      = "seller"
)

// fieldOrder is the canonical order in which fields are concatenated during
// indexing. Position counters are shared across fields, so this order fixes
// the positional layout of every document.
var fieldOrder = []string{
	FieldTitle,
	FieldDescription,
	FieldBrand,
	FieldCategory,
	FieldSubCategory,
	FieldDetails,
	FieldSeller,
}

// fieldWeights is the static relevance weight per field. Fields absent from
// this table carry weight 0 and are excluded from indexing entirely, so an
// unknown field can never inflate relevance.
var fieldWeights = map[string]float64{
	FieldTitle:       0.9,
	FieldBrand:       0.25,
	FieldCategory:    0.25,
	FieldSubCategory: 0.125,
	FieldDescription: 0.125,
	FieldDetails:     0.25,
	FieldSeller:      0.1,
}

// FieldOrder returns the canonical indexing order of field names.
func FieldOrder() []string {
	return fieldOrder
}

// FieldWeight returns the static relevance weight for a field name, or 0 for
// unknown fields.
func FieldWeight(name string) float64 {
	return fieldWeights[name]
}

// Fields maps a document to its named text fields, including only fields with
// non-empty values. The details map is flattened into one synthetic field by
// joining all non-empty values with whitespace, in sorted key order so the
// output is deterministic.
func Fields(doc Document) map[string]string {
	out := make(map[string]string, len(fieldOrder))
	put := func(name, value string) {
		if value != "" {
			out[name] = value
		}
	}
	put(FieldTitle, doc.Title)
	put(FieldDescription, doc.Description)
	put(FieldBrand, doc.Brand)
	put(FieldCategory, doc.Category)
	put(FieldSubCategory, doc.SubCategory)
	put(FieldSeller, doc.Seller)

	if len(doc.Details) > 0 {
		keys := make([]string, 0, len(doc.Details))
		for k := range doc.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if v := doc.Details[k]; v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			out[FieldDetails] = strings.Join(parts, " ")
		}
	}
	return out
}
