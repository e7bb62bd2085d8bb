package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpusFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesProducts(t *testing.T) {
	path := writeCorpusFile(t, `[
		{"pid":"p1","title":"Red Running Shoes","brand":"Acme","category":"Footwear",
		 "sub_category":"Running","seller":"ShoeMart",
		 "product_details":{"color":"red","material":"mesh"}},
		{"pid":"p2","title":"Blue Jacket","description":"warm winter jacket"}
	]`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c, 2)

	p1 := c["p1"]
	assert.Equal(t, "Red Running Shoes", p1.Title)
	assert.Equal(t, "Acme", p1.Brand)
	assert.Equal(t, "red", p1.Details["color"])

	p2 := c["p2"]
	assert.Equal(t, "warm winter jacket", p2.Description)
	assert.Nil(t, p2.Details)
}

func TestLoadAcceptsDetailsAsObjectList(t *testing.T) {
	path := writeCorpusFile(t, `[
		{"pid":"p1","title":"Shoes",
		 "product_details":[{"color":"red"},{"material":"mesh"}]}
	]`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "red", c["p1"].Details["color"])
	assert.Equal(t, "mesh", c["p1"].Details["material"])
}

func TestLoadSkipsEntriesWithoutPID(t *testing.T) {
	path := writeCorpusFile(t, `[
		{"pid":"","title":"orphan"},
		{"pid":"p1","title":"kept"}
	]`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, "kept", c["p1"].Title)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeCorpusFile(t, `{"not":"an array"}`)
	_, err := Load(path)
	assert.Error(t, err)
}
