package cache

import "fmt"

// Load builds a cache from a transcript source: a DuckDB database written by
// `vibe-recompose index`, or a GTF file (optionally gzipped).
func Load(path string) (*Cache, error) {
	c := New()

	if IsDuckDB(path) {
		loader, err := NewDuckDBLoader(path)
		if err != nil {
			return nil, err
		}
		defer loader.Close()

		if err := loader.LoadAll(c); err != nil {
			return nil, fmt.Errorf("load transcripts from %s: %w", path, err)
		}
		return c, nil
	}

	if err := NewGTFLoader(path).Load(c); err != nil {
		return nil, fmt.Errorf("load transcripts from %s: %w", path, err)
	}
	return c, nil
}
