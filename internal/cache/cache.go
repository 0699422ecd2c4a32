package cache

import (
	"sort"
	"sync"
)

// Cache holds transcripts by chromosome and answers the gene-overlap and
// codon-boundary queries used to build recomposition windows.
type Cache struct {
	transcripts map[string][]*Transcript

	mu    sync.Mutex
	trees map[string]*IntervalTree
}

// New creates a new empty cache.
func New() *Cache {
	return &Cache{
		transcripts: make(map[string][]*Transcript),
		trees:       make(map[string]*IntervalTree),
	}
}

// AddTranscript adds a transcript to the cache.
func (c *Cache) AddTranscript(t *Transcript) {
	chrom := normalizeChrom(t.Chrom)
	c.transcripts[chrom] = append(c.transcripts[chrom], t)

	c.mu.Lock()
	delete(c.trees, chrom)
	c.mu.Unlock()
}

// tree returns the interval tree for chrom, building it on first use.
func (c *Cache) tree(chrom string) *IntervalTree {
	chrom = normalizeChrom(chrom)

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.trees[chrom]; ok {
		return t
	}
	t := BuildIntervalTree(c.transcripts[chrom])
	c.trees[chrom] = t
	return t
}

// FindTranscripts returns all transcripts that overlap a given genomic position.
func (c *Cache) FindTranscripts(chrom string, pos int64) []*Transcript {
	return c.tree(chrom).FindOverlaps(pos)
}

// OverlapsAny reports whether [start, end] overlaps any transcript on chrom.
// Chromosome names match with or without the "chr" prefix.
func (c *Cache) OverlapsAny(chrom string, start, end int64) bool {
	return c.tree(chrom).Overlaps(start, end)
}

// GetTranscript returns a specific transcript by ID, or nil if not found.
func (c *Cache) GetTranscript(id string) *Transcript {
	for _, transcripts := range c.transcripts {
		for _, t := range transcripts {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// TranscriptCount returns the total number of transcripts in the cache.
func (c *Cache) TranscriptCount() int {
	count := 0
	for _, transcripts := range c.transcripts {
		count += len(transcripts)
	}
	return count
}

// Chromosomes returns a sorted list of chromosomes in the cache.
func (c *Cache) Chromosomes() []string {
	chroms := make([]string, 0, len(c.transcripts))
	for chrom := range c.transcripts {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// FindTranscriptsByChrom returns all transcripts for a chromosome.
func (c *Cache) FindTranscriptsByChrom(chrom string) []*Transcript {
	return c.transcripts[normalizeChrom(chrom)]
}
