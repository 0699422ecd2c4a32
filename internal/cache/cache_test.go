package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_OverlapsAny(t *testing.T) {
	c := New()
	c.AddTranscript(&Transcript{ID: "A", Chrom: "chr1", Start: 100, End: 200})
	c.AddTranscript(&Transcript{ID: "B", Chrom: "1", Start: 500, End: 600})

	assert.True(t, c.OverlapsAny("1", 150, 150))
	assert.True(t, c.OverlapsAny("chr1", 190, 210), "chr prefix optional")
	assert.True(t, c.OverlapsAny("1", 450, 500))
	assert.False(t, c.OverlapsAny("1", 201, 499))
	assert.False(t, c.OverlapsAny("2", 150, 150))
}

func TestCache_AddAfterQuery(t *testing.T) {
	c := New()
	c.AddTranscript(&Transcript{ID: "A", Chrom: "1", Start: 100, End: 200})
	assert.False(t, c.OverlapsAny("1", 300, 300))

	c.AddTranscript(&Transcript{ID: "B", Chrom: "1", Start: 250, End: 350})
	assert.True(t, c.OverlapsAny("1", 300, 300), "tree rebuilt after insert")
	assert.Len(t, c.FindTranscripts("1", 300), 1)
}

func TestCache_Lookups(t *testing.T) {
	c := New()
	c.AddTranscript(&Transcript{ID: "A", Chrom: "2", Start: 1, End: 10})
	c.AddTranscript(&Transcript{ID: "B", Chrom: "chr1", Start: 1, End: 10})

	assert.Equal(t, 2, c.TranscriptCount())
	assert.Equal(t, []string{"1", "2"}, c.Chromosomes())
	assert.Equal(t, "B", c.GetTranscript("B").ID)
	assert.Nil(t, c.GetTranscript("C"))
	assert.Len(t, c.FindTranscriptsByChrom("chr2"), 1)
}
