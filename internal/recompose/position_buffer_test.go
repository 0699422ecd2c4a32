package recompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRecomposable(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"GT only", "chr1 10 . A G . PASS . GT 0|1", true},
		{"GT first", "chr1 10 . A G . PASS . GT:GQ 0|1:20", true},
		{"multi-allelic with one SNV", "chr1 10 . A AT,G . PASS . GT 0|2", true},
		{"no SNV alt", "chr1 10 . A AT . PASS . GT 0|1", false},
		{"multi-base ref", "chr1 10 . AT GC . PASS . GT 0|1", false},
		{"non-ref only", "chr1 10 . A <NON_REF> . PASS . GT 0|0", false},
		{"sites only", "chr1 10 . A G . PASS .", false},
		{"format AA", "chr1 10 . A G . PASS . AA 0|1", false},
		{"format AA:BB", "chr1 10 . A G . PASS . AA:BB 0|1", false},
		{"format GTO:BB", "chr1 10 . A G . PASS . GTO:BB 0|1", false},
		{"format BB:GT", "chr1 10 . A G . PASS . BB:GT 1:0|1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecomposable(position(t, tt.line)))
		})
	}
}

func TestPositionBuffer_Windows(t *testing.T) {
	b := NewPositionBuffer(allGenes, boundaryMap{10: 12, 11: 12, 20: 22})

	assert.Zero(t, b.Add(position(t, "chr1 10 . A G . PASS . GT 0|1")).Len())
	assert.Zero(t, b.Add(position(t, "chr1 11 . C T . PASS . GT 0|1")).Len())
	assert.Zero(t, b.Add(position(t, "chr1 12 . C CT . PASS . GT 0|1")).Len())

	w := b.Add(position(t, "chr1 20 . A G . PASS . GT 0|1"))
	require.Equal(t, 3, w.Len())
	assert.Equal(t, []bool{true, true, false}, w.Recomposable)
	assert.Equal(t, []int64{12, 12}, w.FunctionBlockRanges)

	positions, indexes := w.RecomposablePositions()
	assert.Len(t, positions, 2)
	assert.Equal(t, []int{0, 1}, indexes)

	last := b.Flush()
	require.Equal(t, 1, last.Len())
	assert.Equal(t, int64(20), last.Positions[0].Start)
	assert.Zero(t, b.Flush().Len())
}

func TestPositionBuffer_RangesNeverDecrease(t *testing.T) {
	b := NewPositionBuffer(allGenes, boundaryMap{10: 15, 11: 12, 14: 16})
	b.Add(position(t, "chr1 10 . A G . PASS . GT 0|1"))
	b.Add(position(t, "chr1 11 . C T . PASS . GT 0|1"))
	b.Add(position(t, "chr1 14 . C T . PASS . GT 0|1"))

	w := b.Flush()
	require.Equal(t, 3, w.Len())
	assert.Equal(t, []int64{15, 15, 16}, w.FunctionBlockRanges)
}

func TestPositionBuffer_StartsNewWindow(t *testing.T) {
	tests := []struct {
		name   string
		genes  GeneIndex
		first  string
		second string
	}{
		{
			name:   "chromosome change",
			genes:  allGenes,
			first:  "chr1 10 . A G . PASS . GT 0|1",
			second: "chr2 11 . C T . PASS . GT 0|1",
		},
		{
			name:   "outside the range",
			genes:  allGenes,
			first:  "chr1 10 . A G . PASS . GT 0|1",
			second: "chr1 13 . C T . PASS . GT 0|1",
		},
		{
			name:   "no gene overlap",
			genes:  geneIndexFunc(func(_ string, start, _ int64) bool { return start != 11 }),
			first:  "chr1 10 . A G . PASS . GT 0|1",
			second: "chr1 11 . C T . PASS . GT 0|1",
		},
		{
			name:   "window without recomposable positions",
			genes:  allGenes,
			first:  "chr1 10 . A AT . PASS . GT 0|1",
			second: "chr1 11 . C T . PASS . GT 0|1",
		},
		{
			name:   "position outside coding blocks",
			genes:  allGenes,
			first:  "chr1 9 . A G . PASS . GT 0|1",
			second: "chr1 11 . C T . PASS . GT 0|1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewPositionBuffer(tt.genes, boundaryMap{10: 12, 11: 12})
			assert.Zero(t, b.Add(position(t, tt.first)).Len())

			w := b.Add(position(t, tt.second))
			require.Equal(t, 1, w.Len())
			assert.Equal(t, tt.first, lines(w.Positions)[0])
			assert.Equal(t, 1, b.Flush().Len())
		})
	}
}
