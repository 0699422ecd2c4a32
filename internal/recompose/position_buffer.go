package recompose

import (
	"strings"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// Window is a run of consecutive positions that may be recomposed together.
// FunctionBlockRanges holds one entry per recomposable position, in order,
// and never decreases.
type Window struct {
	Positions           []*vcf.Position
	Recomposable        []bool
	FunctionBlockRanges []int64
}

// Len returns the number of positions in the window.
func (w Window) Len() int {
	return len(w.Positions)
}

// RecomposablePositions returns the recomposable positions and their indexes in the window.
func (w Window) RecomposablePositions() ([]*vcf.Position, []int) {
	var positions []*vcf.Position
	var indexes []int
	for i, ok := range w.Recomposable {
		if ok {
			positions = append(positions, w.Positions[i])
			indexes = append(indexes, i)
		}
	}
	return positions, indexes
}

// PositionBuffer accumulates positions into windows in a single forward pass.
type PositionBuffer struct {
	genes      GeneIndex
	boundaries BoundaryProvider
	window     Window
}

// NewPositionBuffer creates a buffer using genes to test for annotatable
// regions and boundaries to find function-block ranges.
func NewPositionBuffer(genes GeneIndex, boundaries BoundaryProvider) *PositionBuffer {
	return &PositionBuffer{genes: genes, boundaries: boundaries}
}

// Add appends pos to the current window when it can extend it. Otherwise the
// current window is returned and pos starts a new one. An empty window means
// the buffer is still accumulating.
func (b *PositionBuffer) Add(pos *vcf.Position) Window {
	if b.withinRange(pos) {
		b.append(pos)
		return Window{}
	}
	done := b.take()
	b.append(pos)
	return done
}

// Flush returns the current window and leaves the buffer empty.
func (b *PositionBuffer) Flush() Window {
	return b.take()
}

// take hands the window to the caller; later appends never touch it.
func (b *PositionBuffer) take() Window {
	w := b.window
	b.window = Window{}
	return w
}

func (b *PositionBuffer) withinRange(pos *vcf.Position) bool {
	w := b.window
	n := len(w.FunctionBlockRanges)
	if len(w.Positions) == 0 || n == 0 || w.Positions[0].Chrom != pos.Chrom {
		return false
	}
	return pos.Start <= w.FunctionBlockRanges[n-1] && b.genes.OverlapsAny(pos.Chrom, pos.Start, pos.End())
}

func (b *PositionBuffer) append(pos *vcf.Position) {
	recomposable := IsRecomposable(pos)
	b.window.Positions = append(b.window.Positions, pos)
	b.window.Recomposable = append(b.window.Recomposable, recomposable)
	if !recomposable {
		return
	}

	r := b.boundaries.BoundaryFor(pos.Chrom, pos.Start)
	if n := len(b.window.FunctionBlockRanges); n > 0 && b.window.FunctionBlockRanges[n-1] > r {
		r = b.window.FunctionBlockRanges[n-1]
	}
	b.window.FunctionBlockRanges = append(b.window.FunctionBlockRanges, r)
}

// IsRecomposable reports whether pos is a single-base site with at least one
// SNV alternate allele and a FORMAT column led by GT.
func IsRecomposable(pos *vcf.Position) bool {
	format := pos.Format()
	if format != genotypeTag && !strings.HasPrefix(format, genotypeTag+":") {
		return false
	}
	if len(pos.Ref) != 1 {
		return false
	}
	for _, alt := range pos.Alts {
		if vcf.IsSNVAllele(pos.Ref, alt) {
			return true
		}
	}
	return false
}
