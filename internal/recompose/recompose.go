// Package recompose rebuilds multi-nucleotide variants from runs of phased
// single-nucleotide calls in a coordinate-sorted VCF stream.
//
// Positions are grouped into windows bounded by codon ranges of the
// transcripts they overlap (PositionBuffer). Each completed window is reduced
// to per-haplotype allele index blocks (PositionSet, AlleleIndexBlock), the
// blocks are materialized into REF/ALT strings against the reference genome
// (VariantGenerator), and the recomposed records are interleaved with the
// original records in position order (Processor).
package recompose

// ReferenceSequence returns reference bases for a 1-based region. The result
// may be shorter than length when the region runs past the chromosome end.
type ReferenceSequence interface {
	Substring(chrom string, start int64, length int) (string, error)
}

// GeneIndex reports whether a region overlaps any annotated gene or transcript.
type GeneIndex interface {
	OverlapsAny(chrom string, start, end int64) bool
}

// BoundaryProvider returns the rightmost coordinate up to which a position may
// still be merged with later positions, or -1 when it lies in no coding block.
type BoundaryProvider interface {
	BoundaryFor(chrom string, pos int64) int64
}
