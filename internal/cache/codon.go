package cache

import "sort"

// CodingBlock is a contiguous coding interval of a transcript (exon ∩ CDS).
// StartPhase is the codon position (0, 1 or 2) of Start when codons are laid
// out in ascending genomic order.
type CodingBlock struct {
	Start      int64
	End        int64
	StartPhase int
}

// CodingBlocks returns the coding blocks of t in ascending genomic order.
// Phases start from the frame of the 5'-most coding exon, so a CDS with an
// incomplete first codon keeps its offset. On the reverse strand the phases
// are shifted so that codon boundaries computed left to right coincide with
// the transcript's codons.
func (t *Transcript) CodingBlocks() []CodingBlock {
	if !t.IsProteinCoding() {
		return nil
	}

	var blocks []CodingBlock
	frames := make(map[int64]int)
	for i := range t.Exons {
		e := &t.Exons[i]
		start, end := max(e.Start, t.CDSStart), min(e.End, t.CDSEnd)
		if e.IsCoding() {
			start, end = e.CDSStart, e.CDSEnd
		}
		if start > end {
			continue
		}
		blocks = append(blocks, CodingBlock{Start: start, End: end})
		frames[start] = e.Frame
	}
	if len(blocks) == 0 {
		return nil
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	var total int64
	for _, b := range blocks {
		total += b.End - b.Start + 1
	}

	first := blocks[0]
	if t.IsReverseStrand() {
		first = blocks[len(blocks)-1]
	}
	frame := frames[first.Start]
	if frame < 0 || frame > 2 {
		frame = 0
	}
	// Codon position of the first coding base in transcription order.
	firstCodonPos := int64((3 - frame) % 3)

	phase := int(firstCodonPos)
	if t.IsReverseStrand() {
		phase = int(2 - (total-1+firstCodonPos)%3)
	}
	for i := range blocks {
		blocks[i].StartPhase = phase
		phase = int((blocks[i].End-blocks[i].Start+1+int64(phase)) % 3)
	}
	return blocks
}

// Contains reports whether pos lies within the block.
func (b CodingBlock) Contains(pos int64) bool {
	return pos >= b.Start && pos <= b.End
}

// CodonRange returns the last position of the codon containing pos, clipped
// to the block end.
func (b CodingBlock) CodonRange(pos int64) int64 {
	phase := (pos - b.Start + int64(b.StartPhase)) % 3
	return min(pos+2-phase, b.End)
}

// BoundaryFor returns the furthest codon end over all coding blocks that
// contain pos, or -1 when pos is not coding in any transcript.
func (c *Cache) BoundaryFor(chrom string, pos int64) int64 {
	boundary := int64(-1)
	for _, t := range c.FindTranscripts(chrom, pos) {
		if !t.ContainsCDS(pos) {
			continue
		}
		for _, b := range t.CodingBlocks() {
			if b.Contains(pos) {
				boundary = max(boundary, b.CodonRange(pos))
			}
		}
	}
	return boundary
}
