package recompose

import (
	"fmt"
	"strconv"
	"strings"
)

// SampleAllele identifies one haplotype of one sample.
type SampleAllele struct {
	Sample    int // Sample column index (0-based)
	Haplotype int // Haplotype index within the genotype (0-based)
}

// AlleleIndexBlock is the allele index sequence of one haplotype across a
// contiguous run of window positions, starting at PositionIndex.
//
// The indexes are held in an encoded string so the type is comparable and can
// key a map: two blocks are equal only if the start index and every allele
// index match.
type AlleleIndexBlock struct {
	PositionIndex int
	indexes       string
}

// NewAlleleIndexBlock creates a block starting at positionIndex.
func NewAlleleIndexBlock(positionIndex int, alleleIndexes []int) AlleleIndexBlock {
	parts := make([]string, len(alleleIndexes))
	for i, idx := range alleleIndexes {
		parts[i] = strconv.Itoa(idx)
	}
	return AlleleIndexBlock{PositionIndex: positionIndex, indexes: strings.Join(parts, ",")}
}

// AlleleIndexes returns the per-position allele indexes of the block.
func (b AlleleIndexBlock) AlleleIndexes() []int {
	if b.indexes == "" {
		return nil
	}
	parts := strings.Split(b.indexes, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i], _ = strconv.Atoi(p)
	}
	return out
}

// Len returns the number of positions spanned by the block.
func (b AlleleIndexBlock) Len() int {
	if b.indexes == "" {
		return 0
	}
	return strings.Count(b.indexes, ",") + 1
}

// LastPositionIndex returns the window index of the block's last position.
func (b AlleleIndexBlock) LastPositionIndex() int {
	return b.PositionIndex + b.Len() - 1
}

func (b AlleleIndexBlock) String() string {
	return fmt.Sprintf("%d:[%s]", b.PositionIndex, b.indexes)
}

// BlockSamples maps each distinct block to the sample haplotypes carrying it.
// Blocks are iterated in first-insertion order.
type BlockSamples struct {
	blocks  []AlleleIndexBlock
	samples map[AlleleIndexBlock][]SampleAllele
}

func newBlockSamples() *BlockSamples {
	return &BlockSamples{samples: make(map[AlleleIndexBlock][]SampleAllele)}
}

func (m *BlockSamples) add(b AlleleIndexBlock, alleles []SampleAllele) {
	existing, ok := m.samples[b]
	if !ok {
		m.blocks = append(m.blocks, b)
	}
	m.samples[b] = append(existing, alleles...)
}

// Blocks returns the distinct blocks.
func (m *BlockSamples) Blocks() []AlleleIndexBlock {
	return m.blocks
}

// SampleAlleles returns the sample haplotypes carrying b.
func (m *BlockSamples) SampleAlleles(b AlleleIndexBlock) []SampleAllele {
	return m.samples[b]
}

// Len returns the number of distinct blocks.
func (m *BlockSamples) Len() int {
	return len(m.blocks)
}

// GenotypeRun is the genotype sequence of one sample across a phase-set run.
type GenotypeRun struct {
	Genotypes  string // per-position GT values joined by ';'
	StartIndex int    // window index of the run's first position
}

// SampleGroup is a genotype run shared by one or more samples.
type SampleGroup struct {
	Run     GenotypeRun
	Samples []int
}

// BuildAlleleIndexBlocks splits every genotype run into per-haplotype allele
// index blocks. unsupported holds, per window position, the 1-based allele
// indexes that may not be recomposed. starts and ranges are the window
// positions' starts and function-block ranges.
func BuildAlleleIndexBlocks(groups []SampleGroup, unsupported []map[string]bool, starts, ranges []int64) *BlockSamples {
	result := newBlockSamples()
	for _, g := range groups {
		genotypes := strings.Split(g.Run.Genotypes, ";")
		ploidy := maxPloidy(genotypes)

		var open *genotypeBlock
		closeBlock := func() {
			if open == nil {
				return
			}
			for _, sub := range open.split(starts, ranges) {
				sub.addTo(result, g.Samples)
			}
			open = nil
		}

		for i, gt := range genotypes {
			index := g.Run.StartIndex + i
			alleles := splitGenotype(gt)
			alleleIndexes, ok := parseAlleleIndexes(alleles, unsupported[index])

			if gt == "" || len(alleles) < ploidy || !ok || isUnphasedHeterozygote(gt) {
				closeBlock()
				continue
			}

			if open == nil {
				if isReference(alleleIndexes) {
					continue
				}
				open = newGenotypeBlock(index, len(alleleIndexes))
			}
			open.add(alleleIndexes)
		}
		closeBlock()
	}
	return result
}

// maxPloidy returns the largest allele count among the genotypes.
func maxPloidy(genotypes []string) int {
	ploidy := 0
	for _, gt := range genotypes {
		if gt == "" || gt == "." {
			continue
		}
		if n := len(splitGenotype(gt)); n > ploidy {
			ploidy = n
		}
	}
	return ploidy
}

func splitGenotype(gt string) []string {
	return strings.Split(strings.ReplaceAll(gt, "|", "/"), "/")
}

// parseAlleleIndexes converts GT allele strings to indexes. It fails for
// missing or malformed alleles and for alleles of unsupported types.
func parseAlleleIndexes(alleles []string, unsupported map[string]bool) ([]int, bool) {
	indexes := make([]int, len(alleles))
	for i, a := range alleles {
		if a == "." || unsupported[a] {
			return nil, false
		}
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return nil, false
		}
		indexes[i] = n
	}
	return indexes, true
}

func isReference(alleleIndexes []int) bool {
	for _, idx := range alleleIndexes {
		if idx != 0 {
			return false
		}
	}
	return true
}

// isUnphasedHeterozygote reports an unphased genotype carrying distinct alleles.
func isUnphasedHeterozygote(gt string) bool {
	alleles := strings.Split(gt, "/")
	if len(alleles) < 2 {
		return false
	}
	for _, a := range alleles[1:] {
		if a != alleles[0] {
			return true
		}
	}
	return false
}

// genotypeBlock is an open block: one allele index sequence per haplotype.
type genotypeBlock struct {
	posIndex   int
	haplotypes [][]int
}

func newGenotypeBlock(posIndex, ploidy int) *genotypeBlock {
	return &genotypeBlock{posIndex: posIndex, haplotypes: make([][]int, ploidy)}
}

func (b *genotypeBlock) add(alleleIndexes []int) {
	for h, idx := range alleleIndexes {
		b.haplotypes[h] = append(b.haplotypes[h], idx)
	}
}

func (b *genotypeBlock) length() int {
	if len(b.haplotypes) == 0 {
		return 0
	}
	return len(b.haplotypes[0])
}

// addTo records every multi-position haplotype of the block for the samples.
func (b *genotypeBlock) addTo(m *BlockSamples, samples []int) {
	for h, hap := range b.haplotypes {
		if len(hap) <= 1 {
			continue
		}
		alleles := make([]SampleAllele, len(samples))
		for i, s := range samples {
			alleles[i] = SampleAllele{Sample: s, Haplotype: h}
		}
		m.add(NewAlleleIndexBlock(b.posIndex, hap), alleles)
	}
}

// split cuts the block wherever every haplotype breaks: at leading and
// trailing reference alleles, and where a non-reference allele lies beyond
// the function-block range of the previous non-reference allele. Only pieces
// spanning more than one position are returned.
func (b *genotypeBlock) split(starts, ranges []int64) []*genotypeBlock {
	numBreaks := b.length() - 1
	if numBreaks <= 0 {
		return nil
	}

	final := make([]bool, numBreaks)
	for i := range final {
		final[i] = true
	}
	for _, hap := range b.haplotypes {
		for i, brk := range b.alleleBreaks(hap, starts, ranges) {
			if !brk {
				final[i] = false
			}
		}
	}

	var pieces []*genotypeBlock
	from := 0
	for i, brk := range final {
		if !brk {
			continue
		}
		if i > from {
			pieces = append(pieces, b.slice(from, i))
		}
		from = i + 1
	}
	if numBreaks > from {
		pieces = append(pieces, b.slice(from, numBreaks))
	}
	return pieces
}

// alleleBreaks marks, for one haplotype, the breaks between position i and i+1.
func (b *genotypeBlock) alleleBreaks(hap []int, starts, ranges []int64) []bool {
	numBreaks := len(hap) - 1
	breaks := make([]bool, numBreaks)
	lastNonRef := -1

	for i, allele := range hap {
		if allele == 0 {
			switch {
			case i == 0 || (breaks[i-1] && i < numBreaks):
				breaks[i] = true
			case i == numBreaks:
				breakWithTrailingRefs(i-1, breaks, hap)
			}
			continue
		}
		if i > 0 && lastNonRef != -1 && starts[b.posIndex+i] > ranges[lastNonRef] {
			breakWithTrailingRefs(i-1, breaks, hap)
		}
		lastNonRef = b.posIndex + i
	}
	return breaks
}

// breakWithTrailingRefs breaks at index and walks back over reference alleles
// that would otherwise trail the preceding piece.
func breakWithTrailingRefs(index int, breaks []bool, hap []int) {
	breaks[index] = true
	for i := index - 1; i >= 0; i-- {
		if breaks[i] || hap[i+1] != 0 {
			break
		}
		breaks[i] = true
	}
}

// slice returns positions from..to (inclusive) as a new block.
func (b *genotypeBlock) slice(from, to int) *genotypeBlock {
	sub := &genotypeBlock{posIndex: b.posIndex + from, haplotypes: make([][]int, len(b.haplotypes))}
	for h, hap := range b.haplotypes {
		sub.haplotypes[h] = append([]int(nil), hap[from:to+1]...)
	}
	return sub
}
