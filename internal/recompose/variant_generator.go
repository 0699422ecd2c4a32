package recompose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// Values written into recomposed records.
const (
	RecomposedInfo  = "RECOMPOSED"
	FailedFilterTag = "FilteredVariantsRecomposed"
	passFilter      = "PASS"
	recomposedID    = vcf.Missing
	missingGenotype = vcf.Missing
	haplotypeJoiner = "|"
	formatKeyJoiner = ":"
	altAlleleJoiner = ","
)

// VariantGenerator turns allele index blocks into recomposed VCF records.
type VariantGenerator struct {
	reference ReferenceSequence
	logger    *zap.Logger
}

// NewVariantGenerator creates a generator reading bases from reference.
func NewVariantGenerator(reference ReferenceSequence) *VariantGenerator {
	return &VariantGenerator{reference: reference, logger: zap.NewNop()}
}

// SetLogger sets the logger used for skipped candidate merges.
func (g *VariantGenerator) SetLogger(l *zap.Logger) {
	g.logger = l
}

// Recomposition is the outcome for one window.
type Recomposition struct {
	// Records are the recomposed records ordered by start, then REF.
	Records []*vcf.Position
	// Subsumed[i] is true when every non-reference call at position i of the
	// PositionSet is expressed by Records.
	Subsumed []bool
	// Skipped counts candidate blocks that could not be materialized.
	Skipped int
}

// call is one non-reference haplotype call of a sample at a window position.
type call struct {
	position  int
	sample    int
	haplotype int
}

// haplotypeAllele is one block materialized against the reference.
type haplotypeAllele struct {
	start  int64
	ref    string
	alt    string
	nonRef []int // window indexes carrying a non-reference allele
}

// site gathers every block resolving to the same start and REF.
type site struct {
	start    int64
	ref      string
	first    int
	last     int
	alts     map[string][]SampleAllele
	altOrder []string
	nonRef   map[int]bool
	calls    []call
}

type siteKey struct {
	start int64
	ref   string
}

// Recompose materializes every block of set. Blocks sharing start and REF
// are merged into one multi-allelic record.
func (g *VariantGenerator) Recompose(set *PositionSet) (*Recomposition, error) {
	alleles := set.AlleleSet
	n := len(alleles.Starts)
	regionStart := alleles.Starts[0]
	regionLength := int(alleles.Starts[n-1]-regionStart) + len(alleles.Alleles[n-1][0])

	region, err := g.reference.Substring(alleles.Chrom, regionStart, regionLength)
	if err != nil {
		return nil, fmt.Errorf("read reference %s:%d-%d: %w", alleles.Chrom, regionStart,
			regionStart+int64(regionLength)-1, err)
	}
	region = strings.ToUpper(region)

	result := &Recomposition{Subsumed: make([]bool, n)}
	sites := make(map[siteKey]*site)
	var keys []siteKey

	for _, block := range set.Blocks.Blocks() {
		hap, err := materialize(block, alleles, region, regionStart)
		if err != nil {
			result.Skipped++
			g.logger.Warn("skipping candidate merge",
				zap.String("chrom", alleles.Chrom),
				zap.Int64("pos", alleles.Starts[block.PositionIndex]),
				zap.Stringer("block", block),
				zap.Error(err))
			continue
		}

		key := siteKey{start: hap.start, ref: hap.ref}
		st, ok := sites[key]
		if !ok {
			st = &site{
				start:  hap.start,
				ref:    hap.ref,
				first:  block.PositionIndex,
				last:   block.LastPositionIndex(),
				alts:   make(map[string][]SampleAllele),
				nonRef: make(map[int]bool),
			}
			sites[key] = st
			keys = append(keys, key)
		}
		st.add(hap, set.Blocks.SampleAlleles(block))
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].start != keys[j].start {
			return keys[i].start < keys[j].start
		}
		return keys[i].ref < keys[j].ref
	})

	var consumed []call
	for _, key := range keys {
		st := sites[key]
		rec, err := st.record(set)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			g.logger.Debug("dropping degenerate merge",
				zap.String("chrom", alleles.Chrom),
				zap.Int64("pos", st.start),
				zap.String("ref", st.ref))
			continue
		}
		result.Records = append(result.Records, rec)
		consumed = append(consumed, st.calls...)
	}

	markSubsumed(set, consumed, result.Subsumed)
	return result, nil
}

// materialize builds the REF and ALT strings of a block. REF is the reference
// span from the block's first position through the last position's REF
// allele; ALT splices each non-reference allele into it.
func materialize(block AlleleIndexBlock, alleles AlleleSet, region string, regionStart int64) (*haplotypeAllele, error) {
	first, last := block.PositionIndex, block.LastPositionIndex()
	blockStart := alleles.Starts[first]
	refLength := int(alleles.Starts[last]-blockStart) + len(alleles.Alleles[last][0])
	offset := int(blockStart - regionStart)
	if offset+refLength > len(region) {
		return nil, fmt.Errorf("reference ends before %s:%d", alleles.Chrom, blockStart+int64(refLength)-1)
	}
	ref := region[offset : offset+refLength]

	hap := &haplotypeAllele{start: blockStart, ref: ref}
	var alt strings.Builder
	cursor := 0
	prevAlt := ""
	for i, index := range block.AlleleIndexes() {
		if index == 0 {
			continue
		}
		pos := first + i
		if index >= len(alleles.Alleles[pos]) {
			return nil, fmt.Errorf("allele index %d out of range at %s:%d", index, alleles.Chrom, alleles.Starts[pos])
		}
		onRef := int(alleles.Starts[pos] - blockStart)
		if onRef < cursor {
			return nil, fmt.Errorf("conflicting alternative alleles identified at %s:%d: both %q and %q are present",
				alleles.Chrom, alleles.Starts[pos], prevAlt, alleles.Alleles[pos][index])
		}
		prevAlt = alleles.Alleles[pos][index]
		alt.WriteString(ref[cursor:onRef])
		alt.WriteString(alleles.Alleles[pos][index])
		cursor = onRef + len(alleles.Alleles[pos][0])
		hap.nonRef = append(hap.nonRef, pos)
	}
	alt.WriteString(ref[cursor:])
	hap.alt = alt.String()
	return hap, nil
}

func (st *site) add(hap *haplotypeAllele, samples []SampleAllele) {
	if _, ok := st.alts[hap.alt]; !ok {
		st.altOrder = append(st.altOrder, hap.alt)
	}
	st.alts[hap.alt] = append(st.alts[hap.alt], samples...)

	if hap.alt == st.ref {
		return
	}
	for _, pos := range hap.nonRef {
		st.nonRef[pos] = true
		for _, sa := range samples {
			st.calls = append(st.calls, call{position: pos, sample: sa.Sample, haplotype: sa.Haplotype})
		}
	}
}

// record renders the site as a VCF record, or returns nil when the merge
// expresses nothing beyond the original single-position calls.
func (st *site) record(set *PositionSet) (*vcf.Position, error) {
	sorted := append([]string(nil), st.altOrder...)
	sort.Strings(sorted)

	var altAlleles []string
	genotypes := make([][]int, set.NumSamples)
	for _, allele := range sorted {
		index := 0
		if allele != st.ref {
			altAlleles = append(altAlleles, allele)
			index = len(altAlleles)
		}
		for _, sa := range st.alts[allele] {
			genotypes[sa.Sample] = setHaplotype(genotypes[sa.Sample], sa.Haplotype, index)
		}
	}
	if len(altAlleles) == 0 || isDegenerate(st.ref, altAlleles) {
		return nil, nil
	}

	contributing := st.contributingPositions(set)
	filter := passFilter
	quals := make([]string, len(contributing))
	for i, p := range contributing {
		quals[i] = p.Qual()
		if !p.IsPassing() {
			filter = FailedFilterTag
		}
	}

	fields := []string{
		set.Chrom(),
		strconv.FormatInt(st.start, 10),
		recomposedID,
		st.ref,
		strings.Join(altAlleles, altAlleleJoiner),
		minValueOrMissing(quals),
		filter,
		RecomposedInfo,
	}
	fields = append(fields, st.sampleColumns(set, genotypes)...)
	return vcf.NewRecomposedPosition(fields)
}

// contributingPositions returns the window positions at which some merged
// haplotype carries a non-reference allele.
func (st *site) contributingPositions(set *PositionSet) []*vcf.Position {
	var out []*vcf.Position
	for i := st.first; i <= st.last; i++ {
		if st.nonRef[i] {
			out = append(out, set.Positions[i])
		}
	}
	return out
}

// sampleColumns builds the FORMAT column followed by one column per sample.
// GQ and PS are included only when some recomposed sample carries a value.
func (st *site) sampleColumns(set *PositionSet, genotypes [][]int) []string {
	gqs := make([]string, set.NumSamples)
	pss := make([]string, set.NumSamples)
	hasGQ, hasPS := false, false
	for s := range genotypes {
		if len(genotypes[s]) == 0 {
			continue
		}
		gqs[s] = minValueOrMissing(set.GenotypeQuals[s][st.first : st.last+1])
		pss[s] = phaseSetForSample(set.PhaseSets[s][st.first:st.last+1], set.Genotypes[s][st.first:st.last+1])
		hasGQ = hasGQ || gqs[s] != vcf.Missing
		hasPS = hasPS || pss[s] != vcf.Missing
	}

	format := []string{genotypeTag}
	if hasGQ {
		format = append(format, genotypeQualTag)
	}
	if hasPS {
		format = append(format, phaseSetTag)
	}

	columns := []string{strings.Join(format, formatKeyJoiner)}
	for s, gt := range genotypes {
		if len(gt) == 0 {
			columns = append(columns, vcf.Missing)
			continue
		}
		values := []string{formatGenotype(gt)}
		if hasGQ {
			values = append(values, gqs[s])
		}
		if hasPS {
			values = append(values, pss[s])
		}
		columns = append(columns, strings.Join(trimTrailingMissing(values), formatKeyJoiner))
	}
	return columns
}

// setHaplotype stores index at haplotype h, padding with -1 for unknown haplotypes.
func setHaplotype(gt []int, h, index int) []int {
	for len(gt) <= h {
		gt = append(gt, -1)
	}
	gt[h] = index
	return gt
}

func formatGenotype(gt []int) string {
	parts := make([]string, len(gt))
	for i, idx := range gt {
		if idx < 0 {
			parts[i] = missingGenotype
			continue
		}
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, haplotypeJoiner)
}

// trimTrailingMissing drops trailing "." values, keeping at least one value.
func trimTrailingMissing(values []string) []string {
	last := len(values) - 1
	for last > 0 && values[last] == vcf.Missing {
		last--
	}
	return values[:last+1]
}

// minValueOrMissing returns the value with the smallest numeric value,
// ignoring missing or non-numeric entries, or "." when none remain.
func minValueOrMissing(values []string) string {
	best := vcf.Missing
	var bestValue float64
	for _, v := range values {
		if v == vcf.Missing {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		if best == vcf.Missing || f < bestValue {
			best, bestValue = v, f
		}
	}
	return best
}

// phaseSetForSample returns the phase set of the first heterozygous call.
func phaseSetForSample(phaseSets, genotypes []string) string {
	for i, gt := range genotypes {
		if !isHomozygous(gt) {
			return phaseSets[i]
		}
	}
	return vcf.Missing
}

func isHomozygous(gt string) bool {
	alleles := splitGenotype(gt)
	for _, a := range alleles[1:] {
		if a != alleles[0] {
			return false
		}
	}
	return true
}

// isDegenerate reports whether every ALT differs from REF by at most one base
// once shared leading and trailing bases are removed.
func isDegenerate(ref string, alts []string) bool {
	for _, alt := range alts {
		r, a := trimShared(ref, alt)
		if len(r) > 1 || len(a) > 1 {
			return false
		}
	}
	return true
}

func trimShared(ref, alt string) (string, string) {
	for len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref, alt = ref[:len(ref)-1], alt[:len(alt)-1]
	}
	for len(ref) > 0 && len(alt) > 0 && ref[0] == alt[0] {
		ref, alt = ref[1:], alt[1:]
	}
	return ref, alt
}

// markSubsumed flags positions whose non-reference calls were all consumed.
func markSubsumed(set *PositionSet, consumed []call, subsumed []bool) {
	if len(consumed) == 0 {
		return
	}
	done := make(map[call]bool, len(consumed))
	touched := make(map[int]bool)
	for _, c := range consumed {
		done[c] = true
		touched[c.position] = true
	}

	for pos := range subsumed {
		if !touched[pos] {
			continue
		}
		all := true
		for s := 0; s < set.NumSamples && all; s++ {
			for h, a := range splitGenotype(set.Genotypes[s][pos]) {
				if a == "0" || a == vcf.Missing {
					continue
				}
				if !done[call{position: pos, sample: s, haplotype: h}] {
					all = false
					break
				}
			}
		}
		subsumed[pos] = all
	}
}
