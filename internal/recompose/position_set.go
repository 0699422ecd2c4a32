package recompose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// FORMAT keys read by the recomposer.
const (
	genotypeTag     = "GT"
	phaseSetTag     = "PS"
	genotypeQualTag = "GQ"
)

// AlleleSet holds the alleles of every window position. Alleles[i][0] is the
// reference allele of position i, followed by its alternate alleles.
type AlleleSet struct {
	Chrom   string
	Starts  []int64
	Alleles [][]string
}

// PositionSet is the per-window view of recomposable positions: alleles,
// per-sample FORMAT values and the allele index blocks built from them.
type PositionSet struct {
	Positions           []*vcf.Position
	FunctionBlockRanges []int64
	NumSamples          int
	AlleleSet           AlleleSet

	// Per-sample, per-position FORMAT values ([sample][position]).
	// Absent keys read as ".".
	Genotypes     [][]string
	PhaseSets     [][]string
	GenotypeQuals [][]string

	Blocks *BlockSamples
}

// NewPositionSet derives allele sets, FORMAT columns, phase-set runs and
// allele index blocks for the positions of one window. ranges holds one
// function-block range per position.
func NewPositionSet(positions []*vcf.Position, ranges []int64) (*PositionSet, error) {
	if len(positions) == 0 {
		return nil, &ConsistencyError{Message: "no positions in window"}
	}

	s := &PositionSet{
		Positions:           positions,
		FunctionBlockRanges: ranges,
		NumSamples:          positions[0].NumSamples(),
	}

	if len(ranges) != len(positions) {
		return nil, s.consistencyError("the inconsistent numbers of positions: %d positions, %d function block ranges",
			len(positions), len(ranges))
	}

	s.AlleleSet = newAlleleSet(positions)

	sampleInfo, err := s.splitSampleInfo()
	if err != nil {
		return nil, err
	}

	if s.Genotypes, err = s.tagValues(sampleInfo, genotypeTag); err != nil {
		return nil, err
	}
	if s.PhaseSets, err = s.tagValues(sampleInfo, phaseSetTag); err != nil {
		return nil, err
	}
	if s.GenotypeQuals, err = s.tagValues(sampleInfo, genotypeQualTag); err != nil {
		return nil, err
	}

	s.Blocks = BuildAlleleIndexBlocks(s.genotypeGroups(), unsupportedAlleles(positions),
		s.AlleleSet.Starts, s.FunctionBlockRanges)
	return s, nil
}

// Chrom returns the window's chromosome.
func (s *PositionSet) Chrom() string { return s.AlleleSet.Chrom }

func (s *PositionSet) consistencyError(format string, args ...any) *ConsistencyError {
	first, last := s.Positions[0], s.Positions[len(s.Positions)-1]
	return &ConsistencyError{
		Chrom:   first.Chrom,
		Start:   first.Start,
		End:     last.End(),
		Message: fmt.Sprintf(format, args...),
	}
}

func newAlleleSet(positions []*vcf.Position) AlleleSet {
	set := AlleleSet{
		Chrom:   positions[0].Chrom,
		Starts:  make([]int64, len(positions)),
		Alleles: make([][]string, len(positions)),
	}
	for i, p := range positions {
		set.Starts[i] = p.Start
		alleles := make([]string, 0, len(p.Alts)+1)
		alleles = append(alleles, p.Ref)
		set.Alleles[i] = append(alleles, p.Alts...)
	}
	return set
}

// splitSampleInfo splits every sample column once ([position][sample][value]).
func (s *PositionSet) splitSampleInfo() ([][][]string, error) {
	info := make([][][]string, len(s.Positions))
	for i, p := range s.Positions {
		if p.NumSamples() != s.NumSamples {
			return nil, s.consistencyError("the inconsistent numbers of samples: %d at %s:%d, expected %d",
				p.NumSamples(), p.Chrom, p.Start, s.NumSamples)
		}
		info[i] = make([][]string, s.NumSamples)
		for j := 0; j < s.NumSamples; j++ {
			info[i][j] = p.SampleValues(j)
		}
	}
	return info, nil
}

// tagIndexes returns the FORMAT index of key at each position, or -1.
func (s *PositionSet) tagIndexes(key string) []int {
	indexes := make([]int, len(s.Positions))
	for i, p := range s.Positions {
		indexes[i] = -1
		for j, k := range p.FormatKeys() {
			if k == key {
				indexes[i] = j
				break
			}
		}
	}
	return indexes
}

// tagValues extracts key for every sample at every position ([sample][position]).
func (s *PositionSet) tagValues(sampleInfo [][][]string, key string) ([][]string, error) {
	indexes := s.tagIndexes(key)
	if len(indexes) != len(sampleInfo) {
		return nil, s.consistencyError("the inconsistent numbers of positions: %d in sample info array, %d in %s index array",
			len(sampleInfo), len(indexes), key)
	}

	values := make([][]string, s.NumSamples)
	for sample := range values {
		values[sample] = make([]string, len(sampleInfo))
		for pos, idx := range indexes {
			values[sample][pos] = sampleValue(sampleInfo[pos][sample], idx)
		}
	}
	return values, nil
}

func sampleValue(values []string, index int) string {
	if index < 0 || index >= len(values) || values[index] == "" {
		return vcf.Missing
	}
	return values[index]
}

// phaseRun is a half-open range of window positions sharing a phase set.
type phaseRun struct {
	start, end int
}

// phaseSetRuns folds a sample's phase-set column into runs. A new run starts
// whenever the phase set changes between two non-missing values; runs
// spanning a single position are dropped.
func phaseSetRuns(phaseSets []string) []phaseRun {
	var runs []phaseRun
	start := 0
	prev := vcf.Missing
	for i, ps := range phaseSets {
		if isNewPhaseSet(ps, prev) {
			runs = append(runs, phaseRun{start: start, end: i})
			start = i
		}
		prev = ps
	}
	runs = append(runs, phaseRun{start: start, end: len(phaseSets)})

	kept := runs[:0]
	for _, r := range runs {
		if r.end-r.start > 1 {
			kept = append(kept, r)
		}
	}
	return kept
}

func isNewPhaseSet(current, previous string) bool {
	return !isMissingPhaseSet(previous) && !isMissingPhaseSet(current) && current != previous
}

func isMissingPhaseSet(ps string) bool {
	return ps == vcf.Missing || ps == "" || ps == "0"
}

// genotypeGroups groups samples by identical genotype runs.
func (s *PositionSet) genotypeGroups() []SampleGroup {
	var groups []SampleGroup
	index := make(map[GenotypeRun]int)
	for sample := 0; sample < s.NumSamples; sample++ {
		for _, r := range phaseSetRuns(s.PhaseSets[sample]) {
			run := GenotypeRun{
				Genotypes:  strings.Join(s.Genotypes[sample][r.start:r.end], ";"),
				StartIndex: r.start,
			}
			if i, ok := index[run]; ok {
				groups[i].Samples = append(groups[i].Samples, sample)
				continue
			}
			index[run] = len(groups)
			groups = append(groups, SampleGroup{Run: run, Samples: []int{sample}})
		}
	}
	return groups
}

// unsupportedAlleles returns, per position, the 1-based GT indexes of
// alternate alleles that cannot be recomposed. Everything but a plain SNV is
// unsupported. A gVCF <NON_REF> entry next to concrete ALTs leaves the site
// recomposable for samples calling those ALTs; a call of <NON_REF> itself
// has no bases to merge and ends the sample's block there.
func unsupportedAlleles(positions []*vcf.Position) []map[string]bool {
	out := make([]map[string]bool, len(positions))
	for i, p := range positions {
		out[i] = make(map[string]bool)
		for j, alt := range p.Alts {
			if !isSupportedAllele(p.Ref, alt) {
				out[i][strconv.Itoa(j+1)] = true
			}
		}
	}
	return out
}

func isSupportedAllele(ref, alt string) bool {
	return !strings.HasPrefix(alt, "<") && alt != "*" && vcf.IsSNVAllele(ref, alt)
}
