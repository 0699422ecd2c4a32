// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Column indexes of a VCF data line.
const (
	ChromIndex  = 0
	PosIndex    = 1
	IDIndex     = 2
	RefIndex    = 3
	AltIndex    = 4
	QualIndex   = 5
	FilterIndex = 6
	InfoIndex   = 7
	FormatIndex = 8
	SampleIndex = 9
)

// Missing is the VCF placeholder for an absent value.
const Missing = "."

// NonRefAllele is the GATK gVCF placeholder for any unobserved alternate allele.
const NonRefAllele = "<NON_REF>"

// Position is one VCF data line reduced to the fields the recomposer needs,
// plus the raw columns so untouched records can be written back verbatim.
// A Position is never modified after construction.
type Position struct {
	Chrom  string   // Chromosome name as written in the VCF
	Start  int64    // 1-based start
	Ref    string   // Reference allele
	Alts   []string // Alternate alleles in VCF order
	Fields []string // All tab-delimited columns

	recomposed bool
}

// NewPosition builds a Position from the tab-delimited columns of a data line.
func NewPosition(fields []string) (*Position, error) {
	if len(fields) < FormatIndex {
		return nil, fmt.Errorf("expected at least %d columns, found %d", FormatIndex, len(fields))
	}

	start, err := strconv.ParseInt(fields[PosIndex], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid position: %s", fields[PosIndex])
	}

	return &Position{
		Chrom:  fields[ChromIndex],
		Start:  start,
		Ref:    fields[RefIndex],
		Alts:   strings.Split(fields[AltIndex], ","),
		Fields: fields,
	}, nil
}

// NewRecomposedPosition builds a synthetic record produced by recomposition.
func NewRecomposedPosition(fields []string) (*Position, error) {
	p, err := NewPosition(fields)
	if err != nil {
		return nil, err
	}
	p.recomposed = true
	return p, nil
}

// IsRecomposed reports whether the record was synthesized from phased calls.
func (p *Position) IsRecomposed() bool {
	return p.recomposed
}

// End returns the last reference base covered by the record.
func (p *Position) End() int64 {
	return p.Start + int64(len(p.Ref)) - 1
}

// ID returns the raw ID column.
func (p *Position) ID() string { return p.Fields[IDIndex] }

// Qual returns the raw QUAL column, "." when missing.
func (p *Position) Qual() string { return p.Fields[QualIndex] }

// Filter returns the raw FILTER column.
func (p *Position) Filter() string { return p.Fields[FilterIndex] }

// Info returns the raw INFO column.
func (p *Position) Info() string { return p.Fields[InfoIndex] }

// Filters returns the FILTER column split on ';'.
func (p *Position) Filters() []string {
	return strings.Split(p.Filter(), ";")
}

// IsPassing reports whether the record passed all filters or was never filtered.
func (p *Position) IsPassing() bool {
	f := p.Filter()
	return f == "PASS" || f == Missing
}

// Format returns the FORMAT column, or "" for sites-only records.
func (p *Position) Format() string {
	if len(p.Fields) <= FormatIndex {
		return ""
	}
	return p.Fields[FormatIndex]
}

// FormatKeys returns the FORMAT column split on ':'.
func (p *Position) FormatKeys() []string {
	format := p.Format()
	if format == "" {
		return nil
	}
	return strings.Split(format, ":")
}

// NumSamples returns the number of sample columns.
func (p *Position) NumSamples() int {
	if len(p.Fields) <= SampleIndex {
		return 0
	}
	return len(p.Fields) - SampleIndex
}

// Sample returns the raw column of sample i.
func (p *Position) Sample(i int) string {
	return p.Fields[SampleIndex+i]
}

// SampleValues returns the ':'-separated values of sample i.
func (p *Position) SampleValues(i int) []string {
	return strings.Split(p.Sample(i), ":")
}

// IsSNV returns true if the reference and every alternate allele are single bases.
func (p *Position) IsSNV() bool {
	if len(p.Ref) != 1 {
		return false
	}
	for _, alt := range p.Alts {
		if !IsSNVAllele(p.Ref, alt) {
			return false
		}
	}
	return true
}

// Line returns the record as a tab-delimited VCF line without a newline.
func (p *Position) Line() string {
	return strings.Join(p.Fields, "\t")
}

// IsSNVAllele reports whether ref>alt is a plain single nucleotide substitution.
func IsSNVAllele(ref, alt string) bool {
	if len(ref) != 1 || len(alt) != 1 || ref == alt {
		return false
	}
	switch alt[0] {
	case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		return true
	}
	return false
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}
