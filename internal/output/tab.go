package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// TabWriter writes positions as a tab-delimited report, one line per record.
type TabWriter struct {
	recomposedFilter

	w       *bufio.Writer
	closer  io.Closer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Uploaded_variation",
			"Location",
			"REF",
			"ALT",
			"QUAL",
			"FILTER",
			"RECOMPOSED",
			"GT",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single position.
func (tw *TabWriter) Write(p *vcf.Position) error {
	if tw.skip(p) {
		return nil
	}

	alt := strings.Join(p.Alts, ",")

	recomposed := "-"
	if p.IsRecomposed() {
		recomposed = "YES"
	}

	fields := []string{
		p.Chrom + "_" + strconv.FormatInt(p.Start, 10) + "_" + p.Ref + "/" + alt,
		location(p),
		p.Ref,
		alt,
		p.Qual(),
		p.Filter(),
		recomposed,
		genotypes(p),
	}

	_, err := tw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// Flush flushes the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// Close flushes and closes the destination opened by Create.
func (tw *TabWriter) Close() error {
	err := tw.w.Flush()
	if tw.closer != nil {
		if cerr := tw.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// location formats chrom:start, or chrom:start-end for multi-base records.
func location(p *vcf.Position) string {
	loc := p.Chrom + ":" + strconv.FormatInt(p.Start, 10)
	if end := p.End(); end > p.Start {
		loc += "-" + strconv.FormatInt(end, 10)
	}
	return loc
}

// genotypes returns the GT of every sample joined by ',', or "-" when the
// record carries no genotypes.
func genotypes(p *vcf.Position) string {
	gtIdx := -1
	for i, key := range p.FormatKeys() {
		if key == "GT" {
			gtIdx = i
			break
		}
	}
	if gtIdx < 0 || p.NumSamples() == 0 {
		return "-"
	}

	gts := make([]string, p.NumSamples())
	for i := range gts {
		values := p.SampleValues(i)
		if gtIdx < len(values) {
			gts[i] = values[gtIdx]
		} else {
			gts[i] = vcf.Missing
		}
	}
	return strings.Join(gts, ",")
}
