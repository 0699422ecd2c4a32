package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/vibe-recompose/internal/recompose"
	"github.com/inodb/vibe-recompose/internal/vcf"
)

// Header lines describing the recomposed record metadata.
var (
	recomposedInfoLine = "##INFO=<ID=" + recompose.RecomposedInfo +
		",Number=0,Type=Flag,Description=\"Allele recomposed from phased variants on the same haplotype\">"
	recomposedFilterLine = "##FILTER=<ID=" + recompose.FailedFilterTag +
		",Description=\"Recomposed from at least one variant that failed filters\">"
)

// VCFWriter writes positions as VCF lines, preserving the input header.
type VCFWriter struct {
	recomposedFilter

	w           *bufio.Writer
	closer      io.Closer
	headerLines []string // original VCF header lines (## and #CHROM)
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, headerLines []string) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
	}
}

// NewVCFFileWriter creates a VCF writer on path ("-" for stdout).
// Paths ending in ".gz" are written BGZF-compressed.
func NewVCFFileWriter(path string, headerLines []string) (*VCFWriter, error) {
	w, closer, err := openOutput(path, true)
	if err != nil {
		return nil, err
	}
	vw := NewVCFWriter(w, headerLines)
	vw.closer = closer
	return vw, nil
}

// WriteHeader writes the original header with the RECOMPOSED INFO and
// FilteredVariantsRecomposed FILTER lines inserted before #CHROM.
func (vw *VCFWriter) WriteHeader() error {
	hasInfo, hasFilter := false, false
	for _, line := range vw.headerLines {
		hasInfo = hasInfo || strings.HasPrefix(line, "##INFO=<ID="+recompose.RecomposedInfo+",")
		hasFilter = hasFilter || strings.HasPrefix(line, "##FILTER=<ID="+recompose.FailedFilterTag+",")
	}

	var extra []string
	if !hasInfo {
		extra = append(extra, recomposedInfoLine)
	}
	if !hasFilter {
		extra = append(extra, recomposedFilterLine)
	}

	inserted := false
	for _, line := range vw.headerLines {
		if strings.HasPrefix(line, "#CHROM") && !inserted {
			if err := vw.writeLines(extra); err != nil {
				return err
			}
			inserted = true
		}
		if err := vw.writeLines([]string{line}); err != nil {
			return err
		}
	}
	if !inserted {
		return vw.writeLines(extra)
	}
	return nil
}

func (vw *VCFWriter) writeLines(lines []string) error {
	for _, line := range lines {
		if _, err := vw.w.WriteString(line); err != nil {
			return err
		}
		if err := vw.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Write writes one position. Untouched originals are written verbatim.
func (vw *VCFWriter) Write(p *vcf.Position) error {
	if vw.skip(p) {
		return nil
	}
	return vw.writeLines([]string{p.Line()})
}

// Flush flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

// Close flushes buffered lines and closes the destination opened by
// NewVCFFileWriter.
func (vw *VCFWriter) Close() error {
	if err := vw.w.Flush(); err != nil {
		if vw.closer != nil {
			vw.closer.Close()
		}
		return err
	}
	if vw.closer != nil {
		return vw.closer.Close()
	}
	return nil
}
