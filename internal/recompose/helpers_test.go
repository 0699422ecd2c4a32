package recompose

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// stringReference serves bases from in-memory sequences starting at position 1.
type stringReference map[string]string

func (r stringReference) Substring(chrom string, start int64, length int) (string, error) {
	seq, ok := r[chrom]
	if !ok {
		return "", fmt.Errorf("unknown chromosome %s", chrom)
	}
	from := int(start - 1)
	if from < 0 || from >= len(seq) {
		return "", fmt.Errorf("%s:%d outside sequence", chrom, start)
	}
	to := from + length
	if to > len(seq) {
		to = len(seq)
	}
	return seq[from:to], nil
}

// boundaryMap returns fixed boundaries per position, -1 elsewhere.
type boundaryMap map[int64]int64

func (m boundaryMap) BoundaryFor(_ string, pos int64) int64 {
	if r, ok := m[pos]; ok {
		return r
	}
	return -1
}

type geneIndexFunc func(chrom string, start, end int64) bool

func (f geneIndexFunc) OverlapsAny(chrom string, start, end int64) bool {
	return f(chrom, start, end)
}

var allGenes = geneIndexFunc(func(string, int64, int64) bool { return true })

// position builds a record from whitespace-separated columns.
func position(t *testing.T, line string) *vcf.Position {
	t.Helper()
	p, err := vcf.NewPosition(strings.Fields(line))
	require.NoError(t, err)
	return p
}

func lines(records []*vcf.Position) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = strings.Join(r.Fields, " ")
	}
	return out
}

// runProcessor feeds every position and flushes, collecting all output.
func runProcessor(t *testing.T, p *Processor, positions ...*vcf.Position) []*vcf.Position {
	t.Helper()
	var out []*vcf.Position
	for _, pos := range positions {
		records, err := p.ProcessPosition(pos)
		require.NoError(t, err)
		out = append(out, records...)
	}
	records, err := p.Flush()
	require.NoError(t, err)
	return append(out, records...)
}
