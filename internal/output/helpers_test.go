package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

var testHeader = []string{
	"##fileformat=VCFv4.2",
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total Depth\">",
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2",
}

// position builds a record from a space-separated line.
func position(t *testing.T, line string, recomposed bool) *vcf.Position {
	t.Helper()
	fields := strings.Fields(line)
	var p *vcf.Position
	var err error
	if recomposed {
		p, err = vcf.NewRecomposedPosition(fields)
	} else {
		p, err = vcf.NewPosition(fields)
	}
	require.NoError(t, err)
	return p
}

func testRecords(t *testing.T) []*vcf.Position {
	t.Helper()
	return []*vcf.Position{
		position(t, "chr1 10 rs1 A G 50 PASS DP=12 GT:PS 0|1:10 1|1:10", false),
		position(t, "chr1 10 . AC GT . PASS RECOMPOSED GT:PS 0|1:10 1|1:10", true),
		position(t, "chr1 11 . C T 30.5 q10 . GT 0|1 1|1", false),
	}
}
