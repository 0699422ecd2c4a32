package recompose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_RecomposesPhasedWindow(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "CAGCTGAA"}, allGenes, boundaryMap{2: 4, 4: 6, 6: 8})

	out := runProcessor(t, p,
		position(t, "chr1 2 . A T,G . PASS . GT:PS 0|1:123 2/2:789 0|2:456"),
		position(t, "chr1 4 . C A,G . PASS . GT:PS 1|1:301 1|2:789 1|2:456"),
		position(t, "chr1 6 . G C . PASS . GT:PS . 1|0:789 0/1:."),
	)

	assert.Equal(t, []string{
		"chr1 2 . A T,G . PASS . GT:PS 0|1:123 2/2:789 0|2:456",
		"chr1 2 . AGC AGA,GGG . PASS RECOMPOSED GT:PS . . 1|2:456",
		"chr1 2 . AGCTG GGATC,GGGTG . PASS RECOMPOSED GT:PS . 1|2:789 .",
		"chr1 4 . C A,G . PASS . GT:PS 1|1:301 1|2:789 1|2:456",
		"chr1 6 . G C . PASS . GT:PS . 1|0:789 0/1:.",
	}, lines(out))

	stats := p.Stats()
	assert.Equal(t, 3, stats.Positions)
	assert.Equal(t, 1, stats.Windows)
	assert.Equal(t, 1, stats.RecomposableWindows)
	assert.Equal(t, 2, stats.Recomposed)
	assert.Zero(t, stats.Subsumed)
}

func TestProcessor_ReplacesSubsumedPositions(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTTTTTTTTTT"}, allGenes,
		boundaryMap{10: 12, 11: 12, 20: 22})

	out := runProcessor(t, p,
		position(t, "chr1 10 . A G 45 PASS . GT:GQ:PS 1|0:50:10 0|1:.:. 0|0:99:."),
		position(t, "chr1 11 . C T 30.1 LowQual . GT:GQ:PS 1|0:40:10 0|1:.:. 0|0:99:."),
		position(t, "chr1 20 . T A 60 PASS . GT 0|1 0|0 0|0"),
	)

	assert.Equal(t, []string{
		"chr1 10 . AC GT 30.1 FilteredVariantsRecomposed RECOMPOSED GT:GQ:PS 1|0:40:10 0|1 .",
		"chr1 20 . T A 60 PASS . GT 0|1 0|0 0|0",
	}, lines(out))
	assert.True(t, out[0].IsRecomposed())
	assert.False(t, out[1].IsRecomposed())

	stats := p.Stats()
	assert.Equal(t, 2, stats.Windows)
	assert.Equal(t, 2, stats.Subsumed)
	assert.Equal(t, 1, stats.Recomposed)
}

func TestProcessor_KeepOriginals(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTTTTTTTTTT"}, allGenes,
		boundaryMap{10: 12, 11: 12, 20: 22})
	p.SetKeepOriginals(true)

	out := runProcessor(t, p,
		position(t, "chr1 10 . A G 45 PASS . GT 1|1"),
		position(t, "chr1 11 . C T 30 PASS . GT 1|1"),
		position(t, "chr1 20 . T A 60 PASS . GT 0|1"),
	)

	assert.Equal(t, []string{
		"chr1 10 . A G 45 PASS . GT 1|1",
		"chr1 10 . AC GT 30 PASS RECOMPOSED GT 1|1",
		"chr1 11 . C T 30 PASS . GT 1|1",
		"chr1 20 . T A 60 PASS . GT 0|1",
	}, lines(out))

	stats := p.Stats()
	assert.Equal(t, 1, stats.Recomposed)
	assert.Zero(t, stats.Subsumed)
}

func TestProcessor_RecomposesNextToNonRefAllele(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTT"}, allGenes, boundaryMap{10: 12, 11: 12})

	first := position(t, "chr1 10 . A G,<NON_REF> 45 PASS . GT 1|0 2|0")
	second := position(t, "chr1 11 . C T,<NON_REF> 30 PASS . GT 1|0 0|2")
	out := runProcessor(t, p, first, second)

	require.Len(t, out, 3)
	assert.Same(t, first, out[0])
	assert.True(t, out[1].IsRecomposed())
	assert.Equal(t, "AC", out[1].Ref)
	assert.Equal(t, []string{"GT"}, out[1].Alts)
	assert.Same(t, second, out[2], "<NON_REF> calls keep their originals")
	assert.Zero(t, p.Stats().Subsumed)
}

func TestProcessor_ReturnsWindowWhenItCompletes(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTTTTTTTTTT"}, allGenes,
		boundaryMap{10: 12, 11: 12, 20: 22})

	out, err := p.ProcessPosition(position(t, "chr1 10 . A G . PASS . GT 1|0"))
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = p.ProcessPosition(position(t, "chr1 11 . C T . PASS . GT 1|0"))
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = p.ProcessPosition(position(t, "chr1 20 . T A . PASS . GT 0|1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1 10 . AC GT . PASS RECOMPOSED GT 1|0"}, lines(out))

	out, err = p.Flush()
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1 20 . T A . PASS . GT 0|1"}, lines(out))
}

func TestProcessor_PassesThroughUnrecomposableWindows(t *testing.T) {
	tests := []struct {
		name    string
		records []string
	}{
		{
			name:    "single position",
			records: []string{"chr1 10 . A G . PASS . GT 0|1"},
		},
		{
			name: "unphased heterozygotes",
			records: []string{
				"chr1 10 . A G . PASS . GT 0/1",
				"chr1 11 . C T . PASS . GT 0/1",
			},
		},
		{
			name: "sites only",
			records: []string{
				"chr1 10 . A G . PASS .",
				"chr1 11 . C T . PASS .",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTT"}, allGenes, boundaryMap{10: 12, 11: 12})
			var out []string
			for _, r := range tt.records {
				records, err := p.ProcessPosition(position(t, r))
				require.NoError(t, err)
				out = append(out, lines(records)...)
			}
			records, err := p.Flush()
			require.NoError(t, err)
			out = append(out, lines(records)...)

			assert.Equal(t, tt.records, out)
			assert.Zero(t, p.Stats().Recomposed)
		})
	}
}

func TestProcessor_ExcludesOverlappingIndels(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTT"}, allGenes, boundaryMap{10: 12, 11: 12})

	out := runProcessor(t, p,
		position(t, "chr1 10 . A G . PASS . GT 1|0 1|0"),
		position(t, "chr1 11 . C CT,T . PASS . GT 1|0 2|0"),
	)

	assert.Equal(t, []string{
		"chr1 10 . A G . PASS . GT 1|0 1|0",
		"chr1 10 . AC GT . PASS RECOMPOSED GT . 1|0",
		"chr1 11 . C CT,T . PASS . GT 1|0 2|0",
	}, lines(out))
}

func TestProcessor_OrderErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []string
	}{
		{"start goes backwards", []string{"chr1 10 . A G . PASS .", "chr1 9 . C T . PASS ."}},
		{"chromosome reappears", []string{"chr1 10 . A G . PASS .", "chr2 5 . C T . PASS .", "chr1 20 . C T . PASS ."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(stringReference{}, allGenes, boundaryMap{})
			var err error
			for _, r := range tt.records {
				if _, err = p.ProcessPosition(position(t, r)); err != nil {
					break
				}
			}
			var oe *OrderError
			require.True(t, errors.As(err, &oe), "got %v", err)
		})
	}
}

func TestProcessor_Closed(t *testing.T) {
	p := NewProcessor(stringReference{}, allGenes, boundaryMap{})
	_, err := p.ProcessPosition(position(t, "chr1 10 . A G . PASS ."))
	require.NoError(t, err)

	out, err := p.Flush()
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = p.Flush()
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = p.ProcessPosition(position(t, "chr1 11 . C T . PASS ."))
	assert.ErrorIs(t, err, ErrProcessorClosed)
}

func TestProcessor_ConsistencyErrorAbortsWindow(t *testing.T) {
	p := NewProcessor(stringReference{"chr1": "GGGGGGGGGACTTTT"}, allGenes, boundaryMap{10: 12, 11: 12})
	_, err := p.ProcessPosition(position(t, "chr1 10 . A G . PASS . GT 1|0 1|0"))
	require.NoError(t, err)
	_, err = p.ProcessPosition(position(t, "chr1 11 . C T . PASS . GT 1|0"))
	require.NoError(t, err)

	_, err = p.Flush()
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce), "got %v", err)
}
