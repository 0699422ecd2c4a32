package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listValues(l *array.List, row int) []string {
	start, end := l.ValueOffsets(row)
	values := l.ListValues().(*array.String)
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, values.Value(int(i)))
	}
	return out
}

func TestArrowWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewArrowWriter(&buf, 2)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())
	for _, p := range testRecords(t) {
		require.NoError(t, w.Write(p))
	}
	require.NoError(t, w.Write(position(t, "chr2 5 . G A,T 12 PASS .", false)))
	require.NoError(t, w.Close())

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, arrowSchema.NumFields(), r.Schema().NumFields())
	require.Equal(t, 2, r.NumRecords(), "two full chunks")

	rec, err := r.Record(0)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.NumRows())

	chrom := rec.Column(0).(*array.String)
	pos := rec.Column(1).(*array.Int64)
	ref := rec.Column(2).(*array.String)
	alts := rec.Column(3).(*array.List)
	qual := rec.Column(4).(*array.Float64)
	recomposed := rec.Column(6).(*array.Boolean)
	samples := rec.Column(8).(*array.List)

	assert.Equal(t, "chr1", chrom.Value(0))
	assert.Equal(t, int64(10), pos.Value(1))
	assert.Equal(t, "AC", ref.Value(1))
	assert.Equal(t, []string{"GT"}, listValues(alts, 1))
	assert.Equal(t, 50.0, qual.Value(0))
	assert.True(t, qual.IsNull(1))
	assert.False(t, recomposed.Value(0))
	assert.True(t, recomposed.Value(1))
	assert.Equal(t, []string{"0|1:10", "1|1:10"}, listValues(samples, 1))

	rec, err = r.Record(1)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.NumRows())

	alts = rec.Column(3).(*array.List)
	samples = rec.Column(8).(*array.List)
	assert.Equal(t, []string{"A", "T"}, listValues(alts, 1))
	assert.Empty(t, listValues(samples, 1))
	assert.Equal(t, "", rec.Column(7).(*array.String).Value(1))
}

func TestArrowWriter_ExcludeRecomposed(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewArrowWriter(&buf, 0)
	require.NoError(t, err)
	w.SetIncludeRecomposed(false)
	for _, p := range testRecords(t) {
		require.NoError(t, w.Write(p))
	}
	require.NoError(t, w.Close())

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 1, r.NumRecords())
	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.NumRows())
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{FormatVCF, FormatTab, FormatArrow} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "out."+format)
			w, err := Create(path, format, testHeader)
			require.NoError(t, err)
			require.NoError(t, w.WriteHeader())
			for _, p := range testRecords(t) {
				require.NoError(t, w.Write(p))
			}
			require.NoError(t, w.Close())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}

	_, err := Create(filepath.Join(dir, "out.json"), "json", testHeader)
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestCreate_CompressedTab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tab.gz")
	w, err := Create(path, FormatTab, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 18)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])
	assert.Equal(t, "BC", string(data[12:14]))
}
