package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFASTA = ">chr1 test sequence\nCAGCTGAAGT\nACGTAC\n>2\nggccaa\n"

func writeFASTA(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReference_Substring(t *testing.T) {
	plain := writeFASTA(t, "ref.fa", testFASTA)

	indexed, err := OpenIndexedReference(plain)
	require.NoError(t, err)
	defer indexed.Close()

	memory, err := LoadMemoryReference(plain)
	require.NoError(t, err)

	refs := map[string]interface {
		Substring(chrom string, start int64, length int) (string, error)
	}{
		"indexed": indexed,
		"memory":  memory,
	}

	tests := []struct {
		name   string
		chrom  string
		start  int64
		length int
		want   string
	}{
		{"first bases", "chr1", 1, 3, "CAG"},
		{"across a line break", "chr1", 9, 4, "GTAC"},
		{"without chr prefix", "1", 2, 5, "AGCTG"},
		{"with chr prefix added", "chr2", 1, 2, "gg"},
		{"truncated at the end", "chr1", 14, 10, "TAC"},
	}

	for refName, ref := range refs {
		for _, tt := range tests {
			t.Run(refName+"/"+tt.name, func(t *testing.T) {
				got, err := ref.Substring(tt.chrom, tt.start, tt.length)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}

		t.Run(refName+"/unknown chromosome", func(t *testing.T) {
			_, err := ref.Substring("chrX", 1, 1)
			assert.Error(t, err)
		})
		t.Run(refName+"/past the end", func(t *testing.T) {
			_, err := ref.Substring("chr1", 17, 1)
			assert.Error(t, err)
		})
	}
}

func TestOpenIndexedReference_ReadsExistingIndex(t *testing.T) {
	path := writeFASTA(t, "ref.fa", ">seq\nACGTACGTAC\nGG\n")
	// name, length, offset, bases per line, bytes per line
	require.NoError(t, os.WriteFile(path+".fai", []byte("seq\t12\t5\t10\t11\n"), 0o644))

	ref, err := OpenIndexedReference(path)
	require.NoError(t, err)
	defer ref.Close()

	got, err := ref.Substring("seq", 9, 4)
	require.NoError(t, err)
	assert.Equal(t, "ACGG", got)
}

func TestOpenReference_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.fa.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testFASTA))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	ref, err := OpenReference(path)
	require.NoError(t, err)
	defer ref.Close()

	got, err := ref.Substring("chr1", 1, 8)
	require.NoError(t, err)
	assert.Equal(t, "CAGCTGAA", got)
}
