package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/biogo/hts/fai"
)

// referenceNames returns the names to try for chrom: as given, without and
// with the "chr" prefix.
func referenceNames(chrom string) []string {
	bare := normalizeChrom(chrom)
	if bare != chrom {
		return []string{chrom, bare}
	}
	return []string{chrom, "chr" + chrom}
}

// MemoryReference holds whole reference sequences in memory.
type MemoryReference struct {
	sequences map[string]string
}

// NewMemoryReference creates a reference from name to sequence pairs.
func NewMemoryReference(sequences map[string]string) *MemoryReference {
	return &MemoryReference{sequences: sequences}
}

// LoadMemoryReference reads a (optionally gzipped) FASTA file into memory.
func LoadMemoryReference(path string) (*MemoryReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	reader, closer, err := maybeGzip(f)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	sequences, err := parseFASTA(reader)
	if err != nil {
		return nil, err
	}
	return NewMemoryReference(sequences), nil
}

// parseFASTA returns sequences keyed by the first word of their header.
func parseFASTA(reader io.Reader) (map[string]string, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	sequences := make(map[string]string)
	var currentID string
	var currentSeq strings.Builder
	save := func() {
		if currentID != "" {
			sequences[currentID] = currentSeq.String()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, ">"); ok {
			save()
			currentID, _, _ = strings.Cut(strings.TrimSpace(name), " ")
			currentSeq.Reset()
			continue
		}
		currentSeq.WriteString(strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan FASTA: %w", err)
	}
	save()
	return sequences, nil
}

// Substring returns up to length bases starting at the 1-based position start.
func (r *MemoryReference) Substring(chrom string, start int64, length int) (string, error) {
	for _, name := range referenceNames(chrom) {
		seq, ok := r.sequences[name]
		if !ok {
			continue
		}
		from := start - 1
		if from < 0 || from >= int64(len(seq)) {
			return "", fmt.Errorf("%s:%d is outside the reference sequence (length %d)", chrom, start, len(seq))
		}
		to := min(from+int64(length), int64(len(seq)))
		return seq[from:to], nil
	}
	return "", fmt.Errorf("chromosome %s not found in reference", chrom)
}

// IndexedReference reads bases on demand from an uncompressed FASTA file
// through its samtools .fai index.
type IndexedReference struct {
	file  *os.File
	index fai.Index

	mu    sync.Mutex
	fasta *fai.File
}

// OpenIndexedReference opens path, reading path.fai when present and
// indexing the FASTA otherwise.
func OpenIndexedReference(path string) (*IndexedReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}

	index, err := readIndex(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &IndexedReference{file: f, index: index, fasta: fai.NewFile(f, index)}, nil
}

func readIndex(path string, fasta io.ReadSeeker) (fai.Index, error) {
	idx, err := os.Open(path + ".fai")
	if err == nil {
		defer idx.Close()
		index, err := fai.ReadFrom(idx)
		if err != nil {
			return nil, fmt.Errorf("read FASTA index: %w", err)
		}
		return index, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open FASTA index: %w", err)
	}

	index, err := fai.NewIndex(fasta)
	if err != nil {
		return nil, fmt.Errorf("index FASTA file: %w", err)
	}
	if _, err := fasta.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind FASTA file: %w", err)
	}
	return index, nil
}

// Substring returns up to length bases starting at the 1-based position start.
func (r *IndexedReference) Substring(chrom string, start int64, length int) (string, error) {
	for _, name := range referenceNames(chrom) {
		rec, ok := r.index[name]
		if !ok {
			continue
		}
		from := int(start - 1)
		if from < 0 || from >= rec.Length {
			return "", fmt.Errorf("%s:%d is outside the reference sequence (length %d)", chrom, start, rec.Length)
		}
		to := min(from+length, rec.Length)

		r.mu.Lock()
		defer r.mu.Unlock()
		seq, err := r.fasta.SeqRange(name, from, to)
		if err != nil {
			return "", fmt.Errorf("read %s:%d-%d: %w", chrom, start, to, err)
		}
		bases, err := io.ReadAll(seq)
		if err != nil {
			return "", fmt.Errorf("read %s:%d-%d: %w", chrom, start, to, err)
		}
		return string(bases), nil
	}
	return "", fmt.Errorf("chromosome %s not found in reference", chrom)
}

// Close closes the underlying FASTA file.
func (r *IndexedReference) Close() error {
	return r.file.Close()
}

// ReferenceCloser is a reference sequence source that holds resources.
type ReferenceCloser interface {
	Substring(chrom string, start int64, length int) (string, error)
	Close() error
}

// Close is a no-op for in-memory references.
func (r *MemoryReference) Close() error { return nil }

// OpenReference opens an indexed reference for plain FASTA files and loads
// gzipped FASTA into memory.
func OpenReference(path string) (ReferenceCloser, error) {
	if strings.HasSuffix(path, ".gz") {
		return LoadMemoryReference(path)
	}
	return OpenIndexedReference(path)
}
