// Package output provides writers for recomposed position streams.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bgzf"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// Supported output formats.
const (
	FormatVCF   = "vcf"
	FormatTab   = "tab"
	FormatArrow = "arrow"
)

// RecordWriter writes processor output records.
type RecordWriter interface {
	WriteHeader() error
	Write(p *vcf.Position) error
	// SetIncludeRecomposed controls whether recomposed records are written.
	SetIncludeRecomposed(include bool)
	// Close flushes buffered records and releases the destination.
	Close() error
}

// Create opens path ("-" or "" for stdout) and returns a writer for format.
// Text formats are BGZF-compressed when path ends in ".gz".
func Create(path, format string, headerLines []string) (RecordWriter, error) {
	switch format {
	case FormatVCF:
		return NewVCFFileWriter(path, headerLines)
	case FormatTab:
		w, closer, err := openOutput(path, true)
		if err != nil {
			return nil, err
		}
		tw := NewTabWriter(w)
		tw.closer = closer
		return tw, nil
	case FormatArrow:
		w, closer, err := openOutput(path, false)
		if err != nil {
			return nil, err
		}
		aw, err := NewArrowWriter(w, defaultChunkSize)
		if err != nil {
			closer.Close()
			return nil, err
		}
		aw.closer = closer
		return aw, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want vcf, tab or arrow)", format)
	}
}

// openOutput opens the destination. With compress set, .gz paths are wrapped
// in a BGZF writer and the returned closer finalizes it before closing the file.
func openOutput(path string, compress bool) (io.Writer, io.Closer, error) {
	if path == "" || path == "-" {
		return os.Stdout, nopCloser{}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	if !compress || !strings.HasSuffix(path, ".gz") {
		return f, f, nil
	}

	bg := bgzf.NewWriter(f, 1)
	return bg, chainCloser{bg, f}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// chainCloser closes each closer in order and returns the first error.
type chainCloser []io.Closer

func (cc chainCloser) Close() error {
	var first error
	for _, c := range cc {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// recomposedFilter drops recomposed records when they are excluded.
type recomposedFilter struct {
	excludeRecomposed bool
}

func (f *recomposedFilter) SetIncludeRecomposed(include bool) {
	f.excludeRecomposed = !include
}

func (f *recomposedFilter) skip(p *vcf.Position) bool {
	return f.excludeRecomposed && p.IsRecomposed()
}
