package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

const defaultChunkSize = 4096

// arrowSchema is the column layout of exported records. Qual is null for
// missing values; samples holds the raw sample columns.
var arrowSchema = arrow.NewSchema([]arrow.Field{
	{Name: "chrom", Type: arrow.BinaryTypes.String},
	{Name: "pos", Type: arrow.PrimitiveTypes.Int64},
	{Name: "ref", Type: arrow.BinaryTypes.String},
	{Name: "alts", Type: arrow.ListOf(arrow.BinaryTypes.String)},
	{Name: "qual", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "filter", Type: arrow.BinaryTypes.String},
	{Name: "recomposed", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "format", Type: arrow.BinaryTypes.String},
	{Name: "samples", Type: arrow.ListOf(arrow.BinaryTypes.String)},
}, nil)

// ArrowWriter writes positions as an Arrow IPC file, one record batch per chunk.
type ArrowWriter struct {
	recomposedFilter

	writer         *ipc.FileWriter
	closer         io.Closer
	chunkSize      int
	numRowsInChunk int

	chrom      *array.StringBuilder
	pos        *array.Int64Builder
	ref        *array.StringBuilder
	alts       *array.ListBuilder
	qual       *array.Float64Builder
	filter     *array.StringBuilder
	recomposed *array.BooleanBuilder
	format     *array.StringBuilder
	samples    *array.ListBuilder
}

// NewArrowWriter creates an Arrow IPC file writer on w. Rows are written in
// batches of chunkSize.
func NewArrowWriter(w io.Writer, chunkSize int) (*ArrowWriter, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	pool := memory.NewGoAllocator()
	writer, err := ipc.NewFileWriter(w, ipc.WithSchema(arrowSchema), ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("create arrow writer: %w", err)
	}

	return &ArrowWriter{
		writer:     writer,
		chunkSize:  chunkSize,
		chrom:      array.NewStringBuilder(pool),
		pos:        array.NewInt64Builder(pool),
		ref:        array.NewStringBuilder(pool),
		alts:       array.NewListBuilder(pool, arrow.BinaryTypes.String),
		qual:       array.NewFloat64Builder(pool),
		filter:     array.NewStringBuilder(pool),
		recomposed: array.NewBooleanBuilder(pool),
		format:     array.NewStringBuilder(pool),
		samples:    array.NewListBuilder(pool, arrow.BinaryTypes.String),
	}, nil
}

// WriteHeader is a no-op; the schema is written with the first batch.
func (aw *ArrowWriter) WriteHeader() error { return nil }

// Write appends one position to the current batch.
func (aw *ArrowWriter) Write(p *vcf.Position) error {
	if aw.skip(p) {
		return nil
	}

	aw.chrom.Append(p.Chrom)
	aw.pos.Append(p.Start)
	aw.ref.Append(p.Ref)
	appendStrings(aw.alts, p.Alts)
	if q, err := strconv.ParseFloat(p.Qual(), 64); err == nil {
		aw.qual.Append(q)
	} else {
		aw.qual.AppendNull()
	}
	aw.filter.Append(p.Filter())
	aw.recomposed.Append(p.IsRecomposed())
	aw.format.Append(p.Format())
	var samples []string
	if p.NumSamples() > 0 {
		samples = p.Fields[vcf.SampleIndex:]
	}
	appendStrings(aw.samples, samples)

	aw.numRowsInChunk++
	if aw.numRowsInChunk == aw.chunkSize {
		return aw.writeChunk()
	}
	return nil
}

func appendStrings(b *array.ListBuilder, values []string) {
	b.Append(true)
	vb := b.ValueBuilder().(*array.StringBuilder)
	for _, v := range values {
		vb.Append(v)
	}
}

func (aw *ArrowWriter) builders() []array.Builder {
	return []array.Builder{
		aw.chrom, aw.pos, aw.ref, aw.alts, aw.qual,
		aw.filter, aw.recomposed, aw.format, aw.samples,
	}
}

func (aw *ArrowWriter) writeChunk() error {
	builders := aw.builders()
	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		// NewArray resets the builder for the next chunk.
		cols[i] = b.NewArray()
	}

	record := array.NewRecord(arrowSchema, cols, int64(aw.numRowsInChunk))
	for _, c := range cols {
		c.Release()
	}
	defer record.Release()

	if err := aw.writer.Write(record); err != nil {
		return fmt.Errorf("write arrow batch: %w", err)
	}
	aw.numRowsInChunk = 0
	return nil
}

// Close writes any remaining rows and the file footer, then closes the
// destination opened by Create.
func (aw *ArrowWriter) Close() error {
	var err error
	if aw.numRowsInChunk > 0 {
		err = aw.writeChunk()
	}
	if cerr := aw.writer.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close arrow writer: %w", cerr)
	}
	for _, b := range aw.builders() {
		b.Release()
	}
	if aw.closer != nil {
		if cerr := aw.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
