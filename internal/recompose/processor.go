package recompose

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// Stats counts what the processor has seen and produced.
type Stats struct {
	Positions           int // records fed to ProcessPosition
	Windows             int // windows completed
	RecomposableWindows int // windows with at least two recomposable positions
	Recomposed          int // recomposed records emitted
	Subsumed            int // original records replaced by recomposed ones
	SkippedCandidates   int // candidate merges dropped for reference problems or conflicts
}

// Processor feeds a coordinate-sorted VCF stream through the position buffer
// and returns each completed window with its recomposed records.
type Processor struct {
	buffer    *PositionBuffer
	generator *VariantGenerator
	logger    *zap.Logger
	stats     Stats

	lastChrom string
	lastStart int64
	finished  map[string]bool
	started   bool
	closed    bool

	keepOriginals bool
}

// NewProcessor creates a processor.
func NewProcessor(reference ReferenceSequence, genes GeneIndex, boundaries BoundaryProvider) *Processor {
	return &Processor{
		buffer:    NewPositionBuffer(genes, boundaries),
		generator: NewVariantGenerator(reference),
		logger:    zap.NewNop(),
		finished:  make(map[string]bool),
	}
}

// SetLogger sets the logger for the processor and its variant generator.
func (p *Processor) SetLogger(l *zap.Logger) {
	p.logger = l
	p.generator.SetLogger(l)
}

// SetKeepOriginals makes the processor return every original record, even
// when recomposed records fully express its calls. Output that omits
// recomposed records needs this to keep the phased calls.
func (p *Processor) SetKeepOriginals(keep bool) {
	p.keepOriginals = keep
}

// Stats returns counters accumulated so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

// ProcessPosition adds pos to the stream. It returns the records of a window
// completed by pos, in position order, or nil while the window is still open.
func (p *Processor) ProcessPosition(pos *vcf.Position) ([]*vcf.Position, error) {
	if p.closed {
		return nil, ErrProcessorClosed
	}
	if err := p.checkOrder(pos); err != nil {
		return nil, err
	}
	p.stats.Positions++

	window := p.buffer.Add(pos)
	if window.Len() == 0 {
		return nil, nil
	}
	return p.process(window)
}

// Flush processes the last open window. Further calls to ProcessPosition
// fail with ErrProcessorClosed; repeated Flush calls return nothing.
func (p *Processor) Flush() ([]*vcf.Position, error) {
	if p.closed {
		return nil, nil
	}
	p.closed = true

	window := p.buffer.Flush()
	if window.Len() == 0 {
		return nil, nil
	}
	return p.process(window)
}

func (p *Processor) checkOrder(pos *vcf.Position) error {
	if !p.started {
		p.started = true
		p.lastChrom, p.lastStart = pos.Chrom, pos.Start
		return nil
	}

	if pos.Chrom == p.lastChrom {
		if pos.Start < p.lastStart {
			return &OrderError{Chrom: pos.Chrom, Start: pos.Start, PrevChrom: p.lastChrom, PrevStart: p.lastStart}
		}
	} else {
		if p.finished[pos.Chrom] {
			return &OrderError{Chrom: pos.Chrom, Start: pos.Start, PrevChrom: p.lastChrom, PrevStart: p.lastStart}
		}
		p.finished[p.lastChrom] = true
	}
	p.lastChrom, p.lastStart = pos.Chrom, pos.Start
	return nil
}

// process recomposes one completed window. Originals whose calls are fully
// expressed by recomposed records are dropped; the rest are returned
// unchanged, ahead of recomposed records sharing their start.
func (p *Processor) process(window Window) ([]*vcf.Position, error) {
	p.stats.Windows++

	positions, indexes := window.RecomposablePositions()
	if len(positions) < 2 {
		return window.Positions, nil
	}
	p.stats.RecomposableWindows++

	set, err := NewPositionSet(positions, window.FunctionBlockRanges)
	if err != nil {
		return nil, err
	}
	if set.Blocks.Len() == 0 {
		return window.Positions, nil
	}

	result, err := p.generator.Recompose(set)
	if err != nil {
		return nil, err
	}
	p.stats.SkippedCandidates += result.Skipped

	drop := make([]bool, window.Len())
	for i, subsumed := range result.Subsumed {
		if subsumed && !p.keepOriginals {
			drop[indexes[i]] = true
			p.stats.Subsumed++
		}
	}

	out := make([]*vcf.Position, 0, window.Len()+len(result.Records))
	for i, pos := range window.Positions {
		if !drop[i] {
			out = append(out, pos)
		}
	}
	out = append(out, result.Records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	p.stats.Recomposed += len(result.Records)

	p.logger.Debug("window recomposed",
		zap.String("chrom", set.Chrom()),
		zap.Int64("start", window.Positions[0].Start),
		zap.Int64("end", window.Positions[window.Len()-1].End()),
		zap.Int("positions", window.Len()),
		zap.Int("blocks", set.Blocks.Len()),
		zap.Int("recomposed", len(result.Records)))
	return out, nil
}
