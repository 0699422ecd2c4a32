package recompose

import (
	"errors"
	"fmt"
)

// ErrProcessorClosed is returned when positions are fed after Flush.
var ErrProcessorClosed = errors.New("recompose: processor already flushed")

// OrderError reports input that is not coordinate-sorted.
type OrderError struct {
	Chrom     string
	Start     int64
	PrevChrom string
	PrevStart int64
}

func (e *OrderError) Error() string {
	if e.Chrom != e.PrevChrom {
		return fmt.Sprintf("input is not sorted: %s:%d appears after chromosome %s was finished (last record %s:%d)",
			e.Chrom, e.Start, e.Chrom, e.PrevChrom, e.PrevStart)
	}
	return fmt.Sprintf("input is not sorted: %s:%d appears after %s:%d", e.Chrom, e.Start, e.PrevChrom, e.PrevStart)
}

// ConsistencyError reports mismatched per-position arrays inside a window.
// It signals a defect in window construction, not bad input.
type ConsistencyError struct {
	Chrom   string
	Start   int64
	End     int64
	Message string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("recompose: inconsistent window %s:%d-%d: %s", e.Chrom, e.Start, e.End, e.Message)
}
