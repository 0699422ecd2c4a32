package cache

import "sort"

// IntervalTree provides O(log n + k) overlap queries using a sorted-slice approach.
// Transcripts are loaded once and never modified after build.
type IntervalTree struct {
	intervals []interval
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[i:]
}

type interval struct {
	start      int64
	end        int64
	transcript *Transcript
}

// BuildIntervalTree creates an interval tree from a slice of transcripts.
func BuildIntervalTree(transcripts []*Transcript) *IntervalTree {
	if len(transcripts) == 0 {
		return &IntervalTree{}
	}

	intervals := make([]interval, len(transcripts))
	for i, t := range transcripts {
		intervals[i] = interval{start: t.Start, end: t.End, transcript: t}
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	maxEnd := make([]int64, len(intervals))
	maxEnd[len(intervals)-1] = intervals[len(intervals)-1].end
	for i := len(intervals) - 2; i >= 0; i-- {
		maxEnd[i] = max(intervals[i].end, maxEnd[i+1])
	}

	return &IntervalTree{intervals: intervals, maxEnd: maxEnd}
}

// Len returns the number of intervals in the tree.
func (t *IntervalTree) Len() int {
	return len(t.intervals)
}

// FindOverlaps returns all transcripts whose [Start, End] range contains pos.
func (t *IntervalTree) FindOverlaps(pos int64) []*Transcript {
	return t.FindRangeOverlaps(pos, pos)
}

// FindRangeOverlaps returns all transcripts sharing at least one base with [start, end].
func (t *IntervalTree) FindRangeOverlaps(start, end int64) []*Transcript {
	var result []*Transcript
	t.scan(start, end, func(tr *Transcript) bool {
		result = append(result, tr)
		return true
	})
	return result
}

// Overlaps reports whether any transcript shares a base with [start, end].
func (t *IntervalTree) Overlaps(start, end int64) bool {
	found := false
	t.scan(start, end, func(*Transcript) bool {
		found = true
		return false
	})
	return found
}

// scan calls fn for each overlapping transcript until fn returns false.
func (t *IntervalTree) scan(start, end int64, fn func(*Transcript) bool) {
	if len(t.intervals) == 0 {
		return
	}

	// Candidates are [0, hi): every interval starting after end is excluded.
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > end
	})

	for i := hi - 1; i >= 0; i-- {
		// No interval in 0..i reaches start.
		if t.maxEnd[i] < start {
			return
		}
		if t.intervals[i].end >= start && !fn(t.intervals[i].transcript) {
			return
		}
	}
}
