package colfile

import (
	"fmt"
	"sort"
)

// Selection picks the rows a stream returns.
type Selection struct {
	ids      []uint32
	explicit bool
}

// FullRange selects every row in file order.
func FullRange() Selection {
	return Selection{}
}

// Rows selects the given row ids, returned in the given order. Duplicates
// are returned as often as they appear.
func Rows(ids []uint32) Selection {
	return Selection{ids: append([]uint32(nil), ids...), explicit: true}
}

// IsFullRange reports whether s selects every row.
func (s Selection) IsFullRange() bool {
	return !s.explicit
}

// Len reports the number of selected rows out of total.
func (s Selection) Len(total int64) int64 {
	if !s.explicit {
		return total
	}
	return int64(len(s.ids))
}

func (s Selection) validate(total int64) error {
	for i, id := range s.ids {
		if int64(id) >= total {
			return fmt.Errorf("%w: row id %d at position %d is out of range for %d rows", ErrInvalidArgument, id, i, total)
		}
	}
	return nil
}

// span is a contiguous run [start, end) inside one row group.
type span struct {
	rowGroup int
	start    int64
	end      int64
}

// rowRef is one row addressed by row group and offset.
type rowRef struct {
	rowGroup int
	offset   int64
}

// batchTask is the work needed to build one output batch. Exactly one of
// spans and rows is set.
type batchTask struct {
	spans []span
	rows  []rowRef
}

func (t batchTask) numRows() int64 {
	if t.rows != nil {
		return int64(len(t.rows))
	}
	var n int64
	for _, s := range t.spans {
		n += s.end - s.start
	}
	return n
}

// rowGroups lists the distinct row groups the task touches, ascending.
func (t batchTask) rowGroups() []int {
	var out []int
	seen := make(map[int]bool)
	add := func(rg int) {
		if !seen[rg] {
			seen[rg] = true
			out = append(out, rg)
		}
	}
	for _, s := range t.spans {
		add(s.rowGroup)
	}
	for _, r := range t.rows {
		add(r.rowGroup)
	}
	sort.Ints(out)
	return out
}

// locateRow maps a global row to its row group and offset. offsets holds the
// first row of each row group followed by the total row count.
func locateRow(offsets []int64, row int64) (int, int64) {
	rg := sort.Search(len(offsets)-1, func(i int) bool { return offsets[i+1] > row })
	return rg, row - offsets[rg]
}

// planRange splits every row into batches of batchSize rows. The last batch
// may be shorter. Batches may cross row group boundaries.
func planRange(offsets []int64, batchSize int64) []batchTask {
	total := offsets[len(offsets)-1]
	var tasks []batchTask
	for start := int64(0); start < total; start += batchSize {
		end := min(start+batchSize, total)
		var t batchTask
		for row := start; row < end; {
			rg, off := locateRow(offsets, row)
			take := min(end, offsets[rg+1]) - row
			t.spans = append(t.spans, span{rowGroup: rg, start: off, end: off + take})
			row += take
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// planRows splits an explicit id list into batches of batchSize rows,
// keeping the caller's order.
func planRows(offsets []int64, ids []uint32, batchSize int64) []batchTask {
	var tasks []batchTask
	for start := 0; start < len(ids); start += int(batchSize) {
		end := min(start+int(batchSize), len(ids))
		rows := make([]rowRef, 0, end-start)
		for _, id := range ids[start:end] {
			rg, off := locateRow(offsets, int64(id))
			rows = append(rows, rowRef{rowGroup: rg, offset: off})
		}
		tasks = append(tasks, batchTask{rows: rows})
	}
	return tasks
}
