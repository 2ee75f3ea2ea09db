package colfile

import (
	"context"
	"strconv"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"golang.org/x/sync/singleflight"
)

// decodedRowGroup holds one row group decoded for a projection, one array per
// decoded column in table order.
type decodedRowGroup struct {
	cols []arrow.Array
}

func (d *decodedRowGroup) release() {
	for _, c := range d.cols {
		c.Release()
	}
	d.cols = nil
}

// rowGroupCache decodes each row group of a stream at most once while batch
// tasks still need it. Entries are dropped when the last task referencing
// them is done.
type rowGroupCache struct {
	fr     *pqarrow.FileReader
	leaves []int
	mem    memory.Allocator
	group  singleflight.Group

	mu      sync.Mutex
	entries map[int]*decodedRowGroup
	refs    map[int]int
	closed  bool
}

func newRowGroupCache(fr *pqarrow.FileReader, leaves []int, mem memory.Allocator, tasks []batchTask) *rowGroupCache {
	c := &rowGroupCache{
		fr:      fr,
		leaves:  leaves,
		mem:     mem,
		entries: make(map[int]*decodedRowGroup),
		refs:    make(map[int]int),
	}
	for _, t := range tasks {
		for _, rg := range t.rowGroups() {
			c.refs[rg]++
		}
	}
	return c
}

// get returns row group rg, decoding it if no task has yet. Concurrent
// callers for the same row group share one decode.
func (c *rowGroupCache) get(ctx context.Context, rg int) (*decodedRowGroup, error) {
	if e, err := c.lookup(rg); e != nil || err != nil {
		return e, err
	}
	v, err, _ := c.group.Do(strconv.Itoa(rg), func() (any, error) {
		if e, err := c.lookup(rg); e != nil || err != nil {
			return e, err
		}
		e, err := c.decode(ctx, rg)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			e.release()
			return nil, ErrStreamClosed
		}
		c.entries[rg] = e
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*decodedRowGroup), nil
}

func (c *rowGroupCache) lookup(rg int) (*decodedRowGroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrStreamClosed
	}
	return c.entries[rg], nil
}

func (c *rowGroupCache) decode(ctx context.Context, rg int) (*decodedRowGroup, error) {
	tbl, err := c.fr.ReadRowGroups(ctx, c.leaves, []int{rg})
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	e := &decodedRowGroup{cols: make([]arrow.Array, 0, tbl.NumCols())}
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		chunks := col.Data().Chunks()
		switch len(chunks) {
		case 0:
			e.cols = append(e.cols, array.MakeArrayOfNull(c.mem, col.DataType(), 0))
		case 1:
			chunks[0].Retain()
			e.cols = append(e.cols, chunks[0])
		default:
			arr, err := array.Concatenate(chunks, c.mem)
			if err != nil {
				e.release()
				return nil, err
			}
			e.cols = append(e.cols, arr)
		}
	}
	return e, nil
}

// done records that one task no longer needs rg.
func (c *rowGroupCache) done(rg int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[rg]--
	if c.refs[rg] > 0 {
		return
	}
	delete(c.refs, rg)
	if e, ok := c.entries[rg]; ok {
		e.release()
		delete(c.entries, rg)
	}
}

// close drops every entry. Later gets fail with ErrStreamClosed.
func (c *rowGroupCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for rg, e := range c.entries {
		e.release()
		delete(c.entries, rg)
	}
}
