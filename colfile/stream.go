package colfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"

	"github.com/isesword/colfile-go-bridge/internal/logging"
	"github.com/isesword/colfile-go-bridge/internal/rt"
)

// StreamOptions configure ReadStream.
type StreamOptions struct {
	// BatchSize is the number of rows per batch. Every batch but the last
	// has exactly this many rows. Must be positive.
	BatchSize uint32

	// Readahead is the number of batches decoded ahead of the consumer.
	// Zero decodes each batch on demand.
	Readahead uint32

	// Columns are top-level column names in output order. Empty means all.
	Columns []string

	// Selection picks the rows to return. The zero value is FullRange.
	Selection Selection
}

// Stream is a forward-only cursor over batches of a Reader. It is not safe
// for concurrent use.
type Stream struct {
	id        string
	reader    *Reader
	proj      *projection
	cache     *rowGroupCache
	tasks     []batchTask
	next      int
	inflight  []*rt.Future[arrow.RecordBatch]
	readahead int
	runtime   *rt.Runtime
	mem       memory.Allocator
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger

	eof    bool
	err    error
	closed bool
}

// ReadStream starts a stream over r. The stream keeps r's file open until it
// is closed, even if r is closed first.
func (r *Reader) ReadStream(ctx context.Context, opts StreamOptions) (*Stream, error) {
	if opts.BatchSize == 0 {
		return nil, opErr(StageReadStream, r.uri, fmt.Errorf("%w: batch size must be positive", ErrInvalidArgument))
	}
	if err := ctx.Err(); err != nil {
		return nil, opErr(StageReadStream, r.uri, err)
	}

	proj, err := newProjection(r.schema, r.manifest, opts.Columns)
	if err != nil {
		return nil, opErr(StageProjection, r.uri, err)
	}
	total := r.offsets[len(r.offsets)-1]
	if err := opts.Selection.validate(total); err != nil {
		return nil, opErr(StageSelection, r.uri, err)
	}

	runtime, err := rt.Default()
	if err != nil {
		return nil, opErr(StageReadStream, r.uri, err)
	}
	if err := r.acquire(); err != nil {
		return nil, opErr(StageReadStream, r.uri, err)
	}
	fr, err := r.fileReader()
	if err != nil {
		r.releaseStream()
		return nil, opErr(StageReadStream, r.uri, err)
	}

	var tasks []batchTask
	if opts.Selection.IsFullRange() {
		tasks = planRange(r.offsets, int64(opts.BatchSize))
	} else {
		tasks = planRows(r.offsets, opts.Selection.ids, int64(opts.BatchSize))
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		id:        uuid.NewString(),
		reader:    r,
		proj:      proj,
		cache:     newRowGroupCache(fr, proj.leaves, r.mem, tasks),
		tasks:     tasks,
		readahead: int(opts.Readahead),
		runtime:   runtime,
		mem:       r.mem,
		ctx:       sctx,
		cancel:    cancel,
	}
	s.log = logging.WithStream(r.uri, s.id)
	s.log.Debug("stream opened",
		"batches", len(tasks),
		"rows", opts.Selection.Len(total),
		"columns", proj.schema.NumFields(),
		"readahead", opts.Readahead)
	return s, nil
}

// Schema returns the projected schema of every batch.
func (s *Stream) Schema() *arrow.Schema {
	return s.proj.schema
}

// Next returns the next batch, or io.EOF once the stream is exhausted. EOF
// and errors are sticky: every later call returns the same result. The
// caller owns the returned record and must Release it.
func (s *Stream) Next(ctx context.Context) (arrow.RecordBatch, error) {
	switch {
	case s.closed:
		return nil, ErrStreamClosed
	case s.err != nil:
		return nil, s.err
	case s.eof:
		return nil, io.EOF
	}

	s.schedule(1)
	if len(s.inflight) == 0 {
		s.eof = true
		s.log.Debug("stream exhausted")
		return nil, io.EOF
	}
	head := s.inflight[0]
	s.inflight = s.inflight[1:]
	s.schedule(s.readahead)

	rec, err := head.Wait(ctx)
	if err != nil {
		if rec != nil {
			rec.Release()
		}
		if ctx.Err() != nil {
			// The task may still finish; keep it so Close can release it.
			s.inflight = append([]*rt.Future[arrow.RecordBatch]{head}, s.inflight...)
			return nil, err
		}
		s.err = err
		s.log.Debug("stream failed", "error", err)
		return nil, err
	}
	return rec, nil
}

// schedule keeps up to n batch tasks in flight.
func (s *Stream) schedule(n int) {
	for len(s.inflight) < n && s.next < len(s.tasks) {
		t := s.tasks[s.next]
		s.next++
		s.inflight = append(s.inflight, rt.Go(s.ctx, s.runtime, func(ctx context.Context) (arrow.RecordBatch, error) {
			return s.build(ctx, t)
		}))
	}
}

// Close stops read-ahead, waits for tasks in flight and drops their batches.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	for _, f := range s.inflight {
		if rec, err := f.Wait(context.Background()); err == nil && rec != nil {
			rec.Release()
		}
	}
	s.inflight = nil
	s.cache.close()
	s.reader.releaseStream()
	s.log.Debug("stream closed")
	return nil
}

// build materialises one batch.
func (s *Stream) build(ctx context.Context, t batchTask) (arrow.RecordBatch, error) {
	rgs := t.rowGroups()
	defer func() {
		for _, rg := range rgs {
			s.cache.done(rg)
		}
	}()

	decoded, err := s.decodeAll(ctx, rgs)
	if err != nil {
		return nil, err
	}

	cols := make([]arrow.Array, 0, len(s.proj.tablePos))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for _, pos := range s.proj.tablePos {
		var col arrow.Array
		if t.rows != nil {
			col, err = s.takeRows(ctx, decoded, rgs, pos, t.rows)
		} else {
			col, err = s.sliceSpans(decoded, pos, t.spans)
		}
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return array.NewRecordBatch(s.proj.schema, cols, t.numRows()), nil
}

// decodeAll fetches the row groups a batch touches as runtime tasks, so a
// batch spanning several row groups decodes them in parallel.
func (s *Stream) decodeAll(ctx context.Context, rgs []int) (map[int]*decodedRowGroup, error) {
	futures := make([]*rt.Future[*decodedRowGroup], len(rgs))
	for i, rg := range rgs {
		futures[i] = rt.Go(ctx, s.runtime, func(ctx context.Context) (*decodedRowGroup, error) {
			return s.cache.get(ctx, rg)
		})
	}

	out := make(map[int]*decodedRowGroup, len(rgs))
	var firstErr error
	for i, f := range futures {
		d, err := f.Wait(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[rgs[i]] = d
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *Stream) sliceSpans(decoded map[int]*decodedRowGroup, pos int, spans []span) (arrow.Array, error) {
	if len(spans) == 1 {
		sp := spans[0]
		return array.NewSlice(decoded[sp.rowGroup].cols[pos], sp.start, sp.end), nil
	}
	parts := make([]arrow.Array, len(spans))
	for i, sp := range spans {
		parts[i] = array.NewSlice(decoded[sp.rowGroup].cols[pos], sp.start, sp.end)
	}
	defer releaseAll(parts)
	return array.Concatenate(parts, s.mem)
}

func (s *Stream) takeRows(ctx context.Context, decoded map[int]*decodedRowGroup, rgs []int, pos int, rows []rowRef) (arrow.Array, error) {
	// Row groups are laid end to end in rgs order; base[rg] is where rg starts.
	base := make(map[int]int64, len(rgs))
	var values arrow.Array
	if len(rgs) == 1 {
		values = decoded[rgs[0]].cols[pos]
		values.Retain()
		base[rgs[0]] = 0
	} else {
		parts := make([]arrow.Array, len(rgs))
		var n int64
		for i, rg := range rgs {
			parts[i] = decoded[rg].cols[pos]
			base[rg] = n
			n += int64(parts[i].Len())
		}
		var err error
		if values, err = array.Concatenate(parts, s.mem); err != nil {
			return nil, err
		}
	}
	defer values.Release()

	bldr := array.NewInt64Builder(s.mem)
	defer bldr.Release()
	bldr.Reserve(len(rows))
	for _, r := range rows {
		bldr.UnsafeAppend(base[r.rowGroup] + r.offset)
	}
	indices := bldr.NewInt64Array()
	defer indices.Release()

	return compute.TakeArray(compute.WithAllocator(ctx, s.mem), values, indices)
}

func releaseAll(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}
