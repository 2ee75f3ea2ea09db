package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/isesword/colfile-go-bridge/colfile"
	"github.com/isesword/colfile-go-bridge/internal/config"
	"github.com/isesword/colfile-go-bridge/internal/logging"
)

const usage = `usage:
  colfile-go-bridge demo <uri>            write a small sample file and read it back
  colfile-go-bridge inspect <uri> [rows]  print schema, row count, version and the first rows`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLogger(logging.New(os.Stderr, cfg.LogLevel))

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	uri := os.Args[2]

	switch os.Args[1] {
	case "demo":
		if err := runDemo(ctx, uri); err != nil {
			log.Fatalf("Demo failed: %v", err)
		}
	case "inspect":
		limit := 10
		if len(os.Args) > 3 {
			limit, err = strconv.Atoi(os.Args[3])
			if err != nil || limit < 0 {
				log.Fatalf("Invalid row count %q", os.Args[3])
			}
		}
		if err := inspect(ctx, uri, limit); err != nil {
			log.Fatalf("Inspect failed: %v", err)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runDemo(ctx context.Context, uri string) error {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	fmt.Println("1. Writing sample file...")
	w, err := colfile.CreateWithOptions(ctx, uri, schema, colfile.WriterOptions{
		MaxRowGroupLength: 4,
		Metadata:          map[string]string{"origin": "demo"},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	names := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi", "ivan", "judy"}
	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()
	for start := 0; start < len(names); start += 5 {
		for i := start; i < start+5 && i < len(names); i++ {
			bldr.Field(0).(*array.Int64Builder).Append(int64(i))
			bldr.Field(1).(*array.StringBuilder).Append(names[i])
			if i%3 == 0 {
				bldr.Field(2).(*array.Float64Builder).AppendNull()
			} else {
				bldr.Field(2).(*array.Float64Builder).Append(float64(i) * 1.5)
			}
		}
		rec := bldr.NewRecord()
		err := w.Write(ctx, rec)
		rec.Release()
		if err != nil {
			return err
		}
		fmt.Printf("   wrote %d rows, %d bytes so far\n", w.Rows(), w.Tell())
	}
	rows, err := w.Finish(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("   finished with %d rows\n", rows)

	fmt.Println("\n2. Reading it back...")
	if err := inspect(ctx, uri, len(names)); err != nil {
		return err
	}

	fmt.Println("\n3. Reading rows [7 2 5] of column name...")
	r, err := colfile.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer r.Close()
	s, err := r.ReadStream(ctx, colfile.StreamOptions{
		BatchSize: 2,
		Readahead: 1,
		Columns:   []string{"name"},
		Selection: colfile.Rows([]uint32{7, 2, 5}),
	})
	if err != nil {
		return err
	}
	defer s.Close()
	return printStream(ctx, s, -1)
}

func inspect(ctx context.Context, uri string, limit int) error {
	r, err := colfile.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("   format version: %s\n", r.FormatVersion())
	fmt.Printf("   rows: %d in %d row groups\n", r.NumRows(), r.NumRowGroups())
	fmt.Println("   schema:")
	for _, f := range r.Schema().Fields() {
		fmt.Printf("     %s: %s (nullable=%t)\n", f.Name, f.Type, f.Nullable)
	}
	if md := r.Metadata(); len(md) > 0 {
		fmt.Println("   metadata:")
		for k, v := range md {
			fmt.Printf("     %s = %s\n", k, v)
		}
	}
	if limit == 0 || r.NumRows() == 0 {
		return nil
	}

	s, err := r.ReadStream(ctx, colfile.StreamOptions{BatchSize: 1024, Readahead: 2})
	if err != nil {
		return err
	}
	defer s.Close()
	return printStream(ctx, s, limit)
}

// printStream prints up to limit rows of s; a negative limit prints all.
func printStream(ctx context.Context, s *colfile.Stream, limit int) error {
	header := make([]string, 0, s.Schema().NumFields())
	for _, f := range s.Schema().Fields() {
		header = append(header, f.Name)
	}
	fmt.Printf("   %s\n", strings.Join(header, "\t"))

	printed := 0
	for limit < 0 || printed < limit {
		rec, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		for i := 0; i < int(rec.NumRows()) && (limit < 0 || printed < limit); i++ {
			cells := make([]string, rec.NumCols())
			for c := range cells {
				cells[c] = rec.Column(c).ValueStr(i)
			}
			fmt.Printf("   %s\n", strings.Join(cells, "\t"))
			printed++
		}
		rec.Release()
	}
	return nil
}
