package colfile

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// projection is a list of top-level fields in output order, plus the leaf
// columns needed to decode them.
type projection struct {
	schema *arrow.Schema

	// leaves are the file leaf column indices to decode, ascending.
	leaves []int

	// tablePos[i] is where output field i lands in a decoded table. Tables
	// come back in ascending file field order.
	tablePos []int
}

func newProjection(file *arrow.Schema, manifest *pqarrow.SchemaManifest, names []string) (*projection, error) {
	var fields []int
	if len(names) == 0 {
		fields = make([]int, file.NumFields())
		for i := range fields {
			fields[i] = i
		}
	} else {
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if seen[name] {
				return nil, fmt.Errorf("%w: column %q selected twice", ErrInvalidArgument, name)
			}
			seen[name] = true
			idx := file.FieldIndices(name)
			switch len(idx) {
			case 0:
				return nil, fmt.Errorf("%w: no column named %q", ErrInvalidArgument, name)
			case 1:
				fields = append(fields, idx[0])
			default:
				return nil, fmt.Errorf("%w: column name %q is ambiguous", ErrInvalidArgument, name)
			}
		}
	}

	sorted := append([]int(nil), fields...)
	sort.Ints(sorted)
	rank := make(map[int]int, len(sorted))
	var leaves []int
	for i, f := range sorted {
		rank[f] = i
		leaves = leafColumns(manifest.Fields[f], leaves)
	}
	sort.Ints(leaves)

	out := make([]arrow.Field, len(fields))
	pos := make([]int, len(fields))
	for i, f := range fields {
		out[i] = file.Field(f)
		pos[i] = rank[f]
	}
	md := file.Metadata()
	return &projection{
		schema:   arrow.NewSchema(out, &md),
		leaves:   leaves,
		tablePos: pos,
	}, nil
}

func leafColumns(f pqarrow.SchemaField, out []int) []int {
	if len(f.Children) == 0 {
		if f.ColIndex >= 0 {
			out = append(out, f.ColIndex)
		}
		return out
	}
	for _, c := range f.Children {
		out = leafColumns(c, out)
	}
	return out
}
