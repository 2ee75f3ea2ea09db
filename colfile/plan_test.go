package colfile

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
)

func TestLocateRowSkipsEmptyRowGroups(t *testing.T) {
	offsets := []int64{0, 0, 5, 5, 8}

	rg, off := locateRow(offsets, 0)
	require.Equal(t, 1, rg)
	require.Equal(t, int64(0), off)

	rg, off = locateRow(offsets, 5)
	require.Equal(t, 3, rg)
	require.Equal(t, int64(0), off)

	rg, off = locateRow(offsets, 7)
	require.Equal(t, 3, rg)
	require.Equal(t, int64(2), off)
}

func TestPlanRange(t *testing.T) {
	offsets := []int64{0, 3, 7, 10}
	tasks := planRange(offsets, 4)
	require.Len(t, tasks, 3)

	require.Equal(t, []span{{0, 0, 3}, {1, 0, 1}}, tasks[0].spans)
	require.Equal(t, []span{{1, 1, 4}, {2, 0, 1}}, tasks[1].spans)
	require.Equal(t, []span{{2, 1, 3}}, tasks[2].spans)
	require.Equal(t, []int{1, 2}, tasks[1].rowGroups())

	var total int64
	for _, tk := range tasks {
		total += tk.numRows()
	}
	require.Equal(t, int64(10), total)

	require.Empty(t, planRange([]int64{0}, 4))
}

func TestPlanRows(t *testing.T) {
	offsets := []int64{0, 3, 7, 10}
	tasks := planRows(offsets, []uint32{9, 0, 4, 4}, 3)
	require.Len(t, tasks, 2)
	require.Equal(t, []rowRef{{2, 2}, {0, 0}, {1, 1}}, tasks[0].rows)
	require.Equal(t, []int{0, 1, 2}, tasks[0].rowGroups())
	require.Equal(t, []rowRef{{1, 1}}, tasks[1].rows)
	require.Equal(t, int64(1), tasks[1].numRows())
}

func TestSelectionValidate(t *testing.T) {
	require.NoError(t, FullRange().validate(0))
	require.NoError(t, Rows([]uint32{0, 9}).validate(10))
	require.ErrorIs(t, Rows([]uint32{10}).validate(10), ErrInvalidArgument)
	require.Equal(t, int64(2), Rows([]uint32{1, 1}).Len(10))
	require.Equal(t, int64(10), FullRange().Len(10))
}

func TestValidateSchema(t *testing.T) {
	require.ErrorIs(t, ValidateSchema(nil), ErrInvalidArgument)
	require.ErrorIs(t, ValidateSchema(arrow.NewSchema(nil, nil)), ErrInvalidArgument)

	ok := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
		{Name: "attrs", Type: arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Float64), Nullable: true},
	}, nil)
	require.NoError(t, ValidateSchema(ok))

	nested := arrow.NewSchema([]arrow.Field{
		{Name: "s", Type: arrow.StructOf(
			arrow.Field{Name: "ok", Type: arrow.PrimitiveTypes.Int32},
			arrow.Field{Name: "iv", Type: arrow.FixedWidthTypes.MonthInterval},
		)},
	}, nil)
	err := ValidateSchema(nested)
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Contains(t, err.Error(), `"s.iv"`)

	union := arrow.NewSchema([]arrow.Field{
		{Name: "u", Type: arrow.ListOf(arrow.SparseUnionOf(
			[]arrow.Field{{Name: "i", Type: arrow.PrimitiveTypes.Int32}},
			[]arrow.UnionTypeCode{0},
		))},
	}, nil)
	require.ErrorIs(t, ValidateSchema(union), ErrUnsupportedType)
}

func TestParseFormatVersion(t *testing.T) {
	for in, want := range map[string]FormatVersion{"1.0": FormatV1_0, "2.4": FormatV2_4, "v2.6": FormatV2_6} {
		got, err := ParseFormatVersion(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	for _, bad := range []string{"", "2", "2.x", "3.0"} {
		_, err := ParseFormatVersion(bad)
		require.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
	require.Equal(t, "2.6", DefaultFormatVersion.String())
}
