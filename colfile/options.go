package colfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
)

// FormatVersion is the on-disk format version a file is written at.
type FormatVersion struct {
	Major uint32
	Minor uint32
}

var (
	FormatV1_0 = FormatVersion{Major: 1, Minor: 0}
	FormatV2_4 = FormatVersion{Major: 2, Minor: 4}
	FormatV2_6 = FormatVersion{Major: 2, Minor: 6}

	// DefaultFormatVersion is the fixed version used by Create when none is given.
	DefaultFormatVersion = FormatV2_6
)

// formatVersionKey records the exact version in the file metadata, since
// the footer only keeps the major version.
const formatVersionKey = "colfile.format_version"

func (v FormatVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsZero reports whether no version was set.
func (v FormatVersion) IsZero() bool {
	return v == FormatVersion{}
}

// ParseFormatVersion parses "2.6" or "v2.6".
func ParseFormatVersion(s string) (FormatVersion, error) {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "v")
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return FormatVersion{}, fmt.Errorf("%w: format version %q", ErrInvalidArgument, s)
	}
	ma, err1 := strconv.ParseUint(major, 10, 32)
	mi, err2 := strconv.ParseUint(minor, 10, 32)
	if err1 != nil || err2 != nil {
		return FormatVersion{}, fmt.Errorf("%w: format version %q", ErrInvalidArgument, s)
	}
	v := FormatVersion{Major: uint32(ma), Minor: uint32(mi)}
	if _, err := v.parquetVersion(); err != nil {
		return FormatVersion{}, err
	}
	return v, nil
}

func (v FormatVersion) parquetVersion() (parquet.Version, error) {
	switch v {
	case FormatV1_0:
		return parquet.V1_0, nil
	case FormatV2_4:
		return parquet.V2_4, nil
	case FormatV2_6:
		return parquet.V2_6, nil
	default:
		return 0, fmt.Errorf("%w: unsupported format version %s", ErrInvalidArgument, v)
	}
}

func formatVersionOf(v parquet.Version) FormatVersion {
	switch v {
	case parquet.V1_0:
		return FormatV1_0
	case parquet.V2_4:
		return FormatV2_4
	default:
		return FormatV2_6
	}
}

var codecs = map[string]compress.Compression{
	"uncompressed": compress.Codecs.Uncompressed,
	"none":         compress.Codecs.Uncompressed,
	"snappy":       compress.Codecs.Snappy,
	"gzip":         compress.Codecs.Gzip,
	"zstd":         compress.Codecs.Zstd,
	"lz4_raw":      compress.Codecs.Lz4Raw,
	"brotli":       compress.Codecs.Brotli,
}

// ParseCompression maps a codec name to its compression setting.
func ParseCompression(name string) (compress.Compression, error) {
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidArgument, name)
	}
	return c, nil
}

// WriterOptions tune a new file. The zero value means defaults everywhere.
type WriterOptions struct {
	// FormatVersion defaults to DefaultFormatVersion.
	FormatVersion FormatVersion

	// Compression is a codec name, "snappy" when empty.
	Compression string

	// MaxRowGroupLength caps the rows per row group; 0 keeps the engine default.
	MaxRowGroupLength int64

	// Metadata is stored as file key/value metadata.
	Metadata map[string]string
}

func (o WriterOptions) writerProperties() (*parquet.WriterProperties, error) {
	fv := o.FormatVersion
	if fv.IsZero() {
		fv = DefaultFormatVersion
	}
	pv, err := fv.parquetVersion()
	if err != nil {
		return nil, err
	}

	codec := "snappy"
	if o.Compression != "" {
		codec = o.Compression
	}
	c, err := ParseCompression(codec)
	if err != nil {
		return nil, err
	}

	props := []parquet.WriterProperty{
		parquet.WithVersion(pv),
		parquet.WithCompression(c),
		parquet.WithCreatedBy("colfile-go-bridge"),
	}
	if o.MaxRowGroupLength < 0 {
		return nil, fmt.Errorf("%w: max row group length %d", ErrInvalidArgument, o.MaxRowGroupLength)
	}
	if o.MaxRowGroupLength > 0 {
		props = append(props, parquet.WithMaxRowGroupLength(o.MaxRowGroupLength))
	}
	return parquet.NewWriterProperties(props...), nil
}
