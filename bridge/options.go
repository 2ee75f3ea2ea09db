package bridge

import (
	"fmt"
	"math"
	"unsafe"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/isesword/colfile-go-bridge/colfile"
)

// Writer option keys in the serialized google.protobuf.Struct.
const (
	OptFormatVersion     = "format_version"
	OptCompression       = "compression"
	OptMaxRowGroupLength = "max_row_group_length"
	OptMetadata          = "metadata"
)

// DecodeWriterOptions parses a serialized google.protobuf.Struct. Empty
// input yields the defaults.
func DecodeWriterOptions(data []byte) (colfile.WriterOptions, error) {
	var opts colfile.WriterOptions
	if len(data) == 0 {
		return opts, nil
	}
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return opts, fmt.Errorf("decode options: %w", err)
	}

	for key, v := range st.GetFields() {
		switch key {
		case OptFormatVersion:
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return opts, fmt.Errorf("option %s must be a string", key)
			}
			fv, err := colfile.ParseFormatVersion(s.StringValue)
			if err != nil {
				return opts, err
			}
			opts.FormatVersion = fv
		case OptCompression:
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return opts, fmt.Errorf("option %s must be a string", key)
			}
			if _, err := colfile.ParseCompression(s.StringValue); err != nil {
				return opts, err
			}
			opts.Compression = s.StringValue
		case OptMaxRowGroupLength:
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok || n.NumberValue < 1 || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue > math.MaxInt64 {
				return opts, fmt.Errorf("option %s must be a positive integer", key)
			}
			opts.MaxRowGroupLength = int64(n.NumberValue)
		case OptMetadata:
			s, ok := v.GetKind().(*structpb.Value_StructValue)
			if !ok {
				return opts, fmt.Errorf("option %s must be a struct", key)
			}
			opts.Metadata = make(map[string]string, len(s.StructValue.GetFields()))
			for mk, mv := range s.StructValue.GetFields() {
				str, ok := mv.GetKind().(*structpb.Value_StringValue)
				if !ok {
					return opts, fmt.Errorf("metadata value for %q must be a string", mk)
				}
				opts.Metadata[mk] = str.StringValue
			}
		default:
			return opts, fmt.Errorf("unknown option %q", key)
		}
	}
	return opts, nil
}

// EncodeWriterOptions is the inverse of DecodeWriterOptions, for Go callers
// and tests.
func EncodeWriterOptions(opts colfile.WriterOptions) ([]byte, error) {
	fields := map[string]any{}
	if !opts.FormatVersion.IsZero() {
		fields[OptFormatVersion] = opts.FormatVersion.String()
	}
	if opts.Compression != "" {
		fields[OptCompression] = opts.Compression
	}
	if opts.MaxRowGroupLength > 0 {
		fields[OptMaxRowGroupLength] = float64(opts.MaxRowGroupLength)
	}
	if len(opts.Metadata) > 0 {
		md := make(map[string]any, len(opts.Metadata))
		for k, v := range opts.Metadata {
			md[k] = v
		}
		fields[OptMetadata] = md
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

func optionBytes(ptr unsafe.Pointer, n uintptr) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}
