package colfile

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// ValidateSchema rejects schemas the file format cannot store: empty
// schemas and any field whose type, at any depth, has no column mapping.
func ValidateSchema(sc *arrow.Schema) error {
	if sc == nil || sc.NumFields() == 0 {
		return fmt.Errorf("%w: schema has no fields", ErrInvalidArgument)
	}
	for _, f := range sc.Fields() {
		if err := validateType(f.Name, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func validateType(path string, dt arrow.DataType) error {
	switch dt.ID() {
	case arrow.SPARSE_UNION, arrow.DENSE_UNION,
		arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO,
		arrow.RUN_END_ENCODED,
		arrow.LIST_VIEW, arrow.LARGE_LIST_VIEW,
		arrow.STRING_VIEW, arrow.BINARY_VIEW:
		return fmt.Errorf("%w: field %q has type %s", ErrUnsupportedType, path, dt)
	}

	switch t := dt.(type) {
	case *arrow.StructType:
		for _, f := range t.Fields() {
			if err := validateType(path+"."+f.Name, f.Type); err != nil {
				return err
			}
		}
	case *arrow.MapType:
		if err := validateType(path+".key", t.KeyType()); err != nil {
			return err
		}
		return validateType(path+".value", t.ItemType())
	case *arrow.ListType:
		return validateType(path+"[]", t.Elem())
	case *arrow.LargeListType:
		return validateType(path+"[]", t.Elem())
	case *arrow.FixedSizeListType:
		return validateType(path+"[]", t.Elem())
	case *arrow.DictionaryType:
		return validateType(path, t.ValueType)
	case arrow.ExtensionType:
		return validateType(path, t.StorageType())
	}
	return nil
}
