package hostiface

import "fmt"

// DataType is the host raster library's pixel type enumeration. The
// container stores it as an opaque u64 on disk; only ElementSize is
// consulted by the container's own code, mirroring how the original
// GDAL-style driver treats GDALDataType as something the host defines and
// the format merely persists.
type DataType uint64

const (
	Byte    DataType = 1
	UInt16  DataType = 2
	Int16   DataType = 3
	UInt32  DataType = 4
	Int32   DataType = 5
	Float32 DataType = 6
	Float64 DataType = 7
)

// ElementSize returns the byte width of a single pixel of this type.
func (d DataType) ElementSize() (int, error) {
	switch d {
	case Byte:
		return 1, nil
	case UInt16, Int16:
		return 2, nil
	case UInt32, Int32, Float32:
		return 4, nil
	case Float64:
		return 8, nil
	default:
		return 0, fmt.Errorf("hostiface: unknown data type %d", d)
	}
}

func (d DataType) String() string {
	switch d {
	case Byte:
		return "Byte"
	case UInt16:
		return "UInt16"
	case Int16:
		return "Int16"
	case UInt32:
		return "UInt32"
	case Int32:
		return "Int32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return fmt.Sprintf("DataType(%d)", uint64(d))
	}
}
