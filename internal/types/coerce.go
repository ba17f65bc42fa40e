package types

import (
	"fmt"
	"math"

	"github.com/siodb/iomgr/internal/ioerr"
)

// Coerce casts v to the target data type, per spec §4.6 write_record step
// 2. An incompatible cast fails with IncompatibleDataType (a user error:
// the caller supplied a value of the wrong shape, not an engine bug).
func Coerce(v Value, target DataType) (Value, error) {
	if v.IsNull {
		return NullValue(target), nil
	}
	if v.Type == target {
		return v, nil
	}
	switch target {
	case Bool:
		b, err := toBool(v)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: Bool, Bool: b}, nil
	case Int8, Int16, Int32, Int64:
		i, err := toInt(v)
		if err != nil {
			return Value{}, err
		}
		if err := rangeCheckSigned(target, i); err != nil {
			return Value{}, err
		}
		return Value{Type: target, Int: i}, nil
	case UInt8, UInt16, UInt32, UInt64:
		u, err := toUint(v)
		if err != nil {
			return Value{}, err
		}
		if err := rangeCheckUnsigned(target, u); err != nil {
			return Value{}, err
		}
		return Value{Type: target, UInt: u}, nil
	case Float:
		f, err := toFloat(v)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: Float, Float32: float32(f)}, nil
	case Double:
		f, err := toFloat(v)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: Double, Float64: f}, nil
	case Text:
		return Value{}, incompatible(v.Type, target)
	case Binary:
		return Value{}, incompatible(v.Type, target)
	case Timestamp:
		return Value{}, incompatible(v.Type, target)
	default:
		return Value{}, incompatible(v.Type, target)
	}
}

func incompatible(from, to DataType) error {
	return ioerr.Userf("IncompatibleDataType", "cannot cast %s to %s", from, to)
}

func toBool(v Value) (bool, error) {
	switch v.Type {
	case Bool:
		return v.Bool, nil
	case Int8, Int16, Int32, Int64:
		return v.Int != 0, nil
	case UInt8, UInt16, UInt32, UInt64:
		return v.UInt != 0, nil
	default:
		return false, incompatible(v.Type, Bool)
	}
}

func toInt(v Value) (int64, error) {
	switch v.Type {
	case Bool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case Int8, Int16, Int32, Int64:
		return v.Int, nil
	case UInt8, UInt16, UInt32, UInt64:
		if v.UInt > math.MaxInt64 {
			return 0, ioerr.Userf("IncompatibleDataType", "value %d overflows signed integer", v.UInt)
		}
		return int64(v.UInt), nil
	case Float:
		return int64(v.Float32), nil
	case Double:
		return int64(v.Float64), nil
	default:
		return 0, incompatible(v.Type, Int64)
	}
}

func toUint(v Value) (uint64, error) {
	switch v.Type {
	case Bool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case Int8, Int16, Int32, Int64:
		if v.Int < 0 {
			return 0, ioerr.Userf("IncompatibleDataType", "negative value %d cannot be cast to unsigned", v.Int)
		}
		return uint64(v.Int), nil
	case UInt8, UInt16, UInt32, UInt64:
		return v.UInt, nil
	case Float:
		return uint64(v.Float32), nil
	case Double:
		return uint64(v.Float64), nil
	default:
		return 0, incompatible(v.Type, UInt64)
	}
}

func toFloat(v Value) (float64, error) {
	switch v.Type {
	case Int8, Int16, Int32, Int64:
		return float64(v.Int), nil
	case UInt8, UInt16, UInt32, UInt64:
		return float64(v.UInt), nil
	case Float:
		return float64(v.Float32), nil
	case Double:
		return v.Float64, nil
	default:
		return 0, incompatible(v.Type, Double)
	}
}

func rangeCheckSigned(target DataType, i int64) error {
	var lo, hi int64
	switch target {
	case Int8:
		lo, hi = math.MinInt8, math.MaxInt8
	case Int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case Int32:
		lo, hi = math.MinInt32, math.MaxInt32
	case Int64:
		return nil
	}
	if i < lo || i > hi {
		return ioerr.Userf("IncompatibleDataType", "value %d out of range for %s", i, target)
	}
	return nil
}

func rangeCheckUnsigned(target DataType, u uint64) error {
	var hi uint64
	switch target {
	case UInt8:
		hi = math.MaxUint8
	case UInt16:
		hi = math.MaxUint16
	case UInt32:
		hi = math.MaxUint32
	case UInt64:
		return nil
	}
	if u > hi {
		return ioerr.Userf("IncompatibleDataType", "value %d out of range for %s", u, target)
	}
	return nil
}

// MustInt is a test/debug helper formatting a coercion error context.
func MustInt(v Value) int64 {
	i, err := toInt(v)
	if err != nil {
		panic(fmt.Sprintf("MustInt: %v", err))
	}
	return i
}
