package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// Value is one typed cell of a tuple. All scalar kinds are kept in a single
// struct with a type tag so that expression evaluation and index keys can
// handle them uniformly.
type Value struct {
	valueType TypeID
	boolean   bool
	integer   int32
	float     float32
	varchar   string
}

func NewBoolean(value bool) Value {
	return Value{valueType: Boolean, boolean: value}
}

func NewInteger(value int32) Value {
	return Value{valueType: Integer, integer: value}
}

func NewFloat(value float32) Value {
	return Value{valueType: Float, float: value}
}

func NewVarchar(value string) Value {
	return Value{valueType: Varchar, varchar: value}
}

func (v Value) ValueType() TypeID {
	return v.valueType
}

func (v Value) ToBoolean() bool {
	return v.boolean
}

func (v Value) ToInteger() int32 {
	return v.integer
}

func (v Value) ToFloat() float32 {
	return v.float
}

func (v Value) ToVarchar() string {
	return v.varchar
}

// ToFloat64 widens any numeric value. Used by histogram interpolation on the
// statistics side, where only the relative position inside a bucket matters.
func (v Value) ToFloat64() float64 {
	switch v.valueType {
	case Integer:
		return float64(v.integer)
	case Float:
		return float64(v.float)
	case Boolean:
		if v.boolean {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// CompareTo returns -1, 0 or 1. Both values must share a type; the resolved
// query tree guarantees operand types were coerced by the analyzer already.
func (v Value) CompareTo(right Value) int {
	switch v.valueType {
	case Boolean:
		l, r := btoi(v.boolean), btoi(right.boolean)
		return cmpInt(int32(l), int32(r))
	case Integer:
		return cmpInt(v.integer, right.integer)
	case Float:
		if v.float < right.float {
			return -1
		} else if v.float > right.float {
			return 1
		}
		return 0
	case Varchar:
		return bytes.Compare([]byte(v.varchar), []byte(right.varchar))
	default:
		panic("comparison on invalid typed value")
	}
}

func (v Value) CompareEquals(right Value) bool {
	return v.CompareTo(right) == 0
}

func (v Value) CompareNotEquals(right Value) bool {
	return v.CompareTo(right) != 0
}

func (v Value) CompareGreaterThan(right Value) bool {
	return v.CompareTo(right) > 0
}

func (v Value) CompareGreaterThanOrEqual(right Value) bool {
	return v.CompareTo(right) >= 0
}

func (v Value) CompareLessThan(right Value) bool {
	return v.CompareTo(right) < 0
}

func (v Value) CompareLessThanOrEqual(right Value) bool {
	return v.CompareTo(right) <= 0
}

// Size returns the number of bytes Serialize will produce.
func (v Value) Size() uint32 {
	if v.valueType == Varchar {
		return 4 + uint32(len(v.varchar))
	}
	return v.valueType.Size()
}

func (v Value) Serialize() []byte {
	buf := new(bytes.Buffer)
	switch v.valueType {
	case Boolean:
		binary.Write(buf, binary.LittleEndian, v.boolean)
	case Integer:
		binary.Write(buf, binary.LittleEndian, v.integer)
	case Float:
		binary.Write(buf, binary.LittleEndian, v.float)
	case Varchar:
		binary.Write(buf, binary.LittleEndian, uint32(len(v.varchar)))
		buf.WriteString(v.varchar)
	}
	return buf.Bytes()
}

func NewValueFromBytes(data []byte, valueType TypeID) Value {
	buf := bytes.NewBuffer(data)
	switch valueType {
	case Boolean:
		var b bool
		binary.Read(buf, binary.LittleEndian, &b)
		return NewBoolean(b)
	case Integer:
		var i int32
		binary.Read(buf, binary.LittleEndian, &i)
		return NewInteger(i)
	case Float:
		var f float32
		binary.Read(buf, binary.LittleEndian, &f)
		return NewFloat(f)
	case Varchar:
		var length uint32
		binary.Read(buf, binary.LittleEndian, &length)
		return NewVarchar(string(buf.Next(int(length))))
	default:
		panic("deserialization of invalid typed value")
	}
}

// Hash is used as the bucket key of hash join and hash aggregation.
func (v Value) Hash() uint64 {
	return murmur3.Sum64(v.Serialize())
}

func (v Value) String() string {
	switch v.valueType {
	case Boolean:
		return fmt.Sprintf("%v", v.boolean)
	case Integer:
		return fmt.Sprintf("%d", v.integer)
	case Float:
		return fmt.Sprintf("%g", v.float)
	case Varchar:
		return v.varchar
	default:
		return "(invalid)"
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpInt(l int32, r int32) int {
	if l < r {
		return -1
	} else if l > r {
		return 1
	}
	return 0
}
