package pset

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the type of a parameter value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindDouble
	KindString
	KindVInt32
	KindVUint32
	KindVDouble
	KindVString
	KindPSet
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindDouble:  "double",
	KindString:  "string",
	KindVInt32:  "vint32",
	KindVUint32: "vuint32",
	KindVDouble: "vdouble",
	KindVString: "vstring",
	KindPSet:    "PSet",
}

// String returns the configuration-language name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsVector reports whether the kind holds an ordered sequence.
func (k Kind) IsVector() bool {
	switch k {
	case KindVInt32, KindVUint32, KindVDouble, KindVString:
		return true
	}
	return false
}

// ParseKind resolves a kind name as produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, s)
}

// Value is a typed parameter value. The zero Value is invalid.
type Value struct {
	kind Kind
	data any
}

// Constructors, one per kind. Vector constructors copy their input.

func BoolValue(v bool) Value { return Value{kind: KindBool, data: v} }
func Int32Value(v int32) Value { return Value{kind: KindInt32, data: v} }
func Uint32Value(v uint32) Value { return Value{kind: KindUint32, data: v} }
func DoubleValue(v float64) Value { return Value{kind: KindDouble, data: v} }
func StringValue(v string) Value { return Value{kind: KindString, data: v} }
func VInt32Value(v []int32) Value { return Value{kind: KindVInt32, data: cloneSlice(v)} }
func VUint32Value(v []uint32) Value { return Value{kind: KindVUint32, data: cloneSlice(v)} }
func VDoubleValue(v []float64) Value { return Value{kind: KindVDouble, data: cloneSlice(v)} }
func VStringValue(v []string) Value { return Value{kind: KindVString, data: cloneSlice(v)} }

// PSetValue wraps a nested parameter set. A nil set is stored as an empty one.
func PSetValue(ps *ParameterSet) Value {
	if ps == nil {
		ps = emptySet()
	}
	return Value{kind: KindPSet, data: ps}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value was created by one of the constructors.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Interface returns the payload as a plain Go value. Slices are copies;
// nested sets are returned as *ParameterSet.
func (v Value) Interface() any {
	switch d := v.data.(type) {
	case []int32:
		return cloneSlice(d)
	case []uint32:
		return cloneSlice(d)
	case []float64:
		return cloneSlice(d)
	case []string:
		return cloneSlice(d)
	default:
		return d
	}
}

// Len returns the number of elements of a vector or fields of a nested set, else 1.
func (v Value) Len() int {
	switch d := v.data.(type) {
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	case *ParameterSet:
		return d.Len()
	case nil:
		return 0
	}
	return 1
}

// Equal reports whether both values have the same kind and payload.
// Nested sets compare field by field including tracking.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch d := v.data.(type) {
	case []int32:
		return slices.Equal(d, o.data.([]int32))
	case []uint32:
		return slices.Equal(d, o.data.([]uint32))
	case []float64:
		return slices.Equal(d, o.data.([]float64))
	case []string:
		return slices.Equal(d, o.data.([]string))
	case *ParameterSet:
		return d.Equal(o.data.(*ParameterSet))
	default:
		return v.data == o.data
	}
}

// String renders the value in configuration-language form, e.g. vint32(1, 2).
func (v Value) String() string {
	var b strings.Builder
	b.WriteString(v.kind.String())
	b.WriteByte('(')
	switch d := v.data.(type) {
	case bool:
		b.WriteString(strconv.FormatBool(d))
	case int32:
		b.WriteString(strconv.FormatInt(int64(d), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(d), 10))
	case float64:
		b.WriteString(formatDouble(d))
	case string:
		b.WriteString(strconv.Quote(d))
	case []int32:
		joinFormatted(&b, d, func(e int32) string { return strconv.FormatInt(int64(e), 10) })
	case []uint32:
		joinFormatted(&b, d, func(e uint32) string { return strconv.FormatUint(uint64(e), 10) })
	case []float64:
		joinFormatted(&b, d, formatDouble)
	case []string:
		joinFormatted(&b, d, strconv.Quote)
	case *ParameterSet:
		b.WriteString(d.Render())
	}
	b.WriteByte(')')
	return b.String()
}

// formatDouble renders a float so that it always reads back as a double.
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func joinFormatted[T any](b *strings.Builder, elems []T, format func(T) string) {
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(format(e))
	}
}

// cloneSlice copies s, returning an empty non-nil slice for nil input.
func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
