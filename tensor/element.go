// Package tensor defines the tensor descriptor model shared by the
// conversion engine and the distribution layer: element types, per-tensor
// shape descriptors, tensor group layouts, and the flexible-unit header.
package tensor

import "fmt"

// ElementType identifies the numeric kind of a tensor's elements. The
// numeric values are stable: they are written into flexible-unit headers
// and the distribution wire protocol.
type ElementType int8

// Supported element types.
const (
	Int32 ElementType = iota
	Uint32
	Int16
	Uint16
	Int8
	Uint8
	Float64
	Float32
	Int64
	Uint64
	Float16

	elementTypeCount
)

// NoElementType marks an unresolved element type.
const NoElementType ElementType = -1

// Valid reports whether t is a concrete element type.
func (t ElementType) Valid() bool {
	return t >= 0 && t < elementTypeCount
}

// Size returns the byte size of one element, or 0 for an invalid type.
func (t ElementType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

func (t ElementType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float16:
		return "float16"
	}
	return "unknown"
}

// ParseElementType parses an element type name such as "uint8" or
// "float32", as used in explicit shape overrides.
func ParseElementType(s string) (ElementType, error) {
	for t := ElementType(0); t < elementTypeCount; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return NoElementType, fmt.Errorf("tensor: unknown element type %q", s)
}
