package tensor

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed byte size of a flexible-unit header: one byte
// each for format, element type, rank, and origin media tag, followed by
// RankLimit big-endian uint32 dimensions.
const HeaderSize = 4 + 4*RankLimit

// Meta is the self-describing header prefixed to every tensor share of a
// flexible unit, so a flexible consumer can recover shape and type
// without negotiated state.
type Meta struct {
	Format Format
	Type   ElementType
	Media  int8 // origin media-type tag (media.Type value)
	Dims   [RankLimit]uint32
}

// PayloadSize returns the byte size of the tensor described by the header.
func (m *Meta) PayloadSize() uint64 {
	size := uint64(m.Type.Size())
	for n := 0; n < RankLimit; n++ {
		if m.Dims[n] == 0 {
			break
		}
		size *= uint64(m.Dims[n])
	}
	return size
}

// Rank returns the number of active dimensions in the header.
func (m *Meta) Rank() int {
	for n := 0; n < RankLimit; n++ {
		if m.Dims[n] == 0 {
			return n
		}
	}
	return RankLimit
}

// AppendHeader appends the fixed-size wire form of m to dst.
func (m *Meta) AppendHeader(dst []byte) []byte {
	dst = append(dst, byte(m.Format), byte(m.Type), byte(m.Rank()), byte(m.Media))
	var buf [4]byte
	for n := 0; n < RankLimit; n++ {
		binary.BigEndian.PutUint32(buf[:], m.Dims[n])
		dst = append(dst, buf[:]...)
	}
	return dst
}

// ParseMeta decodes a flexible-unit header from the start of b.
func ParseMeta(b []byte) (Meta, error) {
	var m Meta
	if len(b) < HeaderSize {
		return m, fmt.Errorf("tensor: header needs %d bytes, have %d", HeaderSize, len(b))
	}
	m.Format = Format(b[0])
	m.Type = ElementType(int8(b[1]))
	rank := int(b[2])
	m.Media = int8(b[3])

	if m.Format != Static && m.Format != Flexible {
		return m, fmt.Errorf("tensor: header has invalid format tag %d", b[0])
	}
	if !m.Type.Valid() {
		return m, fmt.Errorf("tensor: header has invalid element type tag %d", int8(b[1]))
	}
	if rank > RankLimit {
		return m, fmt.Errorf("tensor: header rank %d exceeds limit %d", rank, RankLimit)
	}

	for n := 0; n < RankLimit; n++ {
		m.Dims[n] = binary.BigEndian.Uint32(b[4+4*n:])
	}
	for n := 0; n < rank; n++ {
		if m.Dims[n] == 0 {
			return m, fmt.Errorf("tensor: header dimension %d is zero within rank %d", n, rank)
		}
	}
	for n := rank; n < RankLimit; n++ {
		if m.Dims[n] != 0 {
			return m, fmt.Errorf("tensor: header dimension %d is set beyond rank %d", n, rank)
		}
	}
	return m, nil
}
