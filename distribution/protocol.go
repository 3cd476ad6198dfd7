// Package distribution fans converted tensor streams out to QUIC
// subscribers. Each stream has one Relay; subscribers receive the
// committed descriptor first, then every unit in order.
package distribution

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tensorify/tensorconv/tensor"
)

// Wire message types. A subscriber session is a sequence of messages,
// each prefixed with a one-byte type tag. All integers are big endian.
const (
	msgAnnounce byte = 0x01
	msgUnit     byte = 0x02
)

// maxWireShares bounds the per-unit share count a reader will accept.
const maxWireShares = tensor.CountLimit

// AppendAnnounce encodes a descriptor announcement:
//
//	0x01 | format u8 | num u8 | rateN u32 | rateD u32 |
//	num * ( type u8 | 8 * dim u32 )
func AppendAnnounce(dst []byte, cfg *tensor.Config) []byte {
	dst = append(dst, msgAnnounce, byte(cfg.Format), byte(cfg.Num))
	dst = binary.BigEndian.AppendUint32(dst, uint32(cfg.RateN))
	dst = binary.BigEndian.AppendUint32(dst, uint32(cfg.RateD))
	for n := 0; n < cfg.Num; n++ {
		info := &cfg.Tensors[n]
		dst = append(dst, byte(info.Type))
		for _, d := range info.Dims {
			dst = binary.BigEndian.AppendUint32(dst, d)
		}
	}
	return dst
}

// AppendUnit encodes one tensor unit:
//
//	0x02 | pts i64 | dts i64 | dur i64 | count u8 |
//	count * ( len u32 | payload )
func AppendUnit(dst []byte, u *tensor.Unit) []byte {
	dst = append(dst, msgUnit)
	dst = binary.BigEndian.AppendUint64(dst, uint64(u.PTS))
	dst = binary.BigEndian.AppendUint64(dst, uint64(u.DTS))
	dst = binary.BigEndian.AppendUint64(dst, uint64(u.Duration))
	dst = append(dst, byte(len(u.Tensors)))
	for _, share := range u.Tensors {
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(share)))
		dst = append(dst, share...)
	}
	return dst
}

// Message is one decoded wire message. Exactly one of Config and Unit
// is set, matching Type.
type Message struct {
	Type   byte
	Config tensor.Config
	Unit   tensor.Unit
}

// ParseMessage decodes the first message in b, returning the message
// and the number of bytes consumed.
func ParseMessage(b []byte) (Message, int, error) {
	var m Message
	if len(b) < 1 {
		return m, 0, fmt.Errorf("distribution: empty message")
	}
	m.Type = b[0]
	switch m.Type {
	case msgAnnounce:
		n, err := parseAnnounce(b[1:], &m.Config)
		return m, 1 + n, err
	case msgUnit:
		n, err := parseUnit(b[1:], &m.Unit)
		return m, 1 + n, err
	}
	return m, 0, fmt.Errorf("distribution: unknown message type %#x", m.Type)
}

func parseAnnounce(b []byte, cfg *tensor.Config) (int, error) {
	const fixed = 2 + 4 + 4
	if len(b) < fixed {
		return 0, fmt.Errorf("distribution: short announce header")
	}
	cfg.Format = tensor.Format(b[0])
	cfg.Num = int(b[1])
	cfg.RateN = int(int32(binary.BigEndian.Uint32(b[2:])))
	cfg.RateD = int(int32(binary.BigEndian.Uint32(b[6:])))
	if cfg.Num < 1 || cfg.Num > tensor.CountLimit {
		return 0, fmt.Errorf("distribution: announce tensor count %d out of range", cfg.Num)
	}

	offset := fixed
	const perTensor = 1 + 4*tensor.RankLimit
	for n := 0; n < cfg.Num; n++ {
		if len(b) < offset+perTensor {
			return 0, fmt.Errorf("distribution: short announce tensor %d", n)
		}
		cfg.Tensors[n].Type = tensor.ElementType(int8(b[offset]))
		offset++
		for i := 0; i < tensor.RankLimit; i++ {
			cfg.Tensors[n].Dims[i] = binary.BigEndian.Uint32(b[offset:])
			offset += 4
		}
	}
	return offset, nil
}

func parseUnit(b []byte, u *tensor.Unit) (int, error) {
	const fixed = 8 + 8 + 8 + 1
	if len(b) < fixed {
		return 0, fmt.Errorf("distribution: short unit header")
	}
	u.PTS = timeFromWire(binary.BigEndian.Uint64(b[0:]))
	u.DTS = timeFromWire(binary.BigEndian.Uint64(b[8:]))
	u.Duration = timeFromWire(binary.BigEndian.Uint64(b[16:]))
	count := int(b[24])
	if count < 1 || count > maxWireShares {
		return 0, fmt.Errorf("distribution: unit share count %d out of range", count)
	}

	offset := fixed
	u.Tensors = make([][]byte, count)
	for n := 0; n < count; n++ {
		if len(b) < offset+4 {
			return 0, fmt.Errorf("distribution: short length of share %d", n)
		}
		size := int(binary.BigEndian.Uint32(b[offset:]))
		offset += 4
		if len(b) < offset+size {
			return 0, fmt.Errorf("distribution: share %d needs %d bytes, have %d", n, size, len(b)-offset)
		}
		u.Tensors[n] = b[offset : offset+size : offset+size]
		offset += size
	}
	return offset, nil
}

func timeFromWire(v uint64) time.Duration {
	return time.Duration(v)
}
