package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Structural limits of the tensor model. A group carries at most
// CountLimit tensors and each tensor has at most RankLimit dimensions.
const (
	RankLimit  = 8
	CountLimit = 16
)

// Format selects how a tensor stream describes its shape.
type Format int

const (
	// Static streams fix every tensor's shape at negotiation time.
	Static Format = iota
	// Flexible streams embed a per-unit header describing each tensor.
	Flexible
)

func (f Format) String() string {
	if f == Flexible {
		return "flexible"
	}
	return "static"
}

// Info describes one tensor: element type and dimensions. A dimension of
// zero terminates the active rank; all dimensions before it must be
// positive. The zero value is not valid until type and dims are set.
type Info struct {
	Name string
	Type ElementType
	Dims [RankLimit]uint32
}

// Rank returns the number of active dimensions.
func (i *Info) Rank() int {
	for n := 0; n < RankLimit; n++ {
		if i.Dims[n] == 0 {
			return n
		}
	}
	return RankLimit
}

// Validate checks that the element type is concrete and the active
// dimensions are well formed. The returned error names the first
// offending field.
func (i *Info) Validate() error {
	if !i.Type.Valid() {
		return errors.New("element type is not set")
	}
	if i.Dims[0] == 0 {
		return errors.New("dimension 0 is not set")
	}
	ended := false
	for n := 1; n < RankLimit; n++ {
		if i.Dims[n] == 0 {
			ended = true
			continue
		}
		if ended {
			return fmt.Errorf("dimension %d is set after a zero dimension", n)
		}
	}
	return nil
}

// Size returns the byte size of one tensor with this shape.
func (i *Info) Size() uint64 {
	size := uint64(i.Type.Size())
	for n := 0; n < RankLimit; n++ {
		if i.Dims[n] == 0 {
			break
		}
		size *= uint64(i.Dims[n])
	}
	return size
}

// Equal reports whether two tensors have the same type and dimensions.
// Names are ignored.
func (i *Info) Equal(o *Info) bool {
	return i.Type == o.Type && i.Dims == o.Dims
}

func (i *Info) String() string {
	var b strings.Builder
	b.WriteString(i.Type.String())
	b.WriteByte(' ')
	b.WriteString(DimsString(i.Dims))
	return b.String()
}

// DimsString renders dims in the colon-separated form used by shape
// overrides, e.g. "3:640:480:1".
func DimsString(dims [RankLimit]uint32) string {
	var parts []string
	for n := 0; n < RankLimit; n++ {
		if dims[n] == 0 {
			break
		}
		parts = append(parts, strconv.FormatUint(uint64(dims[n]), 10))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, ":")
}

// ParseDims parses a colon-separated dimension string such as
// "3:640:480:1" into a dimension array.
func ParseDims(s string) ([RankLimit]uint32, error) {
	var dims [RankLimit]uint32
	parts := strings.Split(s, ":")
	if len(parts) > RankLimit {
		return dims, fmt.Errorf("tensor: dimension string %q exceeds rank limit %d", s, RankLimit)
	}
	for n, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil || v == 0 {
			return dims, fmt.Errorf("tensor: invalid dimension %q in %q", p, s)
		}
		dims[n] = uint32(v)
	}
	return dims, nil
}

// Group describes the set of tensors carried by one stream unit.
type Group struct {
	Format  Format
	Num     int
	Tensors [CountLimit]Info
}

// Validate checks the group layout. Flexible groups skip per-tensor
// validation: their shapes are carried per unit.
func (g *Group) Validate() error {
	if g.Num < 1 || g.Num > CountLimit {
		return fmt.Errorf("tensor count %d out of range [1,%d]", g.Num, CountLimit)
	}
	if g.Format == Flexible {
		return nil
	}
	for n := 0; n < g.Num; n++ {
		if err := g.Tensors[n].Validate(); err != nil {
			return fmt.Errorf("tensor %d: %w", n, err)
		}
	}
	return nil
}

// TotalSize returns the summed byte size of all tensors in the group.
func (g *Group) TotalSize() uint64 {
	var size uint64
	for n := 0; n < g.Num; n++ {
		size += g.Tensors[n].Size()
	}
	return size
}

// Equal reports whether two groups have the same format, count, and
// per-tensor shapes.
func (g *Group) Equal(o *Group) bool {
	if g.Format != o.Format || g.Num != o.Num {
		return false
	}
	for n := 0; n < g.Num; n++ {
		if !g.Tensors[n].Equal(&o.Tensors[n]) {
			return false
		}
	}
	return true
}

func (g *Group) String() string {
	var parts []string
	for n := 0; n < g.Num; n++ {
		parts = append(parts, g.Tensors[n].String())
	}
	return fmt.Sprintf("%s[%s]", g.Format, strings.Join(parts, ", "))
}

// ParseGroupDims fills the group's dimensions from a comma-separated list
// of dimension strings ("3:224:224,1000") and returns the tensor count.
func (g *Group) ParseGroupDims(s string) (int, error) {
	parts := strings.Split(s, ",")
	if len(parts) > CountLimit {
		return 0, fmt.Errorf("tensor: %d dimension entries exceed count limit %d", len(parts), CountLimit)
	}
	for n, p := range parts {
		dims, err := ParseDims(strings.TrimSpace(p))
		if err != nil {
			return 0, err
		}
		g.Tensors[n].Dims = dims
	}
	if g.Num < len(parts) {
		g.Num = len(parts)
	}
	return len(parts), nil
}

// ParseGroupTypes fills the group's element types from a comma-separated
// list of type names ("uint8,float32") and returns the tensor count.
func (g *Group) ParseGroupTypes(s string) (int, error) {
	parts := strings.Split(s, ",")
	if len(parts) > CountLimit {
		return 0, fmt.Errorf("tensor: %d type entries exceed count limit %d", len(parts), CountLimit)
	}
	for n, p := range parts {
		t, err := ParseElementType(strings.TrimSpace(p))
		if err != nil {
			return 0, err
		}
		g.Tensors[n].Type = t
	}
	if g.Num < len(parts) {
		g.Num = len(parts)
	}
	return len(parts), nil
}

// Config couples a tensor group with its unit rate, expressed as the
// fraction RateN/RateD units per second. A zero RateN with positive RateD
// means the rate is unknown.
type Config struct {
	Group
	RateN int
	RateD int
}

// Validate checks the group and the rate fraction.
func (c *Config) Validate() error {
	if err := c.Group.Validate(); err != nil {
		return err
	}
	if c.RateN < 0 || c.RateD <= 0 {
		return fmt.Errorf("invalid rate %d/%d", c.RateN, c.RateD)
	}
	return nil
}

// Equal reports whether two configs have equal layout and rate.
func (c *Config) Equal(o *Config) bool {
	return c.Group.Equal(&o.Group) && c.RateN == o.RateN && c.RateD == o.RateD
}

// HasRate reports whether the config carries a known unit rate.
func (c *Config) HasRate() bool {
	return c.RateN > 0 && c.RateD > 0
}

func (c *Config) String() string {
	return fmt.Sprintf("%s @%d/%d", c.Group.String(), c.RateN, c.RateD)
}
