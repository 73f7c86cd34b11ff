package cloud

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HostBigEndian reports whether the host stores multi-byte scalars most
// significant byte first. It queries encoding/binary's NativeEndian
// rather than aliasing an integer through a byte pointer.
func HostBigEndian() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 0
}

// Cloud is a structured point buffer: Height*Width fixed-size point
// records stored contiguously in row-major order. Fields are declared
// once, in order, before the buffer is sized; Resize seals the layout.
type Cloud struct {
	Height int
	Width  int

	// Fields holds the declared layout in declaration order. Offsets are
	// strictly increasing and non-overlapping; PointStep equals the
	// offset immediately after the last field.
	Fields    []Field
	PointStep int

	// RowStep is Width*PointStep; Data is exactly Height*RowStep bytes.
	RowStep int
	Data    []byte

	// Dense is true iff no point carries a non-finite position.
	Dense bool

	// BigEndian records the byte order of the stored scalars. Buffers
	// built locally use host order; buffers decoded from an exchange
	// format keep the order the producer declared.
	BigEndian bool

	sealed bool
}

// New returns an empty cloud in host byte order with no declared fields.
func New() *Cloud {
	return &Cloud{BigEndian: HostBigEndian()}
}

// AppendField declares a field of count scalars at the current end of the
// point record and advances PointStep. Declaring a duplicate name, an
// unknown kind, a non-positive count, or declaring after Resize is an
// error: these are layout bugs that would silently corrupt every record.
func (c *Cloud) AppendField(name string, kind ScalarKind, count int) error {
	if c.sealed {
		return fmt.Errorf("cloud: field %q declared after Resize; layout is sealed", name)
	}
	if kind.Size() == 0 {
		return fmt.Errorf("cloud: field %q has unknown scalar kind %d", name, kind)
	}
	if count <= 0 {
		return fmt.Errorf("cloud: field %q has non-positive count %d", name, count)
	}
	for _, f := range c.Fields {
		if f.Name == name {
			return fmt.Errorf("cloud: duplicate field %q", name)
		}
	}
	f := Field{Name: name, Kind: kind, Count: count, Offset: c.PointStep}
	c.Fields = append(c.Fields, f)
	c.PointStep += f.SizeBytes()
	return nil
}

// Resize sets the grid dimensions and allocates a zero-filled buffer of
// Height*RowStep bytes. It must be called after all fields are declared;
// sizing a buffer with no fields would yield records that cannot hold
// any data, so that is rejected.
func (c *Cloud) Resize(height, width int) error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("cloud: Resize before any field declaration")
	}
	if height < 0 || width < 0 {
		return fmt.Errorf("cloud: negative dimensions %dx%d", height, width)
	}
	// Division-based overflow checks: height*width*PointStep must fit in
	// an int or make would be handed a wrapped-negative length.
	if width > 0 && c.PointStep > math.MaxInt/width {
		return fmt.Errorf("cloud: row size overflows for width %d, point step %d", width, c.PointStep)
	}
	rowStep := width * c.PointStep
	if height > 0 && rowStep > 0 && height > math.MaxInt/rowStep {
		return fmt.Errorf("cloud: buffer size overflows for %dx%d, point step %d", height, width, c.PointStep)
	}
	c.sealed = true
	c.Height = height
	c.Width = width
	c.RowStep = rowStep
	c.Data = make([]byte, height*c.RowStep)
	return nil
}

// Len returns the total number of points, Height*Width.
func (c *Cloud) Len() int {
	return c.Height * c.Width
}

// Index converts grid coordinates to a flat point index.
func (c *Cloud) Index(row, col int) int {
	return row*c.Width + col
}

// FieldByName looks up a declared field.
func (c *Cloud) FieldByName(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ByteOrder returns the binary byte order matching the buffer layout.
func (c *Cloud) ByteOrder() binary.ByteOrder {
	if c.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Extract builds a new unorganised cloud (height 1, width len(indices))
// with the same field layout, copying each selected point record
// verbatim. Every index must lie in [0, Len()); out-of-range indices are
// rejected rather than left to scribble past the buffer.
func (c *Cloud) Extract(indices []int) (*Cloud, error) {
	n := c.Len()
	out := &Cloud{
		Height:    1,
		Width:     len(indices),
		Fields:    append([]Field(nil), c.Fields...),
		PointStep: c.PointStep,
		RowStep:   len(indices) * c.PointStep,
		Dense:     c.Dense,
		BigEndian: c.BigEndian,
		sealed:    true,
	}
	out.Data = make([]byte, out.RowStep)
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("cloud: extract index %d out of range [0,%d)", idx, n)
		}
		copy(out.Data[i*out.PointStep:(i+1)*out.PointStep],
			c.Data[idx*c.PointStep:(idx+1)*c.PointStep])
	}
	return out, nil
}

// UpdateDense rescans the position field and refreshes the Dense flag.
// Clouds without a position field are considered dense.
func (c *Cloud) UpdateDense() {
	pos, err := c.Positions()
	if err != nil {
		c.Dense = true
		return
	}
	for i := 0; i < c.Len(); i++ {
		if !pos.Finite(i) {
			c.Dense = false
			return
		}
	}
	c.Dense = true
}
