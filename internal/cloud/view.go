package cloud

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// view is the shared strided-access core: element k of point i lives at
// offset + i*stride + k*elemSize. Views alias the cloud's buffer; they
// are invalidated by any subsequent Resize.
type view struct {
	data   []byte
	offset int
	stride int
	count  int
	order  binary.ByteOrder
	n      int
}

func (c *Cloud) fieldView(name string, kind ScalarKind) (view, error) {
	f, ok := c.FieldByName(name)
	if !ok {
		return view{}, fmt.Errorf("cloud: no field %q", name)
	}
	if f.Kind != kind {
		return view{}, fmt.Errorf("cloud: field %q is %s, not %s", name, f.Kind, kind)
	}
	return view{
		data:   c.Data,
		offset: f.Offset,
		stride: c.PointStep,
		count:  f.Count,
		order:  c.ByteOrder(),
		n:      c.Len(),
	}, nil
}

func (v view) at(i, k int) []byte {
	return v.data[v.offset+i*v.stride+k:]
}

// checkElem rejects element indices beyond the declared count. Letting
// them through would silently read the neighboring field's bytes.
func (v view) checkElem(k int) {
	if k < 0 || k >= v.count {
		panic(fmt.Sprintf("cloud: element %d out of range for field count %d", k, v.count))
	}
}

// Float32View is a strided view over one float32 field.
type Float32View struct{ view }

// Float32s returns a view over the named float32 field. Fails if the
// field is undeclared or declared with a different kind.
func (c *Cloud) Float32s(name string) (Float32View, error) {
	v, err := c.fieldView(name, Float32)
	return Float32View{v}, err
}

// At reads element 0 of point i.
func (v Float32View) At(i int) float32 { return v.Elem(i, 0) }

// Elem reads element k of point i. Panics if k is outside the field's
// declared count.
func (v Float32View) Elem(i, k int) float32 {
	v.checkElem(k)
	return math.Float32frombits(v.order.Uint32(v.at(i, 4*k)))
}

// Set writes element 0 of point i.
func (v Float32View) Set(i int, x float32) { v.SetElem(i, 0, x) }

// SetElem writes element k of point i. Panics if k is outside the
// field's declared count.
func (v Float32View) SetElem(i, k int, x float32) {
	v.checkElem(k)
	v.order.PutUint32(v.at(i, 4*k), math.Float32bits(x))
}

// Fill writes x into element 0 of every point.
func (v Float32View) Fill(x float32) {
	for i := 0; i < v.n; i++ {
		v.Set(i, x)
	}
}

// Copy writes src[i] into element 0 of point i for every point. src must
// cover the whole grid.
func (v Float32View) Copy(src []float32) error {
	if len(src) != v.n {
		return fmt.Errorf("cloud: copy length %d != %d points", len(src), v.n)
	}
	for i, x := range src {
		v.Set(i, x)
	}
	return nil
}

// Uint8View is a strided view over one uint8 field.
type Uint8View struct{ view }

// Uint8s returns a view over the named uint8 field.
func (c *Cloud) Uint8s(name string) (Uint8View, error) {
	v, err := c.fieldView(name, Uint8)
	return Uint8View{v}, err
}

func (v Uint8View) At(i int) uint8     { return v.at(i, 0)[0] }
func (v Uint8View) Set(i int, x uint8) { v.at(i, 0)[0] = x }

func (v Uint8View) Fill(x uint8) {
	for i := 0; i < v.n; i++ {
		v.Set(i, x)
	}
}

// Int8View is a strided view over one int8 field.
type Int8View struct{ view }

// Int8s returns a view over the named int8 field.
func (c *Cloud) Int8s(name string) (Int8View, error) {
	v, err := c.fieldView(name, Int8)
	return Int8View{v}, err
}

func (v Int8View) At(i int) int8     { return int8(v.at(i, 0)[0]) }
func (v Int8View) Set(i int, x int8) { v.at(i, 0)[0] = byte(x) }

// PositionView reads and writes the x, y, z position triple as one
// vector. The three fields must be float32, count 1, and laid out
// contiguously, which the canonical position declaration guarantees.
// Scalars are copied into the vector value; the geometry math never
// aliases the raw buffer.
type PositionView struct {
	x Float32View
}

// Positions returns a vector view over the x, y, z fields.
func (c *Cloud) Positions() (PositionView, error) {
	x, err := c.Float32s("x")
	if err != nil {
		return PositionView{}, err
	}
	fx, _ := c.FieldByName("x")
	fy, okY := c.FieldByName("y")
	fz, okZ := c.FieldByName("z")
	if !okY || !okZ ||
		fy.Kind != Float32 || fz.Kind != Float32 ||
		fy.Offset != fx.Offset+4 || fz.Offset != fx.Offset+8 {
		return PositionView{}, fmt.Errorf("cloud: x, y, z must be contiguous float32 fields")
	}
	// The verified x,y,z span reads as one three-element field.
	x.count = 3
	return PositionView{x: x}, nil
}

// At copies the position of point i into a vector value.
func (p PositionView) At(i int) r3.Vector {
	return r3.Vector{
		X: float64(p.x.Elem(i, 0)),
		Y: float64(p.x.Elem(i, 1)),
		Z: float64(p.x.Elem(i, 2)),
	}
}

// Set writes a vector back as the position of point i.
func (p PositionView) Set(i int, v r3.Vector) {
	p.x.SetElem(i, 0, float32(v.X))
	p.x.SetElem(i, 1, float32(v.Y))
	p.x.SetElem(i, 2, float32(v.Z))
}

// SetInvalid marks point i as missing by writing NaN coordinates.
func (p PositionView) SetInvalid(i int) {
	nan := float32(math.NaN())
	p.x.SetElem(i, 0, nan)
	p.x.SetElem(i, 1, nan)
	p.x.SetElem(i, 2, nan)
}

// Finite reports whether all three coordinates of point i are finite.
func (p PositionView) Finite(i int) bool {
	for k := 0; k < 3; k++ {
		f := float64(p.x.Elem(i, k))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Len returns the number of points covered by the view.
func (p PositionView) Len() int { return p.x.n }

// ValueView reads and writes any numeric field as float64, switching on
// the declared scalar kind. It trades speed for generality and exists
// for codec-style consumers; hot paths use the typed views above.
type ValueView struct {
	view
	kind ScalarKind
}

// Values returns a kind-switched numeric view over the named field.
func (c *Cloud) Values(name string) (ValueView, error) {
	f, ok := c.FieldByName(name)
	if !ok {
		return ValueView{}, fmt.Errorf("cloud: no field %q", name)
	}
	v, err := c.fieldView(name, f.Kind)
	return ValueView{view: v, kind: f.Kind}, err
}

// Count returns the field's declared scalar count.
func (v ValueView) Count() int { return v.count }

// Elem reads element k of point i as float64. Panics if k is outside
// the field's declared count.
func (v ValueView) Elem(i, k int) float64 {
	v.checkElem(k)
	b := v.at(i, k*v.kind.Size())
	switch v.kind {
	case Int8:
		return float64(int8(b[0]))
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(v.order.Uint16(b)))
	case Uint16:
		return float64(v.order.Uint16(b))
	case Int32:
		return float64(int32(v.order.Uint32(b)))
	case Uint32:
		return float64(v.order.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(v.order.Uint32(b)))
	case Float64:
		return math.Float64frombits(v.order.Uint64(b))
	}
	return 0
}

// SetElem writes element k of point i from a float64, truncating to the
// declared kind. Panics if k is outside the field's declared count.
func (v ValueView) SetElem(i, k int, x float64) {
	v.checkElem(k)
	b := v.at(i, k*v.kind.Size())
	switch v.kind {
	case Int8:
		b[0] = byte(int8(x))
	case Uint8:
		b[0] = byte(uint8(x))
	case Int16:
		v.order.PutUint16(b, uint16(int16(x)))
	case Uint16:
		v.order.PutUint16(b, uint16(x))
	case Int32:
		v.order.PutUint32(b, uint32(int32(x)))
	case Uint32:
		v.order.PutUint32(b, uint32(x))
	case Float32:
		v.order.PutUint32(b, math.Float32bits(float32(x)))
	case Float64:
		v.order.PutUint64(b, math.Float64bits(x))
	}
}
