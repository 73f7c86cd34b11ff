package cloud

import (
	"bytes"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestFieldLayoutArithmetic(t *testing.T) {
	c := New()
	if err := c.AppendPositionFields(); err != nil {
		t.Fatalf("append position fields: %v", err)
	}
	if c.PointStep != 12 {
		t.Fatalf("point step = %d, want 12", c.PointStep)
	}
	if err := c.Resize(2, 3); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if c.RowStep != 36 {
		t.Errorf("row step = %d, want 36", c.RowStep)
	}
	if len(c.Data) != 72 {
		t.Errorf("buffer size = %d, want 72", len(c.Data))
	}
	if c.Len() != 6 {
		t.Errorf("len = %d, want 6", c.Len())
	}
}

func TestCanonicalFieldOffsets(t *testing.T) {
	c := New()
	for _, declare := range []func() error{
		c.AppendPositionFields,
		c.AppendNormalFields,
		c.AppendOccupancyFields,
		c.AppendTraversabilityFields,
		c.AppendPlanningFields,
	} {
		if err := declare(); err != nil {
			t.Fatalf("append canonical fields: %v", err)
		}
	}
	// position 12 + normal 12 + occupancy 2 + traversability 8 + planning 12
	if c.PointStep != 46 {
		t.Fatalf("point step = %d, want 46", c.PointStep)
	}
	f, ok := c.FieldByName("final_lbl")
	if !ok {
		t.Fatal("final_lbl not declared")
	}
	if f.Offset != 33 || f.Kind != Uint8 {
		t.Errorf("final_lbl = offset %d kind %s, want offset 33 kind uint8", f.Offset, f.Kind)
	}
	// Offsets must be strictly increasing and contiguous.
	next := 0
	for _, f := range c.Fields {
		if f.Offset != next {
			t.Errorf("field %q offset %d, want %d", f.Name, f.Offset, next)
		}
		next = f.Offset + f.SizeBytes()
	}
}

func TestAppendFieldErrors(t *testing.T) {
	c := New()
	if err := c.AppendField("x", Float32, 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.AppendField("x", Float32, 1); err == nil {
		t.Error("duplicate field name accepted")
	}
	if err := c.AppendField("bad", ScalarKind(99), 1); err == nil {
		t.Error("unknown scalar kind accepted")
	}
	if err := c.AppendField("none", Float32, 0); err == nil {
		t.Error("zero count accepted")
	}
	if err := c.Resize(1, 1); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := c.AppendField("late", Float32, 1); err == nil {
		t.Error("field declared after Resize accepted")
	}
}

func TestResizeBeforeFields(t *testing.T) {
	c := New()
	if err := c.Resize(2, 2); err == nil {
		t.Fatal("resize with no declared fields accepted")
	}
}

func TestResizeRejectsOverflowingSize(t *testing.T) {
	c := New()
	if err := c.AppendPositionFields(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.Resize(2, math.MaxInt/2); err == nil {
		t.Error("row size overflow accepted")
	}
	if err := c.Resize(math.MaxInt/12, 4); err == nil {
		t.Error("buffer size overflow accepted")
	}
}

func TestExtractFidelity(t *testing.T) {
	c := New()
	if err := c.AppendPositionFields(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.Resize(1, 5); err != nil {
		t.Fatalf("resize: %v", err)
	}
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for i := 0; i < 5; i++ {
		pos.Set(i, r3.Vector{X: float64(i), Y: float64(10 + i), Z: float64(20 + i)})
	}

	out, err := c.Extract([]int{3, 1})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Height != 1 || out.Width != 2 {
		t.Fatalf("extracted size %dx%d, want 1x2", out.Height, out.Width)
	}
	if !bytes.Equal(out.Data[0:12], c.Data[3*12:4*12]) {
		t.Error("extracted point 0 bytes differ from source index 3")
	}
	if !bytes.Equal(out.Data[12:24], c.Data[1*12:2*12]) {
		t.Error("extracted point 1 bytes differ from source index 1")
	}
}

func TestExtractOutOfRange(t *testing.T) {
	c := New()
	if err := c.AppendPositionFields(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.Resize(1, 3); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if _, err := c.Extract([]int{0, 3}); err == nil {
		t.Error("index past the buffer accepted")
	}
	if _, err := c.Extract([]int{-1}); err == nil {
		t.Error("negative index accepted")
	}
}

func TestUpdateDense(t *testing.T) {
	c := New()
	if err := c.AppendPositionFields(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.Resize(2, 2); err != nil {
		t.Fatalf("resize: %v", err)
	}
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	for i := 0; i < 4; i++ {
		pos.Set(i, vec(float64(i), 1, 2))
	}
	c.UpdateDense()
	if !c.Dense {
		t.Error("all-finite cloud reported non-dense")
	}
	pos.SetInvalid(2)
	c.UpdateDense()
	if c.Dense {
		t.Error("cloud with NaN point reported dense")
	}
	if pos.Finite(2) {
		t.Error("invalidated point reported finite")
	}
	if math.IsNaN(pos.At(3).X) {
		t.Error("neighboring point corrupted by SetInvalid")
	}
}
