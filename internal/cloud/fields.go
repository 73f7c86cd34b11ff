package cloud

import "fmt"

// ScalarKind identifies a supported per-field scalar type. The numeric
// codes match the datatype codes used by structured point cloud wire
// formats, so a serialised layout can be exchanged without translation.
type ScalarKind uint8

const (
	Int8 ScalarKind = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

// Size returns the width of one scalar of this kind in bytes.
func (k ScalarKind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func (k ScalarKind) String() string {
	switch k {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("ScalarKind(%d)", uint8(k))
}

// Field describes one named sub-field of a point record. Offset is the
// byte position within the record; it is always computed by AppendField,
// never hardcoded, because different producers declare different field
// subsets in different orders.
type Field struct {
	Name   string
	Kind   ScalarKind
	Count  int
	Offset int
}

// SizeBytes returns the total byte width of the field (Count scalars).
func (f Field) SizeBytes() int {
	return f.Count * f.Kind.Size()
}

// Canonical field sets. Producers declare only the subsets they fill;
// consumers locate fields by name and never assume a fixed offset.

// AppendPositionFields declares the x, y, z position triple.
func (c *Cloud) AppendPositionFields() error {
	for _, name := range []string{"x", "y", "z"} {
		if err := c.AppendField(name, Float32, 1); err != nil {
			return err
		}
	}
	return nil
}

// AppendNormalFields declares the nx, ny, nz surface normal triple.
func (c *Cloud) AppendNormalFields() error {
	for _, name := range []string{"nx", "ny", "nz"} {
		if err := c.AppendField(name, Float32, 1); err != nil {
			return err
		}
	}
	return nil
}

// AppendOccupancyFields declares the occupancy evidence counters.
func (c *Cloud) AppendOccupancyFields() error {
	if err := c.AppendField("seen_thru", Uint8, 1); err != nil {
		return err
	}
	return c.AppendField("hit", Uint8, 1)
}

// AppendTraversabilityFields declares the roughness and label fields
// consumed by traversability analysis. 8 bytes per point.
func (c *Cloud) AppendTraversabilityFields() error {
	decls := []struct {
		name string
		kind ScalarKind
	}{
		{"normal_pts", Uint8},
		{"obs_pts", Uint8},
		{"gnd_diff_std", Uint8},
		{"gnd_diff_min", Int8},
		{"gnd_diff_max", Int8},
		{"gnd_abs_diff_mean", Uint8},
		{"nz_lbl", Uint8},
		{"final_lbl", Uint8},
	}
	for _, d := range decls {
		if err := c.AppendField(d.name, d.kind, 1); err != nil {
			return err
		}
	}
	return nil
}

// AppendPlanningFields declares the planner output fields.
func (c *Cloud) AppendPlanningFields() error {
	for _, name := range []string{"path_cost", "utility", "final_cost"} {
		if err := c.AppendField(name, Float32, 1); err != nil {
			return err
		}
	}
	return nil
}
