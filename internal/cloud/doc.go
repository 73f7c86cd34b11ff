// Package cloud owns the structured point buffer: a row-major 2D grid of
// fixed-size point records whose typed sub-fields live at byte offsets
// accumulated as the fields are declared.
//
// Responsibilities: field layout arithmetic, buffer sizing, typed strided
// field views, point-subset extraction, and the canonical field sets used
// by the perception and planning layers.
//
// Dependency rule: cloud is a leaf package. It must not import the
// projection or points layers.
package cloud
