// Package projection owns the spherical projection model of a
// structured range sensor: the affine mapping between the sensor's
// (row, column) grid and (azimuth, elevation) angles.
//
// The model is fitted from the position field of a structured cloud,
// either with a cheap two-reference-point pass (FitFast) or with a
// median-consensus estimate over randomly paired points (FitRobust),
// and then applied through Project and Unproject for image-space
// neighbor lookups.
package projection
