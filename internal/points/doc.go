// Package points holds the per-point value types exchanged between the
// perception core and the graph/planning layers: the Point feature
// record and the bounded Neighborhood graph record.
//
// Sentinel conventions, which consumers rely on to tell "not yet
// computed" from a legitimate measurement:
//   - NaN means unknown for every scalar feature; counts and flags
//     start at zero.
//   - In a Neighborhood, a stored distance or cost of exactly zero
//     means unset, so the graph builder never stores a true self-edge
//     or coincident-point edge.
package points
