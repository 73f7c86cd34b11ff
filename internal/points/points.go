package points

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Flags is the per-point condition bitmask. Bits are independent and set
// by the traversability and planning layers.
type Flags uint8

const (
	// Updated marks a point whose neighborhood has been refreshed;
	// otherwise it is queued for update.
	Updated Flags = 1 << iota
	// Static marks a static (non-dynamic, non-empty) point, necessary
	// for traversability.
	Static
	// Horizontal marks an approximately horizontal surface orientation
	// from the normal direction, necessary for traversability.
	Horizontal
	// Actor marks a point near another actor.
	Actor
	// Edge marks a frontier point between explored and unknown space.
	Edge
	// Traversable marks terrain judged passable from roughness and
	// obstacle proximity.
	Traversable
)

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

var nan32 = float32(math.NaN())

// Point is the per-point feature record produced by traversability
// analysis and consumed by the planner. Every scalar defaults to NaN
// ("not yet computed"); counts and flags default to zero.
type Point struct {
	Position [3]float32

	// Normal direction and the number of neighbors used to estimate it.
	Normal        [3]float32
	NormalSupport uint8

	// Roughness of height differences to the local ground estimate.
	GroundDiffStd     float32
	GroundDiffMin     float32
	GroundDiffMax     float32
	GroundAbsDiffMean float32

	// Sensor origin at capture, for occupancy assessment and
	// measurement distance.
	Viewpoint [3]float32

	// Euclidean distance and last visit time for this actor and others.
	DistToActor          float32
	ActorLastVisit       float32
	DistToOtherActors    float32
	OtherActorsLastVisit float32

	Coverage     float32
	SelfCoverage float32

	// Distance to the nearest obstacle (non-horizontal point).
	DistToObstacle float32

	Flags Flags

	// Occupancy evidence accumulation.
	NumEmpty    uint8
	NumOccupied uint8

	// Distance to the best-fit local plane.
	DistToPlane float32

	// Obstacle points in the clearance cylinder and obstacle/edge
	// points nearby.
	NumObstaclePts       uint8
	NumObstacleNeighbors uint8
	NumEdgeNeighbors     uint8

	// Planning outputs.
	PathCost     float32
	Reward       float32
	RelativeCost float32
}

// NewPoint returns a record with every scalar seeded to the NaN sentinel.
func NewPoint() Point {
	return Point{
		Position:             [3]float32{nan32, nan32, nan32},
		Normal:               [3]float32{nan32, nan32, nan32},
		GroundDiffStd:        nan32,
		GroundDiffMin:        nan32,
		GroundDiffMax:        nan32,
		GroundAbsDiffMean:    nan32,
		Viewpoint:            [3]float32{nan32, nan32, nan32},
		DistToActor:          nan32,
		ActorLastVisit:       nan32,
		DistToOtherActors:    nan32,
		OtherActorsLastVisit: nan32,
		DistToObstacle:       nan32,
		DistToPlane:          nan32,
		PathCost:             nan32,
		Reward:               nan32,
		RelativeCost:         nan32,
	}
}

// KNeighbors is the fixed neighbor capacity of a Neighborhood record.
const KNeighbors = 48

// Neighborhood is the per-point KNN graph record: a position plus up to
// KNeighbors edges stored in parallel arrays. Entries at and beyond
// NeighborCount are zero and must be ignored.
type Neighborhood struct {
	Position [3]float32

	NeighborCount int
	Neighbors     [KNeighbors]int32
	Distances     [KNeighbors]float32
	Costs         [KNeighbors]float32
}

// NewNeighborhood returns a record with a NaN position and no edges.
func NewNeighborhood() Neighborhood {
	return Neighborhood{Position: [3]float32{nan32, nan32, nan32}}
}

// SetPosition stores a vector as the record's position.
func (n *Neighborhood) SetPosition(v r3.Vector) {
	n.Position = [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Add appends one edge. Zero distance or cost is the "unset" sentinel,
// so a genuine zero-length edge cannot be represented; the graph builder
// must never produce one, and Add rejects it along with a full record.
func (n *Neighborhood) Add(neighbor int32, distance, cost float32) error {
	if n.NeighborCount >= KNeighbors {
		return fmt.Errorf("points: neighborhood full (%d entries)", KNeighbors)
	}
	if distance == 0 || cost == 0 {
		return fmt.Errorf("points: zero distance or cost is reserved as the unset sentinel")
	}
	n.Neighbors[n.NeighborCount] = neighbor
	n.Distances[n.NeighborCount] = distance
	n.Costs[n.NeighborCount] = cost
	n.NeighborCount++
	return nil
}

// Reset zeroes the edge lists, keeping the position.
func (n *Neighborhood) Reset() {
	n.NeighborCount = 0
	n.Neighbors = [KNeighbors]int32{}
	n.Distances = [KNeighbors]float32{}
	n.Costs = [KNeighbors]float32{}
}

// Edges returns the valid prefixes of the three parallel arrays.
// NeighborCount is authoritative; callers must not read past it.
func (n *Neighborhood) Edges() (neighbors []int32, distances, costs []float32) {
	k := n.NeighborCount
	return n.Neighbors[:k], n.Distances[:k], n.Costs[:k]
}
