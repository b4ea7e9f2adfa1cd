package chunks

import (
	"math"

	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/models"
	"github.com/aukilabs/hexsphere/octree"
)

// DefaultEpsilon is the point of view change under which chunks are not
// recomputed.
const DefaultEpsilon = 1e-4

// Resolver computes the regions of a body needed for a point of view.
type Resolver struct {
	// Squared distance and field of view deltas below it are ignored.
	// Defaults to DefaultEpsilon.
	Epsilon float32

	last     models.POV
	resolved bool
}

// Resolve returns the regions needed for the given point of view. It returns
// false when the point of view did not move since the last resolution.
//
// The target is the direction from the body to the camera and the detail is
// the square root of the field of view: zooming in gives finer regions.
func (r *Resolver) Resolve(b *Body, pov models.POV) ([]octree.Index, bool) {
	epsilon := r.Epsilon
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	if r.resolved &&
		geometry.DistanceSquared(pov.Position, r.last.Position) < epsilon &&
		float32(math.Abs(float64(pov.FOV-r.last.FOV))) < epsilon {
		return nil, false
	}
	r.last = pov
	r.resolved = true

	target := geometry.Normalized(geometry.Sub(pov.Position, b.Position))
	detail := float32(math.Sqrt(math.Max(float64(pov.FOV), 0)))
	return b.Octree.GetChunkIndices(b.CellCount(), target, detail), true
}

// Reset makes the next resolution compute regions whatever the point of view.
func (r *Resolver) Reset() {
	r.resolved = false
}
