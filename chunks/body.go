package chunks

import (
	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/octree"
	"github.com/google/uuid"
)

const (
	DefaultCapacity  = 16
	DefaultHalfWidth = 1
)

type BodyOptions struct {
	// The number of points a region holds before being split. Defaults to
	// DefaultCapacity.
	Capacity int

	// The half width of the root region. Defaults to DefaultHalfWidth.
	HalfWidth float32

	// The center of the root region, relative to the body.
	Center geometry.Vector3f

	// The position of the body in world space.
	Position geometry.Vector3f
}

// Body is a sphere surface: a static dataset and the octree built over its
// cell normals. It is never modified after creation and is shared by all the
// builds of its chunks.
type Body struct {
	ID       string
	Name     string
	Position geometry.Vector3f
	Geometry *geometry.Data
	Octree   *octree.Octree
}

func NewBody(name string, data *geometry.Data, opts BodyOptions) *Body {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.HalfWidth <= 0 {
		opts.HalfWidth = DefaultHalfWidth
	}

	tree := octree.New(opts.Capacity, opts.Center, opts.HalfWidth, 0, octree.Root)
	for i, normal := range data.CellNormals {
		tree.Insert(octree.Point{
			Position: normal,
			Value:    i,
		})
	}

	return &Body{
		ID:       uuid.NewString(),
		Name:     name,
		Position: opts.Position,
		Geometry: data,
		Octree:   tree,
	}
}

// CellCount returns the number of cells of the body.
func (b *Body) CellCount() int {
	return len(b.Geometry.Cells)
}
