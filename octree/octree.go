package octree

import (
	"math"

	"github.com/aukilabs/hexsphere/geometry"
)

// MaxDepth is the depth at which nodes stop subdividing. Nodes at that depth
// keep accepting points past their capacity so that coincident points cannot
// subdivide forever.
const MaxDepth = 32

// Point is a cell position with the cell id as payload.
type Point struct {
	Position geometry.Vector3f
	Value    int
}

// Octree is a node of an octree that redistributes all its points into
// children as soon as its capacity is exceeded. A node either holds points
// directly or routes them to its children, never both.
type Octree struct {
	Center    geometry.Vector3f
	HalfWidth float32
	Capacity  int
	Depth     int
	ID        Index

	// The distance to the furthest leaf below this node.
	Height int

	router   bool
	points   []Point
	children [8]*Octree
}

// New returns an empty node.
func New(capacity int, center geometry.Vector3f, halfWidth float32, depth int, id Index) *Octree {
	return &Octree{
		Center:    center,
		HalfWidth: halfWidth,
		Capacity:  capacity,
		Depth:     depth,
		ID:        id,
	}
}

// Insert adds a point to the subtree.
func (o *Octree) Insert(p Point) {
	if !o.router && (len(o.points) <= o.Capacity || o.Depth >= MaxDepth) {
		o.points = append(o.points, p)
		return
	}

	o.insertIntoChild(p)

	if !o.router {
		points := o.points
		o.points = nil
		o.router = true

		for _, p := range points {
			o.insertIntoChild(p)
		}
	}
}

func (o *Octree) insertIntoChild(p Point) {
	i := o.childIndex(p.Position)

	child := o.children[i]
	if child == nil {
		child = New(o.Capacity,
			o.childCenter(i),
			o.HalfWidth/2,
			o.Depth+1,
			o.ID.Child(i),
		)
		o.children[i] = child
	}
	child.Insert(p)

	o.Height = max(o.Height, child.Height+1)
}

// The sign of each axis relative to the center is a bit of the child index:
// x is bit 0, y is bit 1 and z is bit 2. Positions on the center plane go to
// the positive side.
func (o *Octree) childIndex(pos geometry.Vector3f) int {
	i := 0
	if pos.X() >= o.Center.X() {
		i |= 1
	}
	if pos.Y() >= o.Center.Y() {
		i |= 2
	}
	if pos.Z() >= o.Center.Z() {
		i |= 4
	}
	return i
}

func (o *Octree) childCenter(i int) geometry.Vector3f {
	offset := o.HalfWidth / 2
	sign := func(bit int) float32 {
		if i&bit != 0 {
			return offset
		}
		return -offset
	}
	return geometry.Add(o.Center, geometry.NewVector3f(sign(1), sign(2), sign(4)))
}

// IsLeaf reports whether the node holds points directly.
func (o *Octree) IsLeaf() bool {
	return !o.router
}

// Child returns the child at the given index, or nil when that child has
// never received a point.
func (o *Octree) Child(i int) *Octree {
	if i < 0 || i >= len(o.children) {
		return nil
	}
	return o.children[i]
}

// Bounds returns the corners of the box covered by the node.
func (o *Octree) Bounds() (min, max geometry.Vector3f) {
	half := geometry.Splat(o.HalfWidth)
	return geometry.Sub(o.Center, half), geometry.Add(o.Center, half)
}

// Cells returns the payload of every point in the subtree.
func (o *Octree) Cells() []int {
	var cells []int
	o.Walk(func(n *Octree) bool {
		for _, p := range n.points {
			cells = append(cells, p.Value)
		}
		return true
	})
	return cells
}

// Walk calls fn on every node of the subtree, parents before children and
// children in index order. Returning false skips the children of that node.
func (o *Octree) Walk(fn func(*Octree) bool) {
	if !fn(o) {
		return
	}
	for _, c := range o.children {
		if c != nil {
			c.Walk(fn)
		}
	}
}

// GetChunkIndices returns the regions that cover every point of the subtree
// exactly once, with small regions close to target and larger ones further
// away. The detail parameter scales the distance: larger values give coarser
// regions. The total cell count is only used to size the result.
//
// A node is emitted when it is a leaf or when its desired height, the number
// of steps of size HalfWidth/max(Height, 1) separating its box from target,
// reaches its own height. The result is sorted.
func (o *Octree) GetChunkIndices(totalCells int, target geometry.Vector3f, detail float32) []Index {
	indices := make([]Index, 0, totalCells/max(o.Capacity, 1)+1)
	o.chunkIndices(target, detail, &indices)
	return indices
}

func (o *Octree) chunkIndices(target geometry.Vector3f, detail float32, indices *[]Index) {
	if !o.router || o.desiredHeight(target, detail) >= o.Height {
		*indices = append(*indices, o.ID)
		return
	}

	for _, c := range o.children {
		if c != nil {
			c.chunkIndices(target, detail, indices)
		}
	}
}

func (o *Octree) desiredHeight(target geometry.Vector3f, detail float32) int {
	if detail <= 0 {
		return 0
	}

	lo, hi := o.Bounds()
	projected := geometry.ClampVector(target, lo, hi)
	dist := geometry.Distance(projected, target)

	step := float64(o.HalfWidth) / float64(max(o.Height, 1))
	return int(math.Floor(dist * float64(detail) / step))
}

// Node returns the node identified by the given index. It returns false when
// the index does not correspond to a node of the subtree.
func (o *Octree) Node(id Index) (*Octree, bool) {
	n := o
	for n.ID != id {
		if !n.ID.IsAncestorOf(id) {
			return nil, false
		}

		sel := id.Selector(n.ID.Depth())
		if sel < 0 || sel >= len(n.children) || n.children[sel] == nil {
			return nil, false
		}
		n = n.children[sel]
	}
	return n, true
}

// GetCellsForIndex returns the cells of the region identified by the given
// index. It returns false when the region has no node, which happens when no
// point ever fell in it.
func (o *Octree) GetCellsForIndex(id Index) ([]int, bool) {
	n, ok := o.Node(id)
	if !ok {
		return nil, false
	}
	return n.Cells(), true
}
