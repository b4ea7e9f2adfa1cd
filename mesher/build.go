package mesher

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/octree"
)

// DefaultSimplifyThreshold is the number of cells above which a region is
// collapsed into a single simplified cell.
const DefaultSimplifyThreshold = 256

type Options struct {
	// Regions with more cells are simplified. Zero means
	// DefaultSimplifyThreshold.
	SimplifyThreshold int

	DisableSimplify  bool
	DisableDuplicate bool
}

func (o Options) simplifyThreshold() int {
	if o.SimplifyThreshold <= 0 {
		return DefaultSimplifyThreshold
	}
	return o.SimplifyThreshold
}

// Request describes the region to build. Geometry and Octree are shared
// between builds and must not be modified.
type Request struct {
	Index    octree.Index
	Geometry *geometry.Data
	Octree   *octree.Octree
	Options  Options
}

// Result is the output of a build. It is owned by whoever consumes it.
type Result struct {
	Index octree.Index

	// The global cell ids of the region.
	Cells []int

	// The region geometry, re-indexed.
	LocalGeometry *geometry.Data

	// Maps global cell ids to cells of LocalGeometry.
	CellsToLocal map[int]int

	Mesh       *geometry.Mesh
	Simplified bool
}

// Build extracts the region geometry and builds its mesh. It only reads the
// request geometry and octree. It returns false when the region has no cells.
func Build(req Request) (*Result, bool) {
	cells, ok := req.Octree.GetCellsForIndex(req.Index)
	if !ok || len(cells) == 0 {
		return nil, false
	}

	local, cellMap := req.Geometry.SubGeometry(cells)
	simplified := false

	switch {
	case len(local.Cells) > req.Options.simplifyThreshold() && !req.Options.DisableSimplify:
		local = local.Simplify()
		for c := range cellMap {
			cellMap[c] = 0
		}
		simplified = true

	case !req.Options.DisableDuplicate:
		local = local.Duplicate()
	}

	return &Result{
		Index:         req.Index,
		Cells:         cells,
		LocalGeometry: local,
		CellsToLocal:  cellMap,
		Mesh:          local.BuildMesh(regionColor(req.Index)),
		Simplified:    simplified,
	}, true
}

// regionColor returns a random color that is stable for a given region.
func regionColor(idx octree.Index) geometry.Color {
	h := fnv.New64a()
	h.Write([]byte(idx))

	r := rand.New(rand.NewPCG(h.Sum64(), 0))
	return geometry.Color{r.Float32(), r.Float32(), r.Float32(), 1}
}
