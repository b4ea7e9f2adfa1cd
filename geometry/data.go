package geometry

import (
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidDataset = "invalid_dataset"
	ErrTypeDatasetIO      = "dataset_io"
)

// Data is a surface made of triangles grouped into cells. A cell is the unit
// that gets colored and chunked; its representative normal doubles as its
// position on the unit sphere.
type Data struct {
	// The position of vertex i.
	Vertices []Vector3f `json:"vertices"`

	// Triangles as vertex index triples.
	Faces [][3]int `json:"faces"`

	// The face indices grouped into each cell.
	Cells [][]int `json:"cells"`

	// The sorted neighbor cell indices of each cell.
	CellNeighbors [][]int `json:"cell_neighbors"`

	// The representative normal of each cell.
	CellNormals []Vector3f `json:"cell_normals"`
}

// Validate reports whether every index in the dataset points to an existing
// vertex, face or cell.
func (d *Data) Validate() error {
	if err := d.validateIndices(); err != nil {
		return err
	}

	if len(d.CellNeighbors) != len(d.Cells) {
		return errors.New("cell neighbors do not match cells").
			WithType(ErrTypeInvalidDataset).
			WithTag("cells", len(d.Cells)).
			WithTag("cell_neighbors", len(d.CellNeighbors))
	}
	for i, neighbors := range d.CellNeighbors {
		for _, n := range neighbors {
			if n < 0 || n >= len(d.Cells) {
				return errors.New("cell references an unknown neighbor").
					WithType(ErrTypeInvalidDataset).
					WithTag("cell", i).
					WithTag("neighbor", n)
			}
		}
	}

	if len(d.CellNormals) != len(d.Cells) {
		return errors.New("cell normals do not match cells").
			WithType(ErrTypeInvalidDataset).
			WithTag("cells", len(d.Cells)).
			WithTag("cell_normals", len(d.CellNormals))
	}
	return nil
}

func (d *Data) validateIndices() error {
	for i, f := range d.Faces {
		for _, v := range f {
			if v < 0 || v >= len(d.Vertices) {
				return errors.New("face references an unknown vertex").
					WithType(ErrTypeInvalidDataset).
					WithTag("face", i).
					WithTag("vertex", v)
			}
		}
	}

	for i, c := range d.Cells {
		for _, f := range c {
			if f < 0 || f >= len(d.Faces) {
				return errors.New("cell references an unknown face").
					WithType(ErrTypeInvalidDataset).
					WithTag("cell", i).
					WithTag("face", f)
			}
		}
	}

	return nil
}

// CellCentroids returns the average of the face centroids of each cell.
func (d *Data) CellCentroids() []Vector3f {
	centroids := make([]Vector3f, len(d.Cells))
	for i, faces := range d.Cells {
		if len(faces) == 0 {
			continue
		}

		var c Vector3f
		for _, f := range faces {
			face := d.Faces[f]
			avg := Add(Add(d.Vertices[face[0]], d.Vertices[face[1]]), d.Vertices[face[2]])
			c.Add(Mul(avg, 1.0/3))
		}
		centroids[i] = Mul(c, 1/float32(len(faces)))
	}
	return centroids
}

// SubGeometry extracts the given cells into a new, re-indexed dataset. It also
// returns the mapping from the given global cell ids to local cell ids.
// Neighbor sets only keep cells that are part of the subset.
func (d *Data) SubGeometry(cells []int) (*Data, map[int]int) {
	sub := &Data{
		Cells:       make([][]int, 0, len(cells)),
		CellNormals: make([]Vector3f, 0, len(cells)),
	}
	vertMap := make(map[int]int)
	cellMap := make(map[int]int, len(cells))

	for _, cellID := range cells {
		faces := d.Cells[cellID]
		localFaces := make([]int, 0, len(faces))

		for _, f := range faces {
			face := d.Faces[f]
			for _, v := range face {
				if _, ok := vertMap[v]; !ok {
					sub.Vertices = append(sub.Vertices, d.Vertices[v])
					vertMap[v] = len(sub.Vertices) - 1
				}
			}
			sub.Faces = append(sub.Faces, [3]int{
				vertMap[face[0]],
				vertMap[face[1]],
				vertMap[face[2]],
			})
			localFaces = append(localFaces, len(sub.Faces)-1)
		}

		sub.Cells = append(sub.Cells, localFaces)
		sub.CellNormals = append(sub.CellNormals, d.CellNormals[cellID])
		cellMap[cellID] = len(sub.Cells) - 1
	}

	neighbors := make([]map[int]struct{}, len(sub.Cells))
	for i := range neighbors {
		neighbors[i] = make(map[int]struct{})
	}
	for global, local := range cellMap {
		if global >= len(d.CellNeighbors) {
			continue
		}
		for _, n := range d.CellNeighbors[global] {
			if localNeighbor, ok := cellMap[n]; ok {
				neighbors[local][localNeighbor] = struct{}{}
				neighbors[localNeighbor][local] = struct{}{}
			}
		}
	}
	sub.CellNeighbors = make([][]int, len(neighbors))
	for i, set := range neighbors {
		sub.CellNeighbors[i] = sortedSet(set)
	}

	return sub, cellMap
}

// Duplicate returns a copy of the dataset where every face owns its three
// vertices. This is required for flat shading. Cells keep their face indices.
func (d *Data) Duplicate() *Data {
	dup := &Data{
		Vertices:      make([]Vector3f, 0, len(d.Faces)*3),
		Faces:         make([][3]int, 0, len(d.Faces)),
		Cells:         d.Cells,
		CellNeighbors: d.CellNeighbors,
		CellNormals:   d.CellNormals,
	}

	for _, f := range d.Faces {
		start := len(dup.Vertices)
		dup.Vertices = append(dup.Vertices,
			d.Vertices[f[0]],
			d.Vertices[f[1]],
			d.Vertices[f[2]],
		)
		dup.Faces = append(dup.Faces, [3]int{start, start + 1, start + 2})
	}
	return dup
}

// Simplify collapses the dataset into a single cell that keeps only its outer
// outline. Vertices shared by 3 or more cells are internal and dropped; the
// outline is fanned around the normalized average of all vertices, stored
// as vertex 0.
func (d *Data) Simplify() *Data {
	if len(d.Vertices) == 0 {
		return d
	}

	cellCountPerVertex := make([]int, len(d.Vertices))
	for _, faces := range d.Cells {
		cellVertices := make(map[int]struct{})
		for _, f := range faces {
			for _, v := range d.Faces[f] {
				cellVertices[v] = struct{}{}
			}
		}
		for v := range cellVertices {
			cellCountPerVertex[v]++
		}
	}

	const internalThreshold = 3
	isInternal := make([]bool, len(d.Vertices))
	for v, count := range cellCountPerVertex {
		isInternal[v] = count >= internalThreshold
	}

	var avg Vector3f
	for _, v := range d.Vertices {
		avg.Add(v)
	}
	avg = Normalized(Mul(avg, 1/float32(len(d.Vertices))))

	vertices := []Vector3f{avg}
	vertMap := make(map[int]int)
	for i, v := range d.Vertices {
		if isInternal[i] {
			continue
		}
		vertMap[i] = len(vertices)
		vertices = append(vertices, v)
	}

	var faces [][3]int
	for _, f := range d.Faces {
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			if isInternal[a] || isInternal[b] {
				continue
			}
			faces = append(faces, [3]int{0, vertMap[a], vertMap[b]})
		}
	}

	cell := make([]int, len(faces))
	for i := range cell {
		cell[i] = i
	}

	simple := &Data{
		Vertices:      vertices,
		Faces:         faces,
		Cells:         [][]int{cell},
		CellNeighbors: [][]int{{}},
	}
	simple.CellNormals = simple.CellCentroids()
	return simple
}

// FlatNormals returns a normal per vertex where every vertex of a cell gets
// that cell's normal. Vertices are expected to be duplicated.
func (d *Data) FlatNormals() []Vector3f {
	normals := make([]Vector3f, len(d.Vertices))
	for i, faces := range d.Cells {
		n := Normalized(d.CellNormals[i])
		for _, f := range faces {
			for _, v := range d.Faces[f] {
				normals[v] = n
			}
		}
	}
	return normals
}

func sortedSet(set map[int]struct{}) []int {
	s := make([]int, 0, len(set))
	for v := range set {
		s = append(s, v)
	}
	sort.Ints(s)
	return s
}
