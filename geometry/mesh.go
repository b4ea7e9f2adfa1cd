package geometry

// Color is a linear RGBA color.
type Color [4]float32

// BlendColor is the default value of the blend attribute of built meshes.
var BlendColor = Color{1, 0, 0, 1}

// Mesh is a renderable triangle list.
type Mesh struct {
	Positions   []Vector3f `json:"positions"`
	Indices     []uint32   `json:"indices"`
	Normals     []Vector3f `json:"normals"`
	Colors      []Color    `json:"colors"`
	BlendColors []Color    `json:"blend_colors"`
}

// BuildMesh returns a mesh of the dataset with every vertex colored with the
// given color.
func (d *Data) BuildMesh(color Color) *Mesh {
	m := &Mesh{
		Positions:   make([]Vector3f, len(d.Vertices)),
		Indices:     make([]uint32, 0, len(d.Faces)*3),
		Normals:     d.FlatNormals(),
		Colors:      make([]Color, len(d.Vertices)),
		BlendColors: make([]Color, len(d.Vertices)),
	}

	copy(m.Positions, d.Vertices)
	for _, f := range d.Faces {
		m.Indices = append(m.Indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	for i := range m.Colors {
		m.Colors[i] = color
		m.BlendColors[i] = BlendColor
	}
	return m
}

// PaintCell sets the color of every vertex of the given cell of d, the
// dataset the mesh was built from. It returns the number of painted vertices.
func (m *Mesh) PaintCell(d *Data, cell int, color Color) int {
	if cell < 0 || cell >= len(d.Cells) {
		return 0
	}

	n := 0
	for _, f := range d.Cells[cell] {
		for _, v := range d.Faces[f] {
			if v < len(m.Colors) {
				m.Colors[v] = color
				n++
			}
		}
	}
	return n
}

// VertexCount returns the number of vertices in the mesh.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// SizeBytes returns the approximate memory used by the mesh attributes.
func (m *Mesh) SizeBytes() uint64 {
	const (
		vectorSize = 12
		colorSize  = 16
		indexSize  = 4
	)

	return uint64(len(m.Positions)*vectorSize +
		len(m.Normals)*vectorSize +
		len(m.Colors)*colorSize +
		len(m.BlendColors)*colorSize +
		len(m.Indices)*indexSize)
}
