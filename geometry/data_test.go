package geometry

import (
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIcosahedron(t *testing.T) {
	d := Icosahedron()
	require.NoError(t, d.Validate())
	require.Len(t, d.Vertices, 12)
	require.Len(t, d.Faces, 20)
	require.Len(t, d.Cells, 12)

	for i, faces := range d.Cells {
		require.Len(t, faces, 5)
		require.Len(t, d.CellNeighbors[i], 5)

		for _, n := range d.CellNeighbors[i] {
			require.Contains(t, d.CellNeighbors[n], i)
		}

		// Cell centroids point in the direction of their vertex.
		require.Greater(t, Normalized(d.CellNormals[i]).Dot(d.Vertices[i]), float32(0.9))
	}
}

func TestDataValidate(t *testing.T) {
	t.Run("unknown vertex", func(t *testing.T) {
		d := Icosahedron()
		d.Faces[3][1] = 42

		err := d.Validate()
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidDataset, errors.Type(err))
	})

	t.Run("unknown face", func(t *testing.T) {
		d := Icosahedron()
		d.Cells[0] = append(d.Cells[0], 21)
		require.Error(t, d.Validate())
	})

	t.Run("unknown neighbor", func(t *testing.T) {
		d := Icosahedron()
		d.CellNeighbors[0] = append(d.CellNeighbors[0], 12)
		require.Error(t, d.Validate())
	})

	t.Run("missing normals", func(t *testing.T) {
		d := Icosahedron()
		d.CellNormals = d.CellNormals[:3]
		require.Error(t, d.Validate())
	})
}

func TestSubGeometry(t *testing.T) {
	d := Icosahedron()

	sub, cellMap := d.SubGeometry([]int{0, 1})
	require.NoError(t, sub.Validate())
	require.Len(t, sub.Cells, 2)
	require.Len(t, sub.Faces, 10)
	require.Len(t, sub.Vertices, 8)
	require.Equal(t, map[int]int{0: 0, 1: 1}, cellMap)
	require.Equal(t, [][]int{{1}, {0}}, sub.CellNeighbors)
	require.True(t, sub.CellNormals[1].Equal(d.CellNormals[1]))

	t.Run("disjoint cells have no neighbors", func(t *testing.T) {
		sub, cellMap := d.SubGeometry([]int{0, 3})
		require.Equal(t, map[int]int{0: 0, 3: 1}, cellMap)
		require.Empty(t, sub.CellNeighbors[0])
		require.Empty(t, sub.CellNeighbors[1])
	})
}

func TestDuplicate(t *testing.T) {
	d := Icosahedron()
	dup := d.Duplicate()

	require.NoError(t, dup.Validate())
	require.Len(t, dup.Vertices, len(d.Faces)*3)
	require.Len(t, dup.Faces, len(d.Faces))
	require.Len(t, d.Vertices, 12)

	for i, f := range dup.Faces {
		require.Equal(t, [3]int{i * 3, i*3 + 1, i*3 + 2}, f)
		require.True(t, dup.Vertices[f[0]].Equal(d.Vertices[d.Faces[i][0]]))
	}
}

func TestSimplify(t *testing.T) {
	d := Fibonacci(100, 0.01)
	sub, _ := d.SubGeometry([]int{0, 1, 2})

	simple := sub.Simplify()
	require.NoError(t, simple.Validate())
	require.Len(t, simple.Cells, 1)
	require.Len(t, simple.Vertices, 10)
	require.Len(t, simple.Faces, 9)
	require.True(t, EqualWithEpsilon(float32(simple.Vertices[0].Length()), 1, 0.0001))

	for _, f := range simple.Faces {
		require.Equal(t, 0, f[0])
	}

	t.Run("internal vertices are dropped", func(t *testing.T) {
		simple := Icosahedron().Simplify()
		require.Len(t, simple.Vertices, 1)
		require.Empty(t, simple.Faces)
		require.Len(t, simple.Cells, 1)
	})

	t.Run("empty", func(t *testing.T) {
		var empty Data
		require.Same(t, &empty, empty.Simplify())
	})
}

func TestFlatNormals(t *testing.T) {
	d := Fibonacci(20, 0.01)
	normals := d.FlatNormals()
	require.Len(t, normals, len(d.Vertices))

	for i, n := range normals {
		require.True(t, EqualWithEpsilon(float32(n.Length()), 1, 0.0001))
		require.True(t, n.EqualWithEpsilon(Normalized(d.CellNormals[i/3]), 0.0001))
	}
}

func TestBuildMesh(t *testing.T) {
	d := Icosahedron().Duplicate()
	color := Color{0.1, 0.2, 0.3, 1}

	m := d.BuildMesh(color)
	require.Equal(t, 60, m.VertexCount())
	require.Len(t, m.Indices, 60)
	require.Len(t, m.Normals, 60)
	require.Equal(t, color, m.Colors[42])
	require.Equal(t, BlendColor, m.BlendColors[42])
	require.Equal(t, uint64(60*12*2+60*16*2+60*4), m.SizeBytes())

	painted := Color{1, 1, 1, 1}
	require.Equal(t, 15, m.PaintCell(d, 0, painted))
	require.Zero(t, m.PaintCell(d, 12, painted))

	for _, f := range d.Cells[0] {
		for _, v := range d.Faces[f] {
			require.Equal(t, painted, m.Colors[v])
		}
	}
}

func TestFibonacci(t *testing.T) {
	d := Fibonacci(50, 0.01)
	require.NoError(t, d.Validate())
	require.Len(t, d.Cells, 50)

	require.True(t, d.CellNormals[0].EqualWithEpsilon(Vector3f{0, 1, 0}, 0.0001))
	require.True(t, d.CellNormals[49].EqualWithEpsilon(Vector3f{0, -1, 0}, 0.0001))

	for _, n := range d.CellNormals {
		require.True(t, EqualWithEpsilon(float32(n.Length()), 1, 0.0001))
	}

	single := Fibonacci(1, 0.01)
	require.NoError(t, single.Validate())
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	d := Icosahedron()

	for _, name := range []string{"ico.json", "ico.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(path, d))

			loaded, err := Load(path)
			require.NoError(t, err)
			require.Equal(t, d.Faces, loaded.Faces)
			require.Equal(t, d.Cells, loaded.Cells)
			require.Equal(t, d.CellNeighbors, loaded.CellNeighbors)
			require.Len(t, loaded.CellNormals, 12)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.json"))
		require.Error(t, err)
		require.Equal(t, ErrTypeDatasetIO, errors.Type(err))
	})

	t.Run("derived normals", func(t *testing.T) {
		stripped := Icosahedron()
		stripped.CellNormals = nil
		stripped.CellNeighbors = nil

		path := filepath.Join(dir, "stripped.json")
		require.NoError(t, Save(path, stripped))

		loaded, err := Load(path)
		require.NoError(t, err)
		require.Len(t, loaded.CellNeighbors, 12)
		for i, n := range loaded.CellNormals {
			require.True(t, EqualWithEpsilon(float32(n.Length()), 1, 0.0001))
			require.Greater(t, n.Dot(d.Vertices[i]), float32(0.9))
		}
	})
}
