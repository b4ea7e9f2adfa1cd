package geometry

import (
	"math"
)

// Icosahedron returns a regular icosahedron inscribed in the unit sphere with
// one cell per vertex. Cell i groups the five faces around vertex i.
func Icosahedron() *Data {
	phi := (1 + math.Sqrt(5)) / 2
	du := float32(1 / math.Sqrt(phi*phi+1))
	dv := float32(phi) * du

	vertices := []Vector3f{
		{0, dv, du},
		{0, dv, -du},
		{0, -dv, du},
		{0, -dv, -du},
		{du, 0, dv},
		{-du, 0, dv},
		{du, 0, -dv},
		{-du, 0, -dv},
		{dv, du, 0},
		{dv, -du, 0},
		{-dv, du, 0},
		{-dv, -du, 0},
	}

	faces := [][3]int{
		{8, 1, 0},
		{5, 4, 0},
		{10, 5, 0},
		{4, 8, 0},
		{1, 10, 0},
		{8, 6, 1},
		{6, 7, 1},
		{7, 10, 1},
		{11, 3, 2},
		{9, 4, 2},
		{4, 5, 2},
		{3, 9, 2},
		{5, 11, 2},
		{7, 6, 3},
		{11, 7, 3},
		{6, 9, 3},
		{9, 8, 4},
		{10, 11, 5},
		{8, 9, 6},
		{11, 10, 7},
	}

	cells := make([][]int, len(vertices))
	for i, f := range faces {
		for _, v := range f {
			cells[v] = append(cells[v], i)
		}
	}

	neighbors := make([]map[int]struct{}, len(vertices))
	for i := range neighbors {
		neighbors[i] = make(map[int]struct{})
	}
	for _, f := range faces {
		neighbors[f[0]][f[1]] = struct{}{}
		neighbors[f[1]][f[2]] = struct{}{}
		neighbors[f[2]][f[0]] = struct{}{}
	}

	d := &Data{
		Vertices:      vertices,
		Faces:         faces,
		Cells:         cells,
		CellNeighbors: make([][]int, len(neighbors)),
	}
	for i, set := range neighbors {
		d.CellNeighbors[i] = sortedSet(set)
	}
	d.CellNormals = d.CellCentroids()
	return d
}

// FibonacciPoint returns point i of n points evenly spread on the unit sphere.
func FibonacciPoint(i, n int) Vector3f {
	if n < 2 {
		return Vector3f{0, 1, 0}
	}

	phi := math.Pi * (math.Sqrt(5) - 1)
	y := 1 - (float64(i)/float64(n-1))*2
	radius := math.Sqrt(1 - y*y)
	theta := phi * float64(i)

	return Vector3f{
		float32(math.Cos(theta) * radius),
		float32(y),
		float32(math.Sin(theta) * radius),
	}
}

// Fibonacci returns a dataset of n cells spread on the unit sphere. Each cell
// is a single triangle of the given size, tangent to the sphere at its
// Fibonacci point. Cells have no neighbors.
func Fibonacci(n int, size float32) *Data {
	d := &Data{
		Vertices:      make([]Vector3f, 0, n*3),
		Faces:         make([][3]int, 0, n),
		Cells:         make([][]int, 0, n),
		CellNeighbors: make([][]int, n),
		CellNormals:   make([]Vector3f, 0, n),
	}

	const sin60 = 0.8660254
	for i := 0; i < n; i++ {
		p := FibonacciPoint(i, n)

		up := Vector3f{0, 1, 0}
		if math.Abs(float64(p.y)) > 0.99 {
			up = Vector3f{1, 0, 0}
		}
		t1 := Normalized(Cross(p, up))
		t2 := Cross(p, t1)

		start := len(d.Vertices)
		d.Vertices = append(d.Vertices,
			Add(p, Mul(t1, size)),
			Add(p, Mul(Add(Mul(t1, -0.5), Mul(t2, sin60)), size)),
			Add(p, Mul(Add(Mul(t1, -0.5), Mul(t2, -sin60)), size)),
		)
		d.Faces = append(d.Faces, [3]int{start, start + 1, start + 2})
		d.Cells = append(d.Cells, []int{i})
		d.CellNeighbors[i] = []int{}
		d.CellNormals = append(d.CellNormals, p)
	}
	return d
}
