package colors

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/models"
)

// Module paints the cell colors of a body into the meshes of its chunks.
// Only the vertices of changed cells are repainted, except for chunks that
// just got a mesh which are painted entirely.
type Module struct {
	// The number of cells randomly recolored on each frame. Zero disables
	// random colors.
	SampleSize int

	// Seeds the random colors. Defaults to a seed derived from the body id.
	Seed uint64

	// Called on the frame loop after the mesh of a chunk is painted.
	OnPaint func(c *chunks.Chunk, painted []int)

	manager *chunks.Manager
	state   *State
	rand    *rand.Rand

	mutex   sync.Mutex
	pending map[*chunks.Chunk]struct{}
}

func (m *Module) Name() string {
	return "colors"
}

func (m *Module) Init(s *models.Scene, manager *chunks.Manager) {
	m.manager = manager
	m.pending = make(map[*chunks.Chunk]struct{})

	key := m.Name() + "/" + manager.Body.ID
	state, ok := s.ModuleState(key)
	if !ok {
		state = NewState()
		s.SetModuleState(key, state)
	}
	m.state = state.(*State)

	seed := m.Seed
	if seed == 0 {
		h := fnv.New64a()
		h.Write([]byte(manager.Body.ID))
		seed = h.Sum64()
	}
	m.rand = rand.New(rand.NewPCG(seed, 0))

	manager.AddListener(m)
}

// State returns the cell colors of the body.
func (m *Module) State() *State {
	return m.state
}

func (m *Module) ChunkReady(c *chunks.Chunk) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.pending[c] = struct{}{}
}

func (m *Module) ChunkRemoved(c *chunks.Chunk) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.pending, c)
}

func (m *Module) HandleFrame() {
	if m.SampleSize > 0 {
		m.state.Randomize(m.rand, m.manager.Body.CellCount(), m.SampleSize)
	}

	changed := m.state.TakeChanged()

	m.mutex.Lock()
	pending := m.pending
	m.pending = make(map[*chunks.Chunk]struct{})
	m.mutex.Unlock()

	if len(changed) == 0 && len(pending) == 0 {
		return
	}

	for _, c := range m.manager.Chunks() {
		var painted []int
		if _, ok := pending[c]; ok {
			painted = m.paint(c, c.Result().Cells)
		} else {
			painted = m.paint(c, changed)
		}

		if len(painted) != 0 && m.OnPaint != nil {
			m.OnPaint(c, painted)
		}
	}
}

// paint repaints the given cells that belong to the chunk and returns them.
func (m *Module) paint(c *chunks.Chunk, cells []int) []int {
	res := c.Result()
	if res == nil {
		return nil
	}

	var painted []int
	for _, cell := range cells {
		local, ok := res.CellsToLocal[cell]
		if !ok {
			continue
		}

		color, ok := m.state.Color(cell)
		if !ok {
			continue
		}

		if res.Mesh.PaintCell(res.LocalGeometry, local, color) != 0 {
			painted = append(painted, cell)
		}
	}

	if len(painted) != 0 {
		logs.WithTag("body", m.manager.Body.Name).
			WithTag("index", c.Index).
			WithTag("cells", len(painted)).
			Debug("chunk painted")
	}
	return painted
}

func (m *Module) Close() {
}
