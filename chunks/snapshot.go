package chunks

import (
	"github.com/aukilabs/hexsphere/octree"
)

type ChunkInfo struct {
	ID         uint32         `json:"id"`
	Index      octree.Index   `json:"index"`
	State      string         `json:"state"`
	Dependents []octree.Index `json:"dependents,omitempty"`
	NeedsMesh  bool           `json:"needs_mesh"`
	Building   bool           `json:"building"`
	HasMesh    bool           `json:"has_mesh"`
	Cells      int            `json:"cells"`
	Vertices   int            `json:"vertices"`
	Simplified bool           `json:"simplified"`
	MeshBytes  uint64         `json:"mesh_bytes"`
}

// Snapshot is a point in time copy of the chunks of a body.
type Snapshot struct {
	BodyID    string      `json:"body_id"`
	BodyName  string      `json:"body_name"`
	Cells     int         `json:"cells"`
	Active    int         `json:"active"`
	Cleanup   int         `json:"cleanup"`
	MeshBytes uint64      `json:"mesh_bytes"`
	Stats     Stats       `json:"stats"`
	Chunks    []ChunkInfo `json:"chunks"`
}

// Snapshot returns a copy of the chunk states sorted by region.
func (m *Manager) Snapshot() Snapshot {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s := Snapshot{
		BodyID:   m.Body.ID,
		BodyName: m.Body.Name,
		Cells:    m.Body.CellCount(),
		Stats:    m.stats,
		Chunks:   make([]ChunkInfo, 0, len(m.refs)),
	}

	for _, idx := range m.sortedIndices() {
		ref := m.refs[idx]
		c := ref.Chunk

		info := ChunkInfo{
			ID:         c.ID,
			Index:      idx,
			State:      ref.State.String(),
			Dependents: append([]octree.Index(nil), ref.Dependents...),
			NeedsMesh:  c.needsMesh,
			Building:   c.task != nil,
			HasMesh:    c.result != nil,
		}
		if res := c.result; res != nil {
			info.Cells = len(res.Cells)
			info.Vertices = res.Mesh.VertexCount()
			info.Simplified = res.Simplified
			info.MeshBytes = res.Mesh.SizeBytes()
		}

		switch ref.State {
		case RefActive:
			s.Active++
		case RefCleanup:
			s.Cleanup++
		}
		s.MeshBytes += info.MeshBytes
		s.Chunks = append(s.Chunks, info)
	}
	return s
}
