package chunks

import (
	"sync"

	"github.com/aukilabs/hexsphere/geometry"
)

// Handle identifies a mesh uploaded to a renderer. Zero means no mesh.
type Handle uint64

// Renderer turns chunk meshes into drawable objects.
type Renderer interface {
	Upload(c *Chunk, m *geometry.Mesh) Handle
	Release(c *Chunk, h Handle)
}

// Listener is notified from the frame loop when chunks change. Listeners are
// called after the manager state is updated and may read it.
type Listener interface {
	ChunkReady(c *Chunk)
	ChunkRemoved(c *Chunk)
}

// MemoryRenderer keeps the uploaded meshes in memory.
type MemoryRenderer struct {
	mutex  sync.RWMutex
	nextID Handle
	meshes map[Handle]*geometry.Mesh
	bytes  uint64
}

func (r *MemoryRenderer) Upload(c *Chunk, m *geometry.Mesh) Handle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.meshes == nil {
		r.meshes = make(map[Handle]*geometry.Mesh)
	}

	r.nextID++
	r.meshes[r.nextID] = m
	r.bytes += m.SizeBytes()
	return r.nextID
}

func (r *MemoryRenderer) Release(c *Chunk, h Handle) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	m, ok := r.meshes[h]
	if !ok {
		return
	}
	delete(r.meshes, h)
	r.bytes -= m.SizeBytes()
}

// Mesh returns the mesh uploaded with the given handle.
func (r *MemoryRenderer) Mesh(h Handle) (*geometry.Mesh, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	m, ok := r.meshes[h]
	return m, ok
}

// Len returns the number of meshes held.
func (r *MemoryRenderer) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.meshes)
}

// Bytes returns the approximate memory held by meshes.
func (r *MemoryRenderer) Bytes() uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.bytes
}
