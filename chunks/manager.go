package chunks

import (
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/mesher"
	"github.com/aukilabs/hexsphere/models"
	"github.com/aukilabs/hexsphere/octree"
)

// Manager maintains the chunks of a body for a moving point of view. All its
// methods are meant to be called from the frame loop. Read methods are safe
// to call from other goroutines.
type Manager struct {
	Body *Body

	// The pool where chunk meshes are built.
	Pool *mesher.Pool

	// The renderer where chunk meshes are uploaded. Defaults to a
	// MemoryRenderer.
	Renderer Renderer

	// The options passed to every chunk build.
	BuildOptions mesher.Options

	Resolver Resolver

	initOnce  sync.Once
	mutex     sync.RWMutex
	refs      map[octree.Index]*Ref
	chunkIDs  models.SequentialIDGenerator
	listeners []Listener
	events    []event
	stats     Stats
}

type event struct {
	chunk   *Chunk
	removed bool
}

// Stats are counters of the manager state transitions.
type Stats struct {
	Created     uint64 `json:"created"`
	Reinstated  uint64 `json:"reinstated"`
	Retired     uint64 `json:"retired"`
	Destroyed   uint64 `json:"destroyed"`
	Integrated  uint64 `json:"integrated"`
	Retries     uint64 `json:"retries"`
	Recomputes  uint64 `json:"recomputes"`
	Transitions uint64 `json:"transitions"`
}

func (m *Manager) init() {
	m.refs = make(map[octree.Index]*Ref)

	if m.Renderer == nil {
		m.Renderer = &MemoryRenderer{}
	}
	if m.Pool == nil {
		m.Pool = &mesher.Pool{}
	}
}

// AddListener registers a listener notified when chunks get a mesh or are
// destroyed.
func (m *Manager) AddListener(l Listener) {
	m.initOnce.Do(m.init)
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.listeners = append(m.listeners, l)
}

// Tick runs a full update cycle for the given point of view.
func (m *Manager) Tick(pov models.POV) {
	m.initOnce.Do(m.init)
	start := time.Now()

	m.mutex.Lock()
	if needed, changed := m.Resolver.Resolve(m.Body, pov); changed {
		m.recompute(needed)
	}
	m.collect()
	m.dispatch()
	m.poll()
	m.collect()
	events := m.takeEvents()
	m.mutex.Unlock()

	m.notify(events)
	instrumentTick(m.Body.Name, time.Since(start))
	m.instrumentRefs()
}

// Recompute diffs the given needed regions against the existing chunks.
// New regions get a chunk waiting for a mesh, regions in cleanup are
// reinstated and regions no longer needed move to cleanup with the needed
// regions that replace them as dependents.
func (m *Manager) Recompute(needed []octree.Index) {
	m.initOnce.Do(m.init)
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recompute(needed)
}

func (m *Manager) recompute(needed []octree.Index) {
	m.stats.Recomputes++
	neededSet := make(map[octree.Index]struct{}, len(needed))

	for _, idx := range needed {
		neededSet[idx] = struct{}{}

		ref, ok := m.refs[idx]
		if !ok {
			m.refs[idx] = &Ref{
				State: RefActive,
				Chunk: &Chunk{
					ID:        m.chunkIDs.New(),
					Body:      m.Body,
					Index:     idx,
					needsMesh: true,
				},
			}
			m.transition(transitionCreated, idx)
			continue
		}

		switch ref.State {
		case RefActive:

		case RefCleanup:
			ref.State = RefActive
			ref.Dependents = nil
			ref.Chunk.cancelBuild()
			ref.Chunk.needsMesh = true
			m.transition(transitionReinstated, idx)
		}
	}

	obsolete := make(map[octree.Index]struct{})
	for idx := range m.refs {
		if _, ok := neededSet[idx]; !ok {
			obsolete[idx] = struct{}{}
		}
	}
	if len(obsolete) == 0 {
		return
	}

	// An obsolete region is replaced by the needed regions below it when
	// refining, and by its nearest needed ancestor when coarsening.
	replacing := make(map[octree.Index][]octree.Index, len(obsolete))
	for _, idx := range needed {
		for _, a := range idx.Ancestors() {
			if _, ok := obsolete[a]; ok {
				replacing[a] = append(replacing[a], idx)
			}
		}
	}
	for idx := range obsolete {
		for _, a := range idx.Ancestors() {
			if _, ok := neededSet[a]; ok {
				replacing[idx] = append(replacing[idx], a)
				break
			}
		}
	}

	for idx := range obsolete {
		ref := m.refs[idx]
		dependents := replacing[idx]
		sort.Slice(dependents, func(i, j int) bool {
			return dependents[i] < dependents[j]
		})

		switch ref.State {
		case RefActive:
			ref.State = RefCleanup
			ref.Dependents = dependents
			ref.Chunk.needsMesh = false
			ref.Chunk.cancelBuild()
			m.transition(transitionRetired, idx)

		case RefCleanup:
			ref.Dependents = dependents
		}
	}
}

// Dispatch submits a build for every active chunk waiting for a mesh. It
// stops when the pool refuses builds; remaining chunks are submitted on a
// later call.
func (m *Manager) Dispatch() {
	m.initOnce.Do(m.init)
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.dispatch()
}

func (m *Manager) dispatch() {
	for _, idx := range m.sortedIndices() {
		ref := m.refs[idx]
		c := ref.Chunk

		if ref.State != RefActive || !c.needsMesh || c.task != nil {
			continue
		}

		// Reinstated chunks keep the mesh they had before cleanup.
		if c.result != nil {
			c.needsMesh = false
			continue
		}

		task, ok := m.Pool.Submit(mesher.Request{
			Index:    idx,
			Geometry: m.Body.Geometry,
			Octree:   m.Body.Octree,
			Options:  m.BuildOptions,
		})
		if !ok {
			return
		}
		c.task = task
	}
}

// Poll integrates the builds that completed. It never blocks.
func (m *Manager) Poll() {
	m.initOnce.Do(m.init)
	m.mutex.Lock()
	events := func() []event {
		defer m.mutex.Unlock()
		m.poll()
		return m.takeEvents()
	}()

	m.notify(events)
}

func (m *Manager) poll() {
	for idx, ref := range m.refs {
		c := ref.Chunk
		if c.task == nil || !c.task.Done() {
			continue
		}

		task := c.task
		c.task = nil

		res, ok := task.Result()
		if !ok {
			// Empty region or crashed build. The chunk still needs a mesh
			// and is submitted again.
			m.stats.Retries++
			instrumentRetry(m.Body.Name)
			logs.WithTag("body", m.Body.Name).
				WithTag("index", idx).
				Debug("chunk build returned no mesh")
			continue
		}

		if c.handle != 0 {
			m.Renderer.Release(c, c.handle)
		}
		c.result = res
		c.handle = m.Renderer.Upload(c, res.Mesh)
		c.needsMesh = false

		m.stats.Integrated++
		instrumentIntegrate(m.Body.Name)
		m.events = append(m.events, event{chunk: c})
	}
}

// Collect destroys the chunks in cleanup whose dependents all have a mesh.
// Dependents that no longer exist are considered ready.
func (m *Manager) Collect() {
	m.initOnce.Do(m.init)
	m.mutex.Lock()
	events := func() []event {
		defer m.mutex.Unlock()
		m.collect()
		return m.takeEvents()
	}()

	m.notify(events)
}

func (m *Manager) collect() {
	for idx, ref := range m.refs {
		if ref.State != RefCleanup || !m.dependentsReady(ref) {
			continue
		}

		delete(m.refs, idx)
		m.destroy(ref.Chunk)
		m.transition(transitionDestroyed, idx)
	}
}

func (m *Manager) dependentsReady(ref *Ref) bool {
	for _, idx := range ref.Dependents {
		dep, ok := m.refs[idx]
		if !ok {
			continue
		}
		if !dep.Chunk.HasMesh() {
			return false
		}
	}
	return true
}

func (m *Manager) destroy(c *Chunk) {
	c.cancelBuild()
	if c.handle != 0 {
		m.Renderer.Release(c, c.handle)
		c.handle = 0
	}
	c.result = nil
	m.chunkIDs.Reuse(c.ID)
	m.events = append(m.events, event{chunk: c, removed: true})
}

// Close destroys every chunk.
func (m *Manager) Close() {
	m.initOnce.Do(m.init)
	m.mutex.Lock()
	events := func() []event {
		defer m.mutex.Unlock()

		for idx, ref := range m.refs {
			delete(m.refs, idx)
			m.destroy(ref.Chunk)
		}
		return m.takeEvents()
	}()

	m.notify(events)
	m.instrumentRefs()
}

// Ref returns a copy of the state of the given region.
func (m *Manager) Ref(idx octree.Index) (Ref, bool) {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ref, ok := m.refs[idx]
	if !ok {
		return Ref{}, false
	}

	cpy := *ref
	cpy.Dependents = append([]octree.Index(nil), ref.Dependents...)
	return cpy, true
}

// Chunk returns the chunk of the given region, whatever its state.
func (m *Manager) Chunk(idx octree.Index) (*Chunk, bool) {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ref, ok := m.refs[idx]
	if !ok {
		return nil, false
	}
	return ref.Chunk, true
}

// Chunks returns the chunks that have a mesh, sorted by region.
func (m *Manager) Chunks() []*Chunk {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	chunks := make([]*Chunk, 0, len(m.refs))
	for _, idx := range m.sortedIndices() {
		if c := m.refs[idx].Chunk; c.HasMesh() {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// Indices returns the regions in the given state, sorted.
func (m *Manager) Indices(state RefState) []octree.Index {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var indices []octree.Index
	for _, idx := range m.sortedIndices() {
		if m.refs[idx].State == state {
			indices = append(indices, idx)
		}
	}
	return indices
}

// Converged reports whether every region is active and has a mesh.
func (m *Manager) Converged() bool {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, ref := range m.refs {
		if ref.State != RefActive || !ref.Chunk.HasMesh() {
			return false
		}
	}
	return len(m.refs) != 0
}

func (m *Manager) Stats() Stats {
	m.initOnce.Do(m.init)
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.stats
}

func (m *Manager) sortedIndices() []octree.Index {
	indices := make([]octree.Index, 0, len(m.refs))
	for idx := range m.refs {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		return indices[i] < indices[j]
	})
	return indices
}

func (m *Manager) transition(t string, idx octree.Index) {
	switch t {
	case transitionCreated:
		m.stats.Created++
	case transitionReinstated:
		m.stats.Reinstated++
	case transitionRetired:
		m.stats.Retired++
	case transitionDestroyed:
		m.stats.Destroyed++
	}
	m.stats.Transitions++

	instrumentTransition(m.Body.Name, t)
	logs.WithTag("body", m.Body.Name).
		WithTag("index", idx).
		WithTag("transition", t).
		Debug("chunk transition")
}

func (m *Manager) takeEvents() []event {
	events := m.events
	m.events = nil
	return events
}

func (m *Manager) notify(events []event) {
	if len(events) == 0 {
		return
	}

	m.mutex.RLock()
	listeners := m.listeners
	m.mutex.RUnlock()

	for _, e := range events {
		for _, l := range listeners {
			if e.removed {
				l.ChunkRemoved(e.chunk)
			} else {
				l.ChunkReady(e.chunk)
			}
		}
	}
}

func (m *Manager) instrumentRefs() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var active, cleanup, building int
	for _, ref := range m.refs {
		switch ref.State {
		case RefActive:
			active++
		case RefCleanup:
			cleanup++
		}
		if ref.Chunk.Building() {
			building++
		}
	}
	instrumentRefs(m.Body.Name, active, cleanup, building)
}
