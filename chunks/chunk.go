package chunks

import (
	"github.com/aukilabs/hexsphere/mesher"
	"github.com/aukilabs/hexsphere/octree"
)

// Chunk is the renderable counterpart of an octree region of a body.
type Chunk struct {
	ID    uint32
	Body  *Body
	Index octree.Index

	needsMesh bool
	task      *mesher.Task
	result    *mesher.Result
	handle    Handle
}

// NeedsMesh reports whether the chunk waits for a mesh to be built.
func (c *Chunk) NeedsMesh() bool {
	return c.needsMesh
}

// Building reports whether a build of the chunk is in flight.
func (c *Chunk) Building() bool {
	return c.task != nil
}

// HasMesh reports whether the chunk has a mesh to display.
func (c *Chunk) HasMesh() bool {
	return c.result != nil
}

// Result returns the latest build result of the chunk. Painters may modify
// the mesh colors from the frame loop.
func (c *Chunk) Result() *mesher.Result {
	return c.result
}

// Handle returns the renderer handle of the mesh. It is zero when the chunk
// has no mesh.
func (c *Chunk) Handle() Handle {
	return c.handle
}

// cancelBuild cancels and forgets the build in flight. Its result is never
// integrated.
func (c *Chunk) cancelBuild() bool {
	if c.task == nil {
		return false
	}
	c.task.Cancel()
	c.task = nil
	return true
}

type RefState int

const (
	RefActive RefState = iota
	RefCleanup
)

func (s RefState) String() string {
	switch s {
	case RefActive:
		return "active"
	case RefCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Ref is the state of a region of a body. An active ref is part of the needed
// set. A cleanup ref is obsolete and waits for its dependents to have a mesh
// before being destroyed.
type Ref struct {
	State      RefState
	Chunk      *Chunk
	Dependents []octree.Index
}
