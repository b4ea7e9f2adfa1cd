package modules

import (
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/models"
)

// Module is the interface that describes a module that extends the chunks of
// a body with per frame behavior, such as painting their meshes.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module for the given body chunks. Modules that need to
	// track chunks register themselves as listeners of the manager.
	Init(*models.Scene, *chunks.Manager)

	// Handles a frame. It is called on the frame loop, after the chunks are
	// updated.
	HandleFrame()

	// Releases the module resources.
	Close()
}
