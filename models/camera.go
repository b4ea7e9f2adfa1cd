package models

import (
	"math"
	"sync"
	"time"

	"github.com/aukilabs/hexsphere/geometry"
)

// POV is a point of view: a camera position in world space and its vertical
// field of view in radians.
type POV struct {
	Position geometry.Vector3f `json:"position"`
	FOV      float32           `json:"fov"`
}

// DefaultPOV looks at the unit sphere from the positive z axis.
var DefaultPOV = POV{
	Position: geometry.NewVector3f(0, 0, 3),
	FOV:      math.Pi / 4,
}

// Valid reports whether the point of view can be used to compute chunks.
func (p POV) Valid() bool {
	for _, v := range p.Position.Array() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return p.FOV > 0 && p.FOV < math.Pi
}

// Camera holds the latest point of view. It is updated by viewers and sampled
// once per frame.
type Camera struct {
	mutex     sync.RWMutex
	pov       POV
	updatedAt time.Time
}

func NewCamera(pov POV) *Camera {
	return &Camera{
		pov:       pov,
		updatedAt: time.Now(),
	}
}

// Set updates the point of view. Invalid points of view are ignored.
func (c *Camera) Set(pov POV) bool {
	if !pov.Valid() {
		return false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.pov = pov
	c.updatedAt = time.Now()
	instrumentCameraUpdate()
	return true
}

func (c *Camera) POV() POV {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.pov
}

func (c *Camera) UpdatedAt() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.updatedAt
}
