package models

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scene represents the simulation shared by viewers. It owns the fixed-tick
// frame loop where all chunk state is mutated.
type Scene struct {
	ID     string
	Camera *Camera

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameDuration   time.Duration
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex
	frameCount      uint64

	closeOnce sync.Once
}

func NewScene(frameDuration time.Duration, camera *Camera) *Scene {
	if camera == nil {
		camera = NewCamera(DefaultPOV)
	}

	return &Scene{
		ID:             uuid.New().String(),
		Camera:         camera,
		closeFrameChan: make(chan struct{}, 1),
		frameDuration:  frameDuration,
		frameTicker:    time.NewTicker(frameDuration),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Scene) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Scene) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

// HandleFrame registers a function called on every frame. Handlers are called
// one after the other on the frame loop goroutine, in id order.
func (s *Scene) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h
	instrumentFrameHandlers(len(s.frameHandlers))

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		if _, ok := s.frameHandlers[id]; !ok {
			return
		}
		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
		instrumentFrameHandlers(len(s.frameHandlers))
	}
}

// StartDispatchFrames runs the frame loop until the scene is closed.
func (s *Scene) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.dispatchFrame()
			}
		}
	})
}

func (s *Scene) dispatchFrame() {
	start := time.Now()

	s.frameMutex.RLock()
	ids := make([]uint32, 0, len(s.frameHandlers))
	for id := range s.frameHandlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	handlers := make([]func(), len(ids))
	for i, id := range ids {
		handlers[i] = s.frameHandlers[id]
	}
	s.frameMutex.RUnlock()

	// Handlers may register or cancel handlers.
	for _, h := range handlers {
		h()
	}

	s.frameMutex.Lock()
	s.frameCount++
	s.frameMutex.Unlock()

	instrumentFrame(time.Since(start), s.frameDuration)
}

// FrameCount returns the number of dispatched frames.
func (s *Scene) FrameCount() uint64 {
	s.frameMutex.RLock()
	defer s.frameMutex.RUnlock()

	return s.frameCount
}
