package models

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/hexsphere/geometry"
	"github.com/stretchr/testify/require"
)

func TestSceneModuleState(t *testing.T) {
	t.Run("module state is found", func(t *testing.T) {
		s := NewScene(time.Second, nil)
		defer s.Close()

		stateA := 42
		s.SetModuleState("testModule", stateA)

		stateB, ok := s.ModuleState("testModule")
		require.True(t, ok)
		require.Equal(t, stateA, stateB)
	})

	t.Run("module state is not found", func(t *testing.T) {
		s := NewScene(time.Second, nil)
		defer s.Close()

		state, ok := s.ModuleState("testModule")
		require.False(t, ok)
		require.Nil(t, state)
	})
}

func TestSceneHandleFrame(t *testing.T) {
	scene := NewScene(time.Millisecond*5, nil)
	defer scene.Close()

	cancel := scene.HandleFrame(func() {})
	require.Len(t, scene.frameHandlers, 1)
	defer cancel()

	cancel()
	require.Empty(t, scene.frameHandlers)

	id := scene.frameHandlerIDs.New()
	require.Equal(t, uint32(1), id)
}

func TestSceneStartDispatchFrames(t *testing.T) {
	t.Run("handlers are called", func(t *testing.T) {
		scene := NewScene(time.Millisecond*5, nil)

		var once sync.Once
		called := make(chan struct{})
		scene.HandleFrame(func() {
			once.Do(func() { close(called) })
		})

		done := make(chan struct{})
		go func() {
			scene.StartDispatchFrames()
			close(done)
		}()

		<-called
		scene.Close()
		<-done
		require.NotZero(t, scene.FrameCount())
	})

	t.Run("handlers are called in order", func(t *testing.T) {
		scene := NewScene(time.Millisecond*5, nil)
		defer scene.Close()

		var calls []int
		scene.HandleFrame(func() { calls = append(calls, 1) })
		scene.HandleFrame(func() { calls = append(calls, 2) })
		scene.HandleFrame(func() { calls = append(calls, 3) })

		scene.dispatchFrame()
		require.Equal(t, []int{1, 2, 3}, calls)
		require.Equal(t, uint64(1), scene.FrameCount())
	})

	t.Run("handlers can register and cancel handlers", func(t *testing.T) {
		scene := NewScene(time.Millisecond*5, nil)
		defer scene.Close()

		var calls []string
		var cancel func()
		cancel = scene.HandleFrame(func() {
			calls = append(calls, "once")
			cancel()
			scene.HandleFrame(func() { calls = append(calls, "next") })
		})

		done := make(chan struct{})
		go func() {
			scene.dispatchFrame()
			scene.dispatchFrame()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second * 5):
			t.Fatal("frame dispatch is blocked")
		}
		require.Equal(t, []string{"once", "next"}, calls)
		require.Len(t, scene.frameHandlers, 1)
	})
}

func TestCamera(t *testing.T) {
	t.Run("default point of view", func(t *testing.T) {
		scene := NewScene(time.Second, nil)
		defer scene.Close()

		require.Equal(t, DefaultPOV, scene.Camera.POV())
	})

	t.Run("valid point of view is set", func(t *testing.T) {
		c := NewCamera(DefaultPOV)
		updatedAt := c.UpdatedAt()

		pov := POV{Position: geometry.NewVector3f(1, 2, 3), FOV: 0.5}
		require.True(t, c.Set(pov))
		require.Equal(t, pov, c.POV())
		require.False(t, c.UpdatedAt().Before(updatedAt))
	})

	t.Run("invalid point of view is ignored", func(t *testing.T) {
		c := NewCamera(DefaultPOV)

		nan := float32(math.NaN())
		require.False(t, c.Set(POV{Position: geometry.NewVector3f(nan, 0, 0), FOV: 0.5}))
		require.False(t, c.Set(POV{Position: geometry.NewVector3f(0, 0, 2), FOV: 0}))
		require.False(t, c.Set(POV{Position: geometry.NewVector3f(0, 0, 2), FOV: 4}))
		require.Equal(t, DefaultPOV, c.POV())
	})
}
