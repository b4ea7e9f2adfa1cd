package mesher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/octree"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	data, tree := newTestSphere(1000)

	t.Run("region is duplicated", func(t *testing.T) {
		cells, ok := tree.GetCellsForIndex("7")
		require.True(t, ok)
		require.LessOrEqual(t, len(cells), DefaultSimplifyThreshold)

		res, ok := Build(Request{Index: "7", Geometry: data, Octree: tree})
		require.True(t, ok)
		require.Equal(t, octree.Index("7"), res.Index)
		require.Equal(t, cells, res.Cells)
		require.False(t, res.Simplified)
		require.Len(t, res.LocalGeometry.Cells, len(cells))
		require.Len(t, res.LocalGeometry.Vertices, len(res.LocalGeometry.Faces)*3)
		require.Equal(t, len(res.LocalGeometry.Vertices), res.Mesh.VertexCount())

		require.Len(t, res.CellsToLocal, len(cells))
		for i, c := range cells {
			require.Equal(t, i, res.CellsToLocal[c])
		}
	})

	t.Run("large region is simplified", func(t *testing.T) {
		res, ok := Build(Request{
			Index:    octree.Root,
			Geometry: data,
			Octree:   tree,
			Options:  Options{SimplifyThreshold: 10},
		})
		require.True(t, ok)
		require.True(t, res.Simplified)
		require.Len(t, res.Cells, 1000)
		require.Len(t, res.LocalGeometry.Cells, 1)

		for _, local := range res.CellsToLocal {
			require.Zero(t, local)
		}
	})

	t.Run("simplification can be disabled", func(t *testing.T) {
		res, ok := Build(Request{
			Index:    octree.Root,
			Geometry: data,
			Octree:   tree,
			Options: Options{
				SimplifyThreshold: 10,
				DisableSimplify:   true,
				DisableDuplicate:  true,
			},
		})
		require.True(t, ok)
		require.False(t, res.Simplified)
		require.Len(t, res.LocalGeometry.Cells, 1000)
	})

	t.Run("unknown region", func(t *testing.T) {
		_, ok := Build(Request{Index: "9", Geometry: data, Octree: tree})
		require.False(t, ok)
	})

	t.Run("same region gives the same mesh", func(t *testing.T) {
		requests := []Request{
			{Index: "7", Geometry: data, Octree: tree},
			{Index: octree.Root, Geometry: data, Octree: tree, Options: Options{SimplifyThreshold: 10}},
		}

		for _, req := range requests {
			want, ok := Build(req)
			require.True(t, ok)

			again, ok := Build(req)
			require.True(t, ok)
			requireSameBuild(t, want, again)

			const builders = 8
			results := make([]*Result, builders)

			var wg sync.WaitGroup
			for i := range builders {
				wg.Add(1)
				go func() {
					defer wg.Done()

					// Other regions are built at the same time.
					Build(Request{Index: "3", Geometry: data, Octree: tree})
					results[i], _ = Build(req)
				}()
			}
			wg.Wait()

			for _, res := range results {
				require.NotNil(t, res)
				requireSameBuild(t, want, res)
			}
		}
	})

	t.Run("region color is stable", func(t *testing.T) {
		require.Equal(t, regionColor("123"), regionColor("123"))
		require.NotEqual(t, regionColor("123"), regionColor("124"))
		require.Equal(t, float32(1), regionColor("5")[3])
	})
}

func TestPool(t *testing.T) {
	data, tree := newTestSphere(200)

	t.Run("builds a chunk", func(t *testing.T) {
		p := &Pool{NumWorkers: 2}
		defer p.Close()

		task, ok := p.Submit(Request{Index: octree.Root, Geometry: data, Octree: tree})
		require.True(t, ok)
		require.Equal(t, octree.Root, task.Index())

		waitTask(t, task)
		res, ok := task.Result()
		require.True(t, ok)
		require.Len(t, res.Cells, 200)
	})

	t.Run("result is not available before completion", func(t *testing.T) {
		release := make(chan struct{})
		p := &Pool{
			NumWorkers: 1,
			BuildFunc: func(req Request) (*Result, bool) {
				<-release
				return &Result{Index: req.Index}, true
			},
		}
		defer p.Close()

		task, ok := p.Submit(Request{Index: "1"})
		require.True(t, ok)
		require.False(t, task.Done())

		_, ok = task.Result()
		require.False(t, ok)

		close(release)
		waitTask(t, task)
		_, ok = task.Result()
		require.True(t, ok)
	})

	t.Run("submit is throttled", func(t *testing.T) {
		release := make(chan struct{})
		p := &Pool{
			NumWorkers:  1,
			MaxInFlight: 1,
			BuildFunc: func(req Request) (*Result, bool) {
				<-release
				return &Result{Index: req.Index}, true
			},
		}
		defer p.Close()

		task, ok := p.Submit(Request{Index: "1"})
		require.True(t, ok)

		_, ok = p.Submit(Request{Index: "2"})
		require.False(t, ok)

		close(release)
		waitTask(t, task)

		require.Eventually(t, func() bool {
			_, ok := p.Submit(Request{Index: "2"})
			return ok
		}, time.Second, time.Millisecond*10)
	})

	t.Run("canceled task is skipped", func(t *testing.T) {
		var calls atomic.Int32
		release := make(chan struct{})
		p := &Pool{
			NumWorkers: 1,
			BuildFunc: func(req Request) (*Result, bool) {
				calls.Add(1)
				<-release
				return &Result{Index: req.Index}, true
			},
		}
		defer p.Close()

		first, ok := p.Submit(Request{Index: "1"})
		require.True(t, ok)
		require.Eventually(t, func() bool {
			return calls.Load() == 1
		}, time.Second, time.Millisecond*10)

		second, ok := p.Submit(Request{Index: "2"})
		require.True(t, ok)
		second.Cancel()
		require.True(t, second.Canceled())

		close(release)
		waitTask(t, first)
		waitTask(t, second)

		_, ok = second.Result()
		require.False(t, ok)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("crashed workers are respawned", func(t *testing.T) {
		p := &Pool{
			NumWorkers: 2,
			BuildFunc: func(req Request) (*Result, bool) {
				if req.Index == "0" {
					panic("boom")
				}
				return &Result{Index: req.Index}, true
			},
		}
		defer p.Close()

		task, ok := p.Submit(Request{Index: "0"})
		require.True(t, ok)
		waitTask(t, task)

		_, ok = task.Result()
		require.False(t, ok)

		require.Eventually(t, func() bool {
			return p.AliveWorkers() == 1
		}, time.Second, time.Millisecond*10)

		require.Equal(t, 1, p.CheckWorkers())
		require.Equal(t, 2, p.AliveWorkers())
		require.Zero(t, p.CheckWorkers())

		task, ok = p.Submit(Request{Index: "1"})
		require.True(t, ok)
		waitTask(t, task)

		_, ok = task.Result()
		require.True(t, ok)
	})

	t.Run("closed pool refuses tasks", func(t *testing.T) {
		p := &Pool{NumWorkers: 1}
		p.Close()
		p.Close()

		_, ok := p.Submit(Request{Index: octree.Root, Geometry: data, Octree: tree})
		require.False(t, ok)
		require.Zero(t, p.AliveWorkers())
		require.Zero(t, p.CheckWorkers())
	})
}

func waitTask(t *testing.T, task *Task) {
	select {
	case <-task.Wait():
	case <-time.After(time.Second * 5):
		t.Fatal("task did not complete")
	}
	require.True(t, task.Done())
}

func requireSameBuild(t *testing.T, want, got *Result) {
	require.Equal(t, want.Index, got.Index)
	require.Equal(t, want.Cells, got.Cells)
	require.Equal(t, want.Simplified, got.Simplified)
	require.Equal(t, want.LocalGeometry.Vertices, got.LocalGeometry.Vertices)
	require.Equal(t, want.LocalGeometry.Faces, got.LocalGeometry.Faces)
	require.Equal(t, want.LocalGeometry.Cells, got.LocalGeometry.Cells)
	require.Equal(t, want.CellsToLocal, got.CellsToLocal)
	require.Equal(t, want.Mesh, got.Mesh)
}

func newTestSphere(n int) (*geometry.Data, *octree.Octree) {
	data := geometry.Fibonacci(n, 0.01)
	tree := octree.New(16, geometry.Vector3f{}, 1, 0, octree.Root)
	for i, normal := range data.CellNormals {
		tree.Insert(octree.Point{Position: normal, Value: i})
	}
	return data, tree
}
