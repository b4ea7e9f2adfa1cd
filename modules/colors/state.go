package colors

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/aukilabs/hexsphere/geometry"
)

var (
	Dark   = geometry.Color{1, 0, 1, 1}
	Bright = geometry.Color{0, 1, 1, 1}
)

// State holds the colors of the cells of a body and the cells changed since
// they were last painted.
type State struct {
	mutex   sync.RWMutex
	colors  map[int]geometry.Color
	changed map[int]struct{}
}

func NewState() *State {
	return &State{
		colors:  make(map[int]geometry.Color),
		changed: make(map[int]struct{}),
	}
}

func (s *State) Set(cell int, c geometry.Color) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.colors[cell] = c
	s.changed[cell] = struct{}{}
}

func (s *State) Color(cell int) (geometry.Color, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.colors[cell]
	return c, ok
}

// Len returns the number of colored cells.
func (s *State) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.colors)
}

// Randomize colors n distinct cells picked among cellCount cells, with a
// color between Dark and Bright. It returns the colored cells.
func (s *State) Randomize(r *rand.Rand, cellCount, n int) []int {
	n = min(n, cellCount)
	if n <= 0 {
		return nil
	}

	picked := make(map[int]struct{}, n)
	for len(picked) < n {
		picked[r.IntN(cellCount)] = struct{}{}
	}

	cells := make([]int, 0, n)
	for c := range picked {
		cells = append(cells, c)
	}
	sort.Ints(cells)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range cells {
		t := r.Float32()
		s.colors[c] = Lerp(Dark, Bright, t*t)
		s.changed[c] = struct{}{}
	}
	return cells
}

// TakeChanged returns the cells changed since the last call, sorted.
func (s *State) TakeChanged() []int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cells := make([]int, 0, len(s.changed))
	for c := range s.changed {
		cells = append(cells, c)
		delete(s.changed, c)
	}
	sort.Ints(cells)
	return cells
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b geometry.Color, t float32) geometry.Color {
	var c geometry.Color
	for i := range c {
		c[i] = a[i] + (b[i]-a[i])*t
	}
	return c
}
