package geometry

import (
	"math"

	"github.com/segmentio/encoding/json"
)

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

func Clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Vector3f is a position or a direction in body space.
type Vector3f struct {
	x float32
	y float32
	z float32
}

func NewVector3f(x, y, z float32) Vector3f {
	return Vector3f{x, y, z}
}

// Splat returns a vector with all components set to s.
func Splat(s float32) Vector3f {
	return Vector3f{s, s, s}
}

func (v Vector3f) X() float32 { return v.x }
func (v Vector3f) Y() float32 { return v.y }
func (v Vector3f) Z() float32 { return v.z }

func (v Vector3f) Array() [3]float32 {
	return [3]float32{v.x, v.y, v.z}
}

func (v1 Vector3f) EqualWithEpsilon(v2 Vector3f, epsilon float64) bool {
	return math.Abs((float64)(v1.x-v2.x)) <= epsilon &&
		math.Abs((float64)(v1.y-v2.y)) <= epsilon &&
		math.Abs((float64)(v1.z-v2.z)) <= epsilon
}

func (v1 Vector3f) Equal(v2 Vector3f) bool {
	return v1.x == v2.x && v1.y == v2.y && v1.z == v2.z
}

func (v1 *Vector3f) Add(v2 Vector3f) {
	v1.x += v2.x
	v1.y += v2.y
	v1.z += v2.z
}

func Add(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.x + b.x, a.y + b.y, a.z + b.z}
}

func Sub(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.x - b.x, a.y - b.y, a.z - b.z}
}

func Mul(a Vector3f, s float32) Vector3f {
	return Vector3f{a.x * s, a.y * s, a.z * s}
}

func (a Vector3f) Length() float64 {
	return math.Sqrt((float64)(a.x*a.x + a.y*a.y + a.z*a.z))
}

func (a Vector3f) LengthSquared() float32 {
	return a.x*a.x + a.y*a.y + a.z*a.z
}

func (a *Vector3f) NormalizeInPlace() {
	length := (float32)(a.Length())
	if length != 0 {
		a.x /= length
		a.y /= length
		a.z /= length
	}
}

// Normalized returns a unit vector pointing like a. The zero vector is
// returned unchanged.
func Normalized(a Vector3f) Vector3f {
	result := a
	result.NormalizeInPlace()
	return result
}

func (a Vector3f) Dot(b Vector3f) float32 {
	return a.x*b.x + a.y*b.y + a.z*b.z
}

func Cross(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.y*b.z - a.z*b.y, a.z*b.x - a.x*b.z, a.x*b.y - a.y*b.x}
}

func Distance(a, b Vector3f) float64 {
	return Sub(a, b).Length()
}

func DistanceSquared(a, b Vector3f) float32 {
	return Sub(a, b).LengthSquared()
}

// ClampVector clamps every component of v into the box [min, max].
func ClampVector(v, min, max Vector3f) Vector3f {
	return Vector3f{
		Clamp(v.x, min.x, max.x),
		Clamp(v.y, min.y, max.y),
		Clamp(v.z, min.z, max.z),
	}
}

func (v Vector3f) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Array())
}

func (v *Vector3f) UnmarshalJSON(b []byte) error {
	var a [3]float32
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*v = Vector3f{a[0], a[1], a[2]}
	return nil
}
