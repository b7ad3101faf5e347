package scene

import "fmt"

// Vector3 is a position in world space.
type Vector3 struct {
	X, Y, Z float64
}

// Add returns the component-wise sum.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Quaternion is an orientation.
type Quaternion struct {
	X, Y, Z, W float64
}

// QuaternionIdentity is the orientation with no rotation applied.
var QuaternionIdentity = Quaternion{W: 1}

func (q Quaternion) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", q.X, q.Y, q.Z, q.W)
}

// Transform places a node in its scene.
type Transform struct {
	Position Vector3
	Rotation Quaternion
}

// IdentityTransform sits at the origin with no rotation.
func IdentityTransform() Transform {
	return Transform{Position: Vector3{}, Rotation: QuaternionIdentity}
}
