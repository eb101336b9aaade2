package face

import "math"

// clamp restricts a value to a range.
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clamp01 restricts a value to [0, 1].
func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// Quaternion is a unit rotation quaternion.
type Quaternion struct {
	W, X, Y, Z float64
}

// MatrixToQuaternion extracts the rotation of a 4x4 homogeneous matrix.
// Uses the branch on the largest diagonal term to stay numerically stable.
// An all-zero rotation (transform not supplied) is read as identity.
func MatrixToQuaternion(m [4][4]float64) Quaternion {
	r00, r01, r02 := m[0][0], m[0][1], m[0][2]
	r10, r11, r12 := m[1][0], m[1][1], m[1][2]
	r20, r21, r22 := m[2][0], m[2][1], m[2][2]

	var q Quaternion
	if r00 == 0 && r01 == 0 && r02 == 0 &&
		r10 == 0 && r11 == 0 && r12 == 0 &&
		r20 == 0 && r21 == 0 && r22 == 0 {
		return Quaternion{W: 1}
	}
	trace := r00 + r11 + r22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q.W = 0.25 / s
		q.X = (r21 - r12) * s
		q.Y = (r02 - r20) * s
		q.Z = (r10 - r01) * s
	case r00 > r11 && r00 > r22:
		s := 2 * math.Sqrt(1+r00-r11-r22)
		q.W = (r21 - r12) / s
		q.X = 0.25 * s
		q.Y = (r01 + r10) / s
		q.Z = (r02 + r20) / s
	case r11 > r22:
		s := 2 * math.Sqrt(1+r11-r00-r22)
		q.W = (r02 - r20) / s
		q.X = (r01 + r10) / s
		q.Y = 0.25 * s
		q.Z = (r12 + r21) / s
	default:
		s := 2 * math.Sqrt(1+r22-r00-r11)
		q.W = (r10 - r01) / s
		q.X = (r02 + r20) / s
		q.Y = (r12 + r21) / s
		q.Z = 0.25 * s
	}
	return q.normalize()
}

func (q Quaternion) normalize() Quaternion {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n < 1e-10 {
		return Quaternion{W: 1}
	}
	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Euler returns roll (X), pitch (Y) and yaw (Z) in radians, ZYX convention.
// Pitch saturates at ±π/2 on the gimbal boundary.
func (q Quaternion) Euler() (roll, pitch, yaw float64) {
	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll = math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw = math.Atan2(sinyCosp, cosyCosp)

	return roll, pitch, yaw
}

// Pose is the head orientation extracted from a transform.
type Pose struct {
	// Roll, Pitch, Yaw in radians
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`

	// Translation in the tracker's units (meters on ARKit)
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseFromTransform converts a 4x4 head transform to a Pose.
func PoseFromTransform(m [4][4]float64) Pose {
	roll, pitch, yaw := MatrixToQuaternion(m).Euler()
	return Pose{
		Roll:  roll,
		Pitch: pitch,
		Yaw:   yaw,
		X:     m[0][3],
		Y:     m[1][3],
		Z:     m[2][3],
	}
}

// RotationMatrix builds a transform from ZYX Euler angles, R = Rz(yaw)·Ry(pitch)·Rx(roll).
func RotationMatrix(roll, pitch, yaw float64) [4][4]float64 {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	return [4][4]float64{
		{cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr, 0},
		{sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr, 0},
		{-sp, cp * sr, cp * cr, 0},
		{0, 0, 0, 1},
	}
}
