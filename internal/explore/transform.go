package explore

import "math"

// Transform is a rigid transform as a 4x4 row-major matrix:
// [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33].
// Registry collections store one per submap (submap frame -> mission frame).
type Transform [16]float64

// IdentityTransform maps a frame onto itself.
var IdentityTransform = Transform{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// transformValidationTolerance bounds the rotation determinant check.
const transformValidationTolerance = 0.01

// Apply transforms a point from the source frame into the target frame.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

// Inverse returns the inverse rigid transform. Only valid when t is a
// proper rigid transform (orthonormal rotation, [0 0 0 1] last row).
func (t Transform) Inverse() Transform {
	// R^T
	r00, r01, r02 := t[0], t[4], t[8]
	r10, r11, r12 := t[1], t[5], t[9]
	r20, r21, r22 := t[2], t[6], t[10]
	// -R^T * translation
	tx, ty, tz := t[3], t[7], t[11]
	return Transform{
		r00, r01, r02, -(r00*tx + r01*ty + r02*tz),
		r10, r11, r12, -(r10*tx + r11*ty + r12*tz),
		r20, r21, r22, -(r20*tx + r21*ty + r22*tz),
		0, 0, 0, 1,
	}
}

// IsValid reports whether t is a proper rigid transform: orthonormal
// rotation submatrix (det ~= 1) and last row [0 0 0 1].
func (t Transform) IsValid() bool {
	r00, r01, r02 := t[0], t[1], t[2]
	r10, r11, r12 := t[4], t[5], t[6]
	r20, r21, r22 := t[8], t[9], t[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > transformValidationTolerance {
		return false
	}
	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1.0) > 0.001 {
		return false
	}
	return true
}

// TransformFromYawTranslation builds a transform rotating yaw radians about
// Z then translating by (tx, ty, tz). Used by simulated maps and tests.
func TransformFromYawTranslation(yaw, tx, ty, tz float64) Transform {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return Transform{
		c, -s, 0, tx,
		s, c, 0, ty,
		0, 0, 1, tz,
		0, 0, 0, 1,
	}
}
