package sampling

import "gonum.org/v1/gonum/mat"

// Left-right mirroring is defined for SE2 only: a single reachability model
// trained for one foot serves the other by reflecting about the sagittal
// plane. Planners reject mirrored operation for any other space.

// MirrorSample reflects an SE2 sample [x, y, cos, sin], negating the lateral
// offset and the rotation direction.
func MirrorSample(s Sample) Sample {
	return Sample{s[0], -s[1], s[2], -s[3]}
}

// MirrorVel reflects an SE2 velocity [vx, vy, omega].
func MirrorVel(v Velocity) Velocity {
	return Velocity{v[0], -v[1], -v[2]}
}

// MirrorVelRows negates the lateral and angular rows of an SE2 velocity
// Jacobian in place, the velocity space image of MirrorSample.
func MirrorVelRows(m *mat.Dense) {
	_, cols := m.Dims()
	for _, i := range []int{1, 2} {
		for j := 0; j < cols; j++ {
			m.Set(i, j, -m.At(i, j))
		}
	}
}
