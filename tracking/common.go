package tracking

// ClampFloat clamps value between min and max.
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// lerp linearly interpolates between a and b. s is expected in [0, 1].
func lerp(a, b, s float64) float64 {
	return a + (b-a)*s
}

// lerpAngle interpolates between two angles along the shortest arc.
func lerpAngle(a, b, s float64) float64 {
	return WrapAngle(a + WrapAngle(b-a)*s)
}
