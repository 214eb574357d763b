package wavefront

import "math"

// Sample is a scattered OPD value at a normalised pupil coordinate.
type Sample struct {
	X, Y  float64
	Waves float64
}

// Regrid fills a size² map from scattered samples by nearest neighbour. Only
// cells inside the unit pupil that lie within maxGap (normalised units) of a
// sample are set; maxGap ≤ 0 accepts any distance.
func Regrid(samples []Sample, size int, lambdaUM, maxGap float64) *Map {
	m := NewMap(size, lambdaUM)
	if len(samples) == 0 {
		return m
	}
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			x, y := m.Pupil(r, c)
			if x*x+y*y > 1 {
				continue
			}
			m.Total++
			best, bestD := -1, math.Inf(1)
			for i, s := range samples {
				dx, dy := s.X-x, s.Y-y
				if d := dx*dx + dy*dy; d < bestD {
					best, bestD = i, d
				}
			}
			if maxGap > 0 && bestD > maxGap*maxGap {
				continue
			}
			m.Set(r, c, samples[best].Waves)
		}
	}
	return m
}
