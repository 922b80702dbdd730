package linear

import (
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// featureDim is the length of the vector built by features.
func featureDim(length, poolW, poolH int) int {
	return length*poolW*poolH + length*len(vehicle.NumericFields) + 1
}

// features flattens an observation into pooled luminance grids for every
// memory frame, the numeric telemetry of every memory step, and a bias term.
func features(obs predictor.Observation, poolW, poolH int, dst []float64) []float64 {
	dst = dst[:0]
	for _, f := range obs.Frames {
		dst = pool(f, poolW, poolH, dst)
	}
	for _, t := range obs.Telemetry {
		dst = append(dst, t.Values()...)
	}
	return append(dst, 1)
}

// pool averages frame luminance over a poolW x poolH grid. A nil frame pools
// to zeros.
func pool(f *vehicle.Frame, poolW, poolH int, dst []float64) []float64 {
	if f == nil {
		for i := 0; i < poolW*poolH; i++ {
			dst = append(dst, 0)
		}
		return dst
	}
	luma := f.Luma()
	for gy := 0; gy < poolH; gy++ {
		y0, y1 := gy*f.Height/poolH, (gy+1)*f.Height/poolH
		y1 = max(y1, y0+1)
		for gx := 0; gx < poolW; gx++ {
			x0, x1 := gx*f.Width/poolW, (gx+1)*f.Width/poolW
			x1 = max(x1, x0+1)

			var sum float64
			n := 0
			for y := y0; y < y1 && y < f.Height; y++ {
				for x := x0; x < x1 && x < f.Width; x++ {
					sum += luma[y*f.Width+x]
					n++
				}
			}
			if n > 0 {
				sum /= float64(n)
			}
			dst = append(dst, sum)
		}
	}
	return dst
}
