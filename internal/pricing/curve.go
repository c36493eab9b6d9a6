package pricing

import "fmt"

// MaxCurvePoints bounds the number of samples Curve returns, end point included.
const MaxCurvePoints = 1000

// Point is a sampled price on the line.
type Point struct {
	Time  int64  // unix seconds
	Price uint64 // lamports
}

// Curve samples the line from start to end (inclusive) every step seconds.
// The end time is always included even when the window is not a multiple of step.
// When the window would need more than MaxCurvePoints samples the step is
// widened until it fits.
func (l Line) Curve(start, end, step int64) ([]Point, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: curve step %d must be positive", ErrInvalidConfiguration, step)
	}
	if end < start {
		return nil, fmt.Errorf("%w: curve end %d before start %d", ErrInvalidConfiguration, end, start)
	}

	// end >= start, so the span fits in uint64 even across the full int64 range.
	span := uint64(end) - uint64(start)
	stride := curveStride(span, uint64(step))
	steps := span / stride

	points := make([]Point, 0, steps+2)
	for i := uint64(0); i <= steps; i++ {
		off := i * stride
		if off == span {
			break
		}
		t := int64(uint64(start) + off)
		price, err := l.At(t)
		if err != nil {
			return nil, err
		}
		points = append(points, Point{Time: t, Price: price})
	}

	price, err := l.At(end)
	if err != nil {
		return nil, err
	}
	points = append(points, Point{Time: end, Price: price})

	return points, nil
}

// curveStride returns step, widened so that span/stride leaves room for at
// most MaxCurvePoints samples: steps+1 strided points plus the end point.
func curveStride(span, step uint64) uint64 {
	const maxSteps = MaxCurvePoints - 2
	if span/step <= maxSteps {
		return step
	}
	return span/maxSteps + 1
}
