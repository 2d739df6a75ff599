package report

import "math"

var compassPoints = [8]string{
	"North", "Northeast", "East", "Southeast",
	"South", "Southwest", "West", "Northwest",
}

// WindDirection maps degrees to one of eight compass points. Any integer
// is accepted; values outside [0, 360) wrap around.
func WindDirection(degrees int) string {
	return compassPoint(float64(degrees))
}

func compassPoint(degrees float64) string {
	units := int(math.RoundToEven(degrees/45)) % len(compassPoints)
	if units < 0 {
		units += len(compassPoints)
	}
	return compassPoints[units]
}
