package geo

import "math"

// EarthRadiusM is the mean earth radius used for every distance in the engine.
const EarthRadiusM = 6371000.0

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceM returns the great-circle distance between a and b in meters.
func DistanceM(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// AxisDistancesM splits the distance from origin to p into its north-south and
// east-west components. Each component is measured with the other axis held at
// the origin value.
func AxisDistancesM(origin, p Point) (latM, lonM float64) {
	latM = DistanceM(origin, Point{Lat: p.Lat, Lon: origin.Lon})
	lonM = DistanceM(origin, Point{Lat: origin.Lat, Lon: p.Lon})
	return latM, lonM
}
