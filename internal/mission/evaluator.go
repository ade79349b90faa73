package mission

import "backend-geomine/internal/shared/geo"

// Evaluate advances every available destination mission to the point at.
// It returns the full collection in input order plus the missions
// whose progress or status changed. Inputs are not modified.
func Evaluate(missions []Mission, at geo.Point) (updated []Mission, changed []Mission) {
	updated = make([]Mission, len(missions))
	for i, m := range missions {
		updated[i] = m
		if m.Type != KindDestination || m.Status != StatusAvailable || m.Destination == nil {
			continue
		}

		d := *m.Destination
		start := geo.Point{Lat: d.StartLat, Lon: d.StartLon}
		traveled := geo.DistanceM(start, at)

		if traveled >= d.TargetDistanceM {
			d.DistanceTraveledM = d.TargetDistanceM
			m.Status = StatusCompleted
		} else if traveled > d.DistanceTraveledM {
			d.DistanceTraveledM = traveled
		} else {
			continue
		}

		m.Destination = &d
		updated[i] = m
		changed = append(changed, m)
	}
	return updated, changed
}
