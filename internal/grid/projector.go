package grid

import "backend-geomine/internal/shared/geo"

const DefaultMetersPerTile = 10.0

// Projector maps coordinates onto the local tile grid. The first projected
// point becomes the origin. The projection treats small lat/lon deltas as
// planar, which holds at tile granularity.
type Projector struct {
	MetersPerTile float64

	origin    geo.Point
	hasOrigin bool
}

func NewProjector(metersPerTile float64) *Projector {
	if metersPerTile <= 0 {
		metersPerTile = DefaultMetersPerTile
	}
	return &Projector{MetersPerTile: metersPerTile}
}

// Project returns the grid position of p. first is true when p became the origin.
func (pr *Projector) Project(p geo.Point) (pos Position, first bool) {
	if !pr.hasOrigin {
		pr.origin = p
		pr.hasOrigin = true
		return Position{}, true
	}

	latM, lonM := geo.AxisDistancesM(pr.origin, p)

	x := lonM / pr.MetersPerTile
	if p.Lon <= pr.origin.Lon {
		x = -x
	}
	// north is -y
	y := latM / pr.MetersPerTile
	if p.Lat >= pr.origin.Lat {
		y = -y
	}
	return Position{X: x, Y: y}, false
}

func (pr *Projector) Origin() (geo.Point, bool) {
	return pr.origin, pr.hasOrigin
}
