package geospatial

import (
	"math"

	"github.com/joinix/joinix/internal/core/domain"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.0
)

// DistanceKm calculates the great-circle distance in kilometres between two points.
func DistanceKm(p1, p2 domain.GeoPoint) float64 {
	dLat := toRad(p2.Lat - p1.Lat)
	dLon := toRad(p2.Lon - p1.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(p1.Lat))*math.Cos(toRad(p2.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BoundingBox returns the linear box around center for radiusKm, assuming 1°
// of latitude is 111 km and scaling the longitude delta by cos(lat). At the
// poles the longitude delta is infinite; domain.Bounds.Contains treats that as
// all longitudes. Away from the equator the circle bulges past the linear
// longitude delta, so pre-filters must use SearchBounds.
func BoundingBox(center domain.GeoPoint, radiusKm float64) domain.Bounds {
	latDelta := radiusKm / kmPerDegree
	lonDelta := radiusKm / (kmPerDegree * math.Cos(toRad(center.Lat)))
	if math.Abs(center.Lat) >= 90 {
		lonDelta = math.Inf(1)
	}

	return domain.Bounds{
		MinLat: center.Lat - latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLat: center.Lat + latDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

// SearchBounds is BoundingBox with the longitude delta widened to the true
// east-west extent of the circle, asin(sin(r/R) / cos(lat)). Every point within
// radiusKm of center lies inside it. A circle that reaches a pole covers all
// longitudes.
func SearchBounds(center domain.GeoPoint, radiusKm float64) domain.Bounds {
	b := BoundingBox(center, radiusKm)
	if b.AllLongitudes() {
		return b
	}

	ang := radiusKm / earthRadiusKm
	ratio := math.Sin(ang) / math.Cos(toRad(center.Lat))
	if ang >= math.Pi/2 || ratio >= 1 {
		b.MinLon, b.MaxLon = math.Inf(-1), math.Inf(1)
		return b
	}
	if lonDelta := toDeg(math.Asin(ratio)); lonDelta > b.MaxLon-center.Lon {
		b.MinLon = center.Lon - lonDelta
		b.MaxLon = center.Lon + lonDelta
	}
	return b
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
