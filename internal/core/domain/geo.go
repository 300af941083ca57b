package domain

import (
	"errors"
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point is a finite coordinate inside the WGS 84 range.
func (p GeoPoint) Valid() bool {
	return finite(p.Lat) && finite(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

// GeoQuery is a radius search around a center point.
type GeoQuery struct {
	Center   GeoPoint `json:"center"`
	RadiusKm float64  `json:"radius_km"`
}

// Validate checks the center and the radius.
func (q GeoQuery) Validate() error {
	var errs []error
	if !q.Center.Valid() {
		errs = append(errs, fmt.Errorf("center (%v, %v) is not a valid coordinate", q.Center.Lat, q.Center.Lon))
	}
	if !finite(q.RadiusKm) || q.RadiusKm < 0 {
		errs = append(errs, fmt.Errorf("radius %v km must be a finite non-negative number", q.RadiusKm))
	}
	return errors.Join(errs...)
}

// Bounds represents a geographic bounding box. MinLon may be below -180 or
// MaxLon above 180 when the box crosses the antimeridian.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// AllLongitudes reports whether the box covers every meridian. That is the
// case when it reaches a pole or its longitude span is 360° or more
// (including the infinite span computed at the poles themselves).
func (b Bounds) AllLongitudes() bool {
	span := b.MaxLon - b.MinLon
	return b.MaxLat >= 90 || b.MinLat <= -90 || !finite(span) || span >= 360
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p GeoPoint) bool {
	if !p.Valid() || p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.AllLongitudes() {
		return true
	}
	d := math.Mod(p.Lon-b.MinLon, 360)
	if d < 0 {
		d += 360
	}
	return d <= b.MaxLon-b.MinLon
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
