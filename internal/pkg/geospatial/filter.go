package geospatial

import (
	"cmp"
	"iter"
	"slices"

	"github.com/joinix/joinix/internal/core/domain"
)

// Locatable is anything that may carry a coordinate.
type Locatable interface {
	Coordinates() (domain.GeoPoint, bool)
}

// FilterWithinRadius yields the points whose great-circle distance from
// q.Center is at most q.RadiusKm, in input order. SearchBounds only rejects
// points that cannot be in range; inclusion is always decided by DistanceKm. Points without valid
// coordinates never match. The sequence can be ranged over more than once.
func FilterWithinRadius[T Locatable](points []T, q domain.GeoQuery) iter.Seq[T] {
	return func(yield func(T) bool) {
		if q.Validate() != nil {
			return
		}
		box := SearchBounds(q.Center, q.RadiusKm)
		for _, p := range points {
			loc, ok := p.Coordinates()
			if !ok || !box.Contains(loc) {
				continue
			}
			if DistanceKm(q.Center, loc) > q.RadiusKm {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// SortByDistance orders points nearest to center first. Points without
// coordinates go last; ties keep their input order.
func SortByDistance[T Locatable](points []T, center domain.GeoPoint) {
	slices.SortStableFunc(points, func(a, b T) int {
		pa, okA := a.Coordinates()
		pb, okB := b.Coordinates()
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		return cmp.Compare(DistanceKm(center, pa), DistanceKm(center, pb))
	})
}
