// README: Matcher result types.
package matching

import (
	"usta/internal/modules/location"
	"usta/internal/types"
)

// Match is an eligible worker with its distance to the order, nearest
// first in every sequence the matcher returns.
type Match struct {
	Worker     location.Snapshot
	DistanceKm float64
}

// geoHit is a raw proximity-index hit before snapshot filtering.
type geoHit struct {
	WorkerID   types.ID
	DistanceKm float64
}
