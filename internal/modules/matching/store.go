// README: Worker proximity index backed by Redis GEO. Optional fast
// path for the matcher; the snapshot scan remains the source of truth
// for eligibility attributes.
package matching

import (
	"context"

	"github.com/redis/go-redis/v9"

	"usta/internal/types"
)

const workerGeoKey = "matching:workers"

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// AddWorker upserts the worker's position in the index. Called on every
// location ping.
func (s *Store) AddWorker(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, workerGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// RemoveWorker drops the worker from the index on disconnect.
func (s *Store) RemoveWorker(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, workerGeoKey, string(id)).Err()
}

// withinRadius returns indexed workers within radiusKm of p, nearest
// first, with their distance in kilometres.
func (s *Store) withinRadius(ctx context.Context, p types.Point, radiusKm float64) ([]geoHit, error) {
	results, err := s.redis.GeoSearchLocation(ctx, workerGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	hits := make([]geoHit, len(results))
	for i, r := range results {
		hits[i] = geoHit{WorkerID: types.ID(r.Name), DistanceKm: r.Dist}
	}
	return hits, nil
}
