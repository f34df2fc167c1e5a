// README: Geo matcher. Filters worker snapshots by the order's
// requirements and searches in expanding rings, returning the first
// non-empty ring nearest first.
package matching

import (
	"context"

	"go.uber.org/zap"

	"usta/internal/config"
	"usta/internal/modules/location"
	"usta/internal/modules/order"
	"usta/internal/types"
)

type Service struct {
	snapshots location.Store
	geo       *Store
	cfg       config.MatchingConfig
	log       *zap.Logger
}

func NewService(snapshots location.Store, cfg config.MatchingConfig, log *zap.Logger) *Service {
	if cfg.MinRadiusKm <= 0 {
		cfg.MinRadiusKm = 1
	}
	if cfg.StepKm <= 0 {
		cfg.StepKm = 1
	}
	if cfg.MaxRadiusKm < cfg.MinRadiusKm {
		cfg.MaxRadiusKm = cfg.MinRadiusKm
	}
	return &Service{snapshots: snapshots, cfg: cfg, log: log}
}

// SetGeoIndex enables the Redis proximity index as a pre-filter. The
// matcher works without it by scanning every snapshot.
func (s *Service) SetGeoIndex(geo *Store) { s.geo = geo }

// FindEligible returns the workers the order can be offered to, nearest
// first. The search stops at the first ring that contains anyone:
// nobody 29 km out is considered while someone 2 km out exists.
// maxRadiusKm caps the search below the configured maximum; pass 0 for
// the full range.
func (s *Service) FindEligible(ctx context.Context, o *order.Order, maxRadiusKm float64) ([]Match, error) {
	limit := s.cfg.MaxRadiusKm
	if maxRadiusKm > 0 && maxRadiusKm < limit {
		limit = maxRadiusKm
	}

	matches, err := s.eligibleWithin(ctx, o, limit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	location.SortByDistance(matches, func(m Match) float64 { return m.DistanceKm })

	// Smallest ring that contains the nearest candidate; everyone
	// within it ships, everyone beyond it waits for a wider search.
	ring := s.cfg.MinRadiusKm
	for ring < matches[0].DistanceKm && ring < limit {
		ring += s.cfg.StepKm
	}
	cut := len(matches)
	for i, m := range matches {
		if m.DistanceKm > ring {
			cut = i
			break
		}
	}
	return matches[:cut], nil
}

// FilterEligible narrows an explicit worker selection to those still
// eligible for the order, for the dispatch fan-out. Distance is
// computed but no radius cut applies: the client chose them.
func (s *Service) FilterEligible(ctx context.Context, o *order.Order, ids []types.ID) ([]order.Candidate, error) {
	out := make([]order.Candidate, 0, len(ids))
	for _, id := range ids {
		snap, ok, err := s.snapshots.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok || !eligible(o, snap) {
			continue
		}
		out = append(out, order.Candidate{
			WorkerID:   id,
			DistanceKm: location.DistanceKm(o.Location, snap.Position),
		})
	}
	return out, nil
}

func (s *Service) eligibleWithin(ctx context.Context, o *order.Order, radiusKm float64) ([]Match, error) {
	if s.geo != nil {
		hits, err := s.geo.withinRadius(ctx, o.Location, radiusKm)
		if err != nil {
			s.log.Warn("geo index unavailable, falling back to scan", zap.Error(err))
		} else {
			matches := make([]Match, 0, len(hits))
			for _, hit := range hits {
				snap, ok, err := s.snapshots.Get(ctx, hit.WorkerID)
				if err != nil {
					return nil, err
				}
				if !ok || !eligible(o, snap) {
					continue
				}
				matches = append(matches, Match{Worker: snap, DistanceKm: hit.DistanceKm})
			}
			return matches, nil
		}
	}

	snaps, err := s.snapshots.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, snap := range snaps {
		if !eligible(o, snap) {
			continue
		}
		d := location.DistanceKm(o.Location, snap.Position)
		if d > radiusKm {
			continue
		}
		matches = append(matches, Match{Worker: snap, DistanceKm: d})
	}
	return matches, nil
}

// eligible applies the order's attribute filters to one snapshot.
func eligible(o *order.Order, s location.Snapshot) bool {
	if s.Role != types.RoleWorker || s.Status != types.WorkerIdle || !s.IsActive {
		return false
	}
	if s.JobCategory != o.JobCategory {
		return false
	}
	if o.Gender != "" && s.Gender != o.Gender {
		return false
	}
	if len(o.JobIDs) > 0 && !intersects(o.JobIDs, s.JobIDs) {
		return false
	}
	return true
}

func intersects(a, b []int64) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
