// README: Google Maps directions wrapper. Supplies travel estimates for
// worker offers; entirely optional, offers ship without it.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"usta/internal/types"
)

type TravelEstimate struct {
	Duration time.Duration
	Distance string
}

// RouteService handles interactions with the Google Maps API.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns driving duration and distance from origin to
// destination.
func (s *RouteService) Estimate(ctx context.Context, origin, destination types.Point) (TravelEstimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return TravelEstimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return TravelEstimate{}, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return TravelEstimate{Duration: leg.Duration, Distance: leg.Distance.HumanReadable}, nil
}
