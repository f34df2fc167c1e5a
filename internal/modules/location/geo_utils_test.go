package location

import (
	"math"
	"testing"

	"usta/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 41.311, lng1: 69.280,
			lat2: 41.311, lng2: 69.280,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "across Tashkent (~9km)",
			lat1: 41.311081, lng1: 69.279759,
			lat2: 41.3775, lng2: 69.3406,
			wantKm:    9.0,
			tolerance: 1.5,
		},
		{
			name: "Tashkent to Samarkand (~270km)",
			lat1: 41.3111, lng1: 69.2797,
			lat2: 39.6542, lng2: 66.9597,
			wantKm:    270,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(41.0, 69.0, 42.0, 70.0)
	d2 := haversineKm(42.0, 70.0, 41.0, 69.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceKm_MatchesHaversine(t *testing.T) {
	a := types.Point{Lat: 41.311, Lng: 69.280}
	b := types.Point{Lat: 41.320, Lng: 69.300}
	if got, want := DistanceKm(a, b), haversineKm(a.Lat, a.Lng, b.Lat, b.Lng); got != want {
		t.Errorf("DistanceKm = %f, want %f", got, want)
	}
}

func TestSortByDistance_Snapshots(t *testing.T) {
	snaps := []Snapshot{
		{WorkerID: types.ID("c"), Position: types.Point{Lat: 5}},
		{WorkerID: types.ID("a"), Position: types.Point{Lat: 1}},
		{WorkerID: types.ID("b"), Position: types.Point{Lat: 3}},
	}

	SortByDistance(snaps, func(s Snapshot) float64 { return s.Position.Lat })

	if snaps[0].WorkerID != "a" || snaps[1].WorkerID != "b" || snaps[2].WorkerID != "c" {
		t.Errorf("unexpected sort order: %v", snaps)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var snaps []Snapshot
	SortByDistance(snaps, func(s Snapshot) float64 { return 0 })
}

func TestSortByDistance_Single(t *testing.T) {
	snaps := []Snapshot{{WorkerID: types.ID("a")}}
	SortByDistance(snaps, func(s Snapshot) float64 { return 0 })
	if snaps[0].WorkerID != "a" {
		t.Errorf("single element sort failed")
	}
}
