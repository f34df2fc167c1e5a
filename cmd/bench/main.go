// README: Dispatch load generator. Drives the full offer/accept/confirm
// lifecycle over in-memory stores and reports throughput; useful for
// eyeballing coordinator contention without Postgres or Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"usta/internal/config"
	"usta/internal/modules/location"
	"usta/internal/modules/matching"
	"usta/internal/modules/order"
	"usta/internal/push"
	"usta/internal/types"
)

func main() {
	var (
		orders   = flag.Int("orders", 1000, "orders to run through the full lifecycle")
		workers  = flag.Int("workers", 200, "idle workers in the pool")
		clients  = flag.Int("clients", 16, "concurrent client goroutines")
		fanout   = flag.Int("fanout", 5, "workers offered per order")
		offerTTL = flag.Duration("offer-ttl", time.Minute, "offer expiry window")
	)
	flag.Parse()

	log := zap.NewNop()
	store := order.NewMemStore()
	snapshots := location.NewMemStore()
	registry := push.NewRegistry()
	hub := push.NewHub(registry, snapshots, log)

	svc := order.NewService(store, hub, config.DispatchConfig{OfferTTL: *offerTTL}, log)
	defer svc.Close()
	matcher := matching.NewService(snapshots, config.MatchingConfig{MinRadiusKm: 1, StepKm: 1, MaxRadiusKm: 30}, log)
	svc.SetEligibility(matcher)
	svc.SetStatusMirror(snapshots)

	ctx := context.Background()
	base := types.Point{Lat: 41.311, Lng: 69.280}
	pool := make([]types.ID, *workers)
	for i := range pool {
		id := types.ID(fmt.Sprintf("w%d", i))
		pool[i] = id
		if err := snapshots.Upsert(ctx, location.Snapshot{
			WorkerID:    id,
			Role:        types.RoleWorker,
			Status:      types.WorkerIdle,
			IsActive:    true,
			JobCategory: 5,
			Gender:      types.GenderMale,
			Position: types.Point{
				Lat: base.Lat + rand.Float64()*0.05,
				Lng: base.Lng + rand.Float64()*0.05,
			},
		}); err != nil {
			fmt.Fprintln(os.Stderr, "seed:", err)
			os.Exit(1)
		}
	}

	var completed, contested atomic.Int64
	start := time.Now()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for c := 0; c < *clients; c++ {
		wg.Add(1)
		go func(clientN int) {
			defer wg.Done()
			clientID := types.ID(fmt.Sprintf("c%d", clientN))
			for range jobs {
				if err := runOrder(ctx, svc, clientID, base, pool, *fanout); err != nil {
					contested.Add(1)
					continue
				}
				completed.Add(1)
			}
		}(c)
	}
	for i := 0; i < *orders; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	took := time.Since(start)
	fmt.Printf("orders=%d completed=%d contested=%d workers=%d clients=%d\n",
		*orders, completed.Load(), contested.Load(), *workers, *clients)
	fmt.Printf("took=%s rate=%.0f orders/s\n", took.Round(time.Millisecond),
		float64(completed.Load())/took.Seconds())
}

// runOrder drives one order through create, dispatch, a worker accept,
// and both confirmations. Returns an error when every offered worker
// was already claimed by a concurrent order.
func runOrder(ctx context.Context, svc *order.Service, clientID types.ID, at types.Point, pool []types.ID, fanout int) error {
	o, err := svc.Create(ctx, order.CreateCommand{
		ClientID:    clientID,
		JobCategory: 5,
		Gender:      types.GenderMale,
		Price:       "100000",
		WorkerCount: 1,
		Location:    &at,
	})
	if err != nil {
		return err
	}

	selection := make([]types.ID, 0, fanout)
	offset := rand.Intn(len(pool))
	for i := 0; i < fanout && i < len(pool); i++ {
		selection = append(selection, pool[(offset+i)%len(pool)])
	}
	if _, err := svc.Dispatch(ctx, order.DispatchCommand{
		OrderID:   o.ID,
		ClientID:  clientID,
		WorkerIDs: selection,
	}); err != nil {
		return err
	}

	var accepted types.ID
	for _, w := range selection {
		if err := svc.Accept(ctx, order.AcceptCommand{OrderID: o.ID, WorkerID: w}); err == nil {
			accepted = w
			break
		}
	}
	if accepted == "" {
		// Every candidate lost the claim race to another order.
		return order.ErrWorkerNotAvailable
	}

	if err := svc.Confirm(ctx, order.ConfirmCommand{OrderID: o.ID, ActorID: accepted}); err != nil {
		return err
	}
	return svc.Confirm(ctx, order.ConfirmCommand{OrderID: o.ID, ActorID: clientID})
}
