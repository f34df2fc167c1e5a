// README: Concurrency tests for the coordinator. Run with -race.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"usta/internal/config"
	"usta/internal/types"
)

func TestConcurrentAcceptsDistinctWorkers(t *testing.T) {
	svc, _, _ := newTestService(t, config.DispatchConfig{OfferTTL: time.Minute})
	o := mustCreate(t, svc, "c1", 5)

	workers := make([]types.ID, 5)
	for i := range workers {
		workers[i] = types.ID(fmt.Sprintf("w%d", i))
	}
	mustDispatch(t, svc, o, workers...)

	var wg sync.WaitGroup
	errs := make([]error, len(workers))
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w types.ID) {
			defer wg.Done()
			errs[i] = svc.Accept(context.Background(), AcceptCommand{OrderID: o.ID, WorkerID: w})
		}(i, w)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("accept %s: %v", workers[i], err)
		}
	}
	got, _ := svc.Get(context.Background(), o.ID)
	if len(got.Accepted) != len(workers) {
		t.Fatalf("accepted %d, want %d", len(got.Accepted), len(workers))
	}
	if len(got.Notified) != 0 {
		t.Fatalf("notified still holds %d workers", len(got.Notified))
	}
	if got.Status != StatusInProgress {
		t.Fatalf("status %s, want %s", got.Status, StatusInProgress)
	}
}

func TestWorkerClaimedByOneOrderOnly(t *testing.T) {
	svc, _, _ := newTestService(t, config.DispatchConfig{OfferTTL: time.Minute})

	const orders = 8
	ids := make([]types.ID, orders)
	for i := range ids {
		o := mustCreate(t, svc, "c1", 1)
		mustDispatch(t, svc, o, "w1")
		ids[i] = o.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, orders)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id types.ID) {
			defer wg.Done()
			errs[i] = svc.Accept(context.Background(), AcceptCommand{OrderID: id, WorkerID: "w1"})
		}(i, id)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrWorkerNotAvailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("worker accepted onto %d orders, want exactly 1", won)
	}
}

func TestAcceptRacesExpiry(t *testing.T) {
	// Hammer accept against an aggressive TTL. Whatever the interleaving,
	// a worker must never end up both expired and accepted.
	svc, store, _ := newTestService(t, config.DispatchConfig{OfferTTL: time.Millisecond})

	for i := 0; i < 50; i++ {
		o := mustCreate(t, svc, "c1", 1)
		worker := types.ID(fmt.Sprintf("w%d", i))
		mustDispatch(t, svc, o, worker)

		time.Sleep(time.Duration(i%3) * time.Millisecond)
		err := svc.Accept(context.Background(), AcceptCommand{OrderID: o.ID, WorkerID: worker})

		got, getErr := svc.Get(context.Background(), o.ID)
		if getErr != nil {
			t.Fatal(getErr)
		}
		switch {
		case err == nil:
			if !got.Accepted.Has(worker) {
				t.Fatal("accept reported success but membership is gone")
			}
		default:
			if got.Accepted.Has(worker) {
				t.Fatalf("accept failed (%v) but worker is in accepted set", err)
			}
			// A lost accept must not leave the worker claimed.
			status := store.WorkerStatus(worker)
			if status != types.WorkerIdle {
				t.Fatalf("worker status %s after lost accept, want idle", status)
			}
		}
	}
}

func TestConcurrentConfirmSingleCompletion(t *testing.T) {
	svc, _, notifier := newTestService(t, config.DispatchConfig{OfferTTL: time.Minute})
	o := mustCreate(t, svc, "c1", 3)
	workers := []types.ID{"w1", "w2", "w3"}
	mustDispatch(t, svc, o, workers...)
	for _, w := range workers {
		if err := svc.Accept(context.Background(), AcceptCommand{OrderID: o.ID, WorkerID: w}); err != nil {
			t.Fatal(err)
		}
	}

	actors := append([]types.ID{"c1"}, workers...)
	var wg sync.WaitGroup
	for _, a := range actors {
		wg.Add(1)
		go func(a types.ID) {
			defer wg.Done()
			if err := svc.Confirm(context.Background(), ConfirmCommand{OrderID: o.ID, ActorID: a}); err != nil {
				t.Errorf("confirm %s: %v", a, err)
			}
		}(a)
	}
	wg.Wait()

	got, _ := svc.Get(context.Background(), o.ID)
	if got.Status != StatusSuccess {
		t.Fatalf("status %s, want %s", got.Status, StatusSuccess)
	}
	var successEvents int
	notifier.mu.Lock()
	for _, e := range notifier.updates {
		if e == EventSuccess {
			successEvents++
		}
	}
	notifier.mu.Unlock()
	if successEvents != 1 {
		t.Fatalf("success announced %d times, want exactly once", successEvents)
	}
}

func TestConcurrentCancelAndConfirm(t *testing.T) {
	svc, store, _ := newTestService(t, config.DispatchConfig{OfferTTL: time.Minute})
	o := mustCreate(t, svc, "c1", 2)
	mustDispatch(t, svc, o, "w1", "w2")
	for _, w := range []types.ID{"w1", "w2"} {
		if err := svc.Accept(context.Background(), AcceptCommand{OrderID: o.ID, WorkerID: w}); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// May lose the race to the cancel; both outcomes are legal.
		_ = svc.Confirm(context.Background(), ConfirmCommand{OrderID: o.ID, ActorID: "w1"})
	}()
	go func() {
		defer wg.Done()
		if err := svc.Cancel(context.Background(), CancelCommand{OrderID: o.ID, ActorID: "w2"}); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}()
	wg.Wait()

	got, _ := svc.Get(context.Background(), o.ID)
	if got.Accepted.Has("w2") {
		t.Fatal("cancelled worker still accepted")
	}
	if got.Status != StatusInProgress {
		t.Fatalf("status %s, want %s", got.Status, StatusInProgress)
	}
	status := store.WorkerStatus("w2")
	if status != types.WorkerIdle {
		t.Fatalf("w2 status %s, want idle", status)
	}
}
