// README: End-to-end handler tests over in-memory stores.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"usta/internal/auth"
	"usta/internal/config"
	httpapi "usta/internal/http"
	"usta/internal/modules/location"
	"usta/internal/modules/matching"
	"usta/internal/modules/order"
	"usta/internal/push"
	"usta/internal/types"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	router      http.Handler
	orders      *order.MemStore
	snapshots   *location.MemStore
	clientToken string
	workerToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	orders := order.NewMemStore()
	snapshots := location.NewMemStore()
	registry := push.NewRegistry()
	hub := push.NewHub(registry, snapshots, log)

	orderSvc := order.NewService(orders, hub, config.DispatchConfig{OfferTTL: time.Minute}, log)
	t.Cleanup(orderSvc.Close)
	locationSvc := location.NewService(snapshots, orders, log)
	matcher := matching.NewService(snapshots, config.MatchingConfig{MinRadiusKm: 1, StepKm: 1, MaxRadiusKm: 30}, log)
	orderSvc.SetEligibility(matcher)
	orderSvc.SetStatusMirror(snapshots)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Verifier: auth.NewJWTVerifier(testSecret),
		Order:    orderSvc,
		Matcher:  matcher,
		Location: locationSvc,
		Registry: registry,
		Log:      log,
	})

	clientToken, err := auth.Sign(testSecret, auth.Identity{UserID: "c1", Role: types.RoleClient})
	if err != nil {
		t.Fatal(err)
	}
	workerToken, err := auth.Sign(testSecret, auth.Identity{UserID: "w1", Role: types.RoleWorker})
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		router:      router,
		orders:      orders,
		snapshots:   snapshots,
		clientToken: clientToken,
		workerToken: workerToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func createOrderBody() map[string]any {
	return map[string]any{
		"job_category": 5,
		"gender":       types.GenderMale,
		"description":  "fix the sink",
		"price":        "150000",
		"worker_count": 1,
		"lat":          41.311,
		"lng":          69.280,
	}
}

func seedIdleWorker(t *testing.T, e *testEnv, id types.ID) {
	t.Helper()
	if err := e.snapshots.Upsert(context.Background(), location.Snapshot{
		WorkerID:    id,
		Role:        types.RoleWorker,
		Status:      types.WorkerIdle,
		IsActive:    true,
		JobCategory: 5,
		Gender:      types.GenderMale,
		Position:    types.Point{Lat: 41.315, Lng: 69.281},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestCreateOrderReturnsEligibleWorkers(t *testing.T) {
	e := newTestEnv(t)
	seedIdleWorker(t, e, "w1")

	w := e.do(t, http.MethodPost, "/api/orders", e.clientToken, createOrderBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Order struct {
			ID       string `json:"id"`
			ClientID string `json:"client_id"`
			Status   string `json:"status"`
		} `json:"order"`
		Workers []struct {
			WorkerID   string  `json:"worker_id"`
			DistanceKm float64 `json:"distance_km"`
		} `json:"workers"`
	}
	decode(t, w, &resp)
	if resp.Order.ClientID != "c1" || resp.Order.Status != "stable" {
		t.Fatalf("order %+v", resp.Order)
	}
	if len(resp.Workers) != 1 || resp.Workers[0].WorkerID != "w1" {
		t.Fatalf("workers %+v", resp.Workers)
	}
}

func TestCreateOrderRequiresClientRole(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders", e.workerToken, createOrderBody())
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
	w = e.do(t, http.MethodPost, "/api/orders", "", createOrderBody())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestDispatchFlow(t *testing.T) {
	e := newTestEnv(t)
	seedIdleWorker(t, e, "w1")

	w := e.do(t, http.MethodPost, "/api/orders", e.clientToken, createOrderBody())
	var created struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	decode(t, w, &created)

	w = e.do(t, http.MethodPost, "/api/orders/"+created.Order.ID+"/dispatch", e.clientToken,
		map[string]any{"worker_ids": []string{"w1", "ghost"}})
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Notified int `json:"notified"`
	}
	decode(t, w, &resp)
	if resp.Notified != 1 {
		t.Fatalf("notified %d, want 1 (ghost is not eligible)", resp.Notified)
	}

	// The notified worker can read the order; a stranger cannot.
	w = e.do(t, http.MethodGet, "/api/orders/"+created.Order.ID, e.workerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("worker get status %d", w.Code)
	}
	strangerToken, err := auth.Sign(testSecret, auth.Identity{UserID: "w9", Role: types.RoleWorker})
	if err != nil {
		t.Fatal(err)
	}
	w = e.do(t, http.MethodGet, "/api/orders/"+created.Order.ID, strangerToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger get status %d, want 403", w.Code)
	}
}

func TestDispatchOnMissingOrder(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/nope/dispatch", e.clientToken,
		map[string]any{"worker_ids": []string{"w1"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, w, &resp)
	if resp.Error != "Order not found" {
		t.Fatalf("error %q", resp.Error)
	}
}

func TestLocationPing(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/location", e.workerToken, map[string]any{
		"lat":          41.32,
		"lng":          69.29,
		"is_active":    true,
		"job_category": 5,
		"gender":       types.GenderMale,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	snap, ok, err := e.snapshots.Get(context.Background(), "w1")
	if err != nil || !ok {
		t.Fatalf("snapshot missing after ping (ok=%v err=%v)", ok, err)
	}
	if snap.Role != types.RoleWorker || !snap.IsActive || snap.Position.Lat != 41.32 {
		t.Fatalf("snapshot %+v", snap)
	}

	// Clients cannot ping.
	w = e.do(t, http.MethodPost, "/api/location", e.clientToken, map[string]any{"lat": 1.0, "lng": 1.0})
	if w.Code != http.StatusForbidden {
		t.Fatalf("client ping status %d, want 403", w.Code)
	}
}

func TestWorkersRequeryWithRadiusCap(t *testing.T) {
	e := newTestEnv(t)
	seedIdleWorker(t, e, "w1")

	w := e.do(t, http.MethodPost, "/api/orders", e.clientToken, createOrderBody())
	var created struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	decode(t, w, &created)

	w = e.do(t, http.MethodGet, "/api/orders/"+created.Order.ID+"/workers?max_radius=30", e.clientToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Workers []struct {
			WorkerID string `json:"worker_id"`
		} `json:"workers"`
	}
	decode(t, w, &resp)
	if len(resp.Workers) != 1 {
		t.Fatalf("workers %+v", resp.Workers)
	}

	w = e.do(t, http.MethodGet, "/api/orders/"+created.Order.ID+"/workers?max_radius=bogus", e.clientToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestStatsEndpoints(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/clients/stats", e.clientToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("client stats status %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/api/workers/stats", e.workerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("worker stats status %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/api/workers/stats", e.clientToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("client on worker stats status %d, want 403", w.Code)
	}
}
