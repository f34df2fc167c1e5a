// README: Notification fan-out. Bridges committed order mutations to
// the actors' live connections, with optional travel-estimate
// enrichment and an FCM fallback for offline workers.
package push

import (
	"context"
	"time"

	"go.uber.org/zap"

	"usta/internal/maps"
	"usta/internal/modules/location"
	"usta/internal/modules/order"
	"usta/internal/types"
)

// RouteEstimator enriches offers with a driving estimate. Optional.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, destination types.Point) (maps.TravelEstimate, error)
}

// OfferSink delivers an offer out-of-band when the worker has no live
// connection. Optional; implemented by the FCM sink.
type OfferSink interface {
	SendOffer(ctx context.Context, deviceToken string, o *order.Order, distanceKm float64) error
}

type Hub struct {
	registry  *Registry
	snapshots location.Store
	routes    RouteEstimator
	sink      OfferSink
	log       *zap.Logger
}

func NewHub(registry *Registry, snapshots location.Store, log *zap.Logger) *Hub {
	return &Hub{registry: registry, snapshots: snapshots, log: log}
}

// SetRouteEstimator enables driving-estimate enrichment on offers.
func (h *Hub) SetRouteEstimator(r RouteEstimator) { h.routes = r }

// SetOfferSink enables the out-of-band offer fallback.
func (h *Hub) SetOfferSink(s OfferSink) { h.sink = s }

func (h *Hub) Registry() *Registry { return h.registry }

// OfferToWorker pushes an order offer to all of the worker's
// connections. When none are live and a sink is configured, the offer
// goes out through the worker's registered device token instead.
func (h *Hub) OfferToWorker(ctx context.Context, workerID types.ID, o *order.Order, distanceKm float64) {
	var eta string
	snap, cached, err := h.snapshots.Get(ctx, workerID)
	if err != nil {
		h.log.Warn("snapshot read for offer", zap.String("worker_id", string(workerID)), zap.Error(err))
		cached = false
	}
	if h.routes != nil && cached {
		if est, err := h.routes.Estimate(ctx, snap.Position, o.Location); err == nil {
			eta = est.Duration.Round(time.Minute).String()
		} else {
			h.log.Debug("travel estimate", zap.String("worker_id", string(workerID)), zap.Error(err))
		}
	}

	delivered := h.registry.Send(WorkerKey(workerID), NewOrderOffer(o, distanceKm, eta))
	if delivered > 0 {
		return
	}
	if h.sink == nil || !cached || snap.DeviceToken == "" {
		h.log.Debug("offer undeliverable",
			zap.String("order_id", string(o.ID)),
			zap.String("worker_id", string(workerID)))
		return
	}
	if err := h.sink.SendOffer(ctx, snap.DeviceToken, o, distanceKm); err != nil {
		h.log.Warn("offer via sink",
			zap.String("order_id", string(o.ID)),
			zap.String("worker_id", string(workerID)),
			zap.Error(err))
	}
}

// UpdateToClient pushes a lifecycle change to the order's client.
func (h *Hub) UpdateToClient(_ context.Context, o *order.Order, workerID types.ID, event string) {
	h.registry.Send(ClientKey(o.ClientID), NewOrderUpdate(o, workerID, event))
}

// TimeoutToClient tells the client which worker let an offer lapse.
func (h *Hub) TimeoutToClient(_ context.Context, clientID, orderID, workerID types.ID) {
	h.registry.Send(ClientKey(clientID), NewTimeout(orderID, workerID))
}
