// README: Push event types. Every event carries a discriminating "type"
// tag and a fixed field set; payloads are serialized only at the
// connection boundary.
package push

import (
	"usta/internal/modules/order"
	"usta/internal/types"
)

// Event type tags as they appear on the wire.
const (
	TypeOrderOffer  = "order_offer"
	TypeOrderUpdate = "order_update"
	TypeTimeout     = "timeout"
	TypeError       = "error"
	TypeDebugEcho   = "debug_echo"
)

type Event interface {
	// EventType returns the wire tag; each concrete event also carries
	// it in its Type field so plain JSON marshalling does the rest.
	EventType() string
}

// OfferOrder is the order summary embedded in an offer.
type OfferOrder struct {
	ID          types.ID    `json:"id"`
	ClientID    types.ID    `json:"client_id"`
	JobCategory int64       `json:"job_category"`
	JobIDs      []int64     `json:"job_ids,omitempty"`
	Region      int64       `json:"region"`
	City        int64       `json:"city"`
	Gender      string      `json:"gender,omitempty"`
	Desc        string      `json:"description"`
	Price       string      `json:"price"`
	WorkerCount int         `json:"worker_count"`
	Location    types.Point `json:"location"`
}

type OrderOffer struct {
	Type       string     `json:"type"`
	Order      OfferOrder `json:"order"`
	DistanceKm float64    `json:"distance_km"`
	// Eta is a human estimate like "12 mins"; empty when routing is off.
	Eta string `json:"eta,omitempty"`
}

func (OrderOffer) EventType() string { return TypeOrderOffer }

type OrderUpdate struct {
	Type     string       `json:"type"`
	OrderID  types.ID     `json:"order_id"`
	Status   order.Status `json:"status"`
	Event    string       `json:"event"`
	WorkerID types.ID     `json:"worker_id,omitempty"`
}

func (OrderUpdate) EventType() string { return TypeOrderUpdate }

type Timeout struct {
	Type     string   `json:"type"`
	OrderID  types.ID `json:"order_id"`
	WorkerID types.ID `json:"worker_id"`
}

func (Timeout) EventType() string { return TypeTimeout }

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return TypeError }

type DebugEcho struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

func (DebugEcho) EventType() string { return TypeDebugEcho }

func NewOrderOffer(o *order.Order, distanceKm float64, eta string) OrderOffer {
	return OrderOffer{
		Type: TypeOrderOffer,
		Order: OfferOrder{
			ID:          o.ID,
			ClientID:    o.ClientID,
			JobCategory: o.JobCategory,
			JobIDs:      o.JobIDs,
			Region:      o.Region,
			City:        o.City,
			Gender:      o.Gender,
			Desc:        o.Desc,
			Price:       o.Price,
			WorkerCount: o.WorkerCount,
			Location:    o.Location,
		},
		DistanceKm: distanceKm,
		Eta:        eta,
	}
}

func NewOrderUpdate(o *order.Order, workerID types.ID, event string) OrderUpdate {
	return OrderUpdate{
		Type:     TypeOrderUpdate,
		OrderID:  o.ID,
		Status:   o.Status,
		Event:    event,
		WorkerID: workerID,
	}
}

func NewTimeout(orderID, workerID types.ID) Timeout {
	return Timeout{Type: TypeTimeout, OrderID: orderID, WorkerID: workerID}
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}
