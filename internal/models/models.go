package models

import "encoding/json"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Rider is the broadcast-visible view of a connected rider.
type Rider struct {
	ID   string  `json:"riderId"`
	Name string  `json:"riderName"`
	Lng  float64 `json:"lng"`
	Lat  float64 `json:"lat"`
}

// Customer identifies the delivery destination. The ID and name come from
// the external auth layer and are passed through untouched.
type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Location Coord  `json:"location"`
}

// Event is the wire envelope for every websocket message, both directions.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound event types (rider/customer client -> server).
const (
	EventRiderLocation   = "rider_location"
	EventDeliveryRequest = "order_delivery_request"
	EventDeliveryAccept  = "delivery_accept"
	EventDeliveryReject  = "delivery_reject"
)

// Outbound event types (server -> clients).
const (
	EventRiderList        = "updated_riders"
	EventDeliveryOffer    = "delivery_request"
	EventNoRidersFound    = "no_riders_found"
	EventDeliveryAssigned = "delivery_assigned"
)

// LocationUpdate is the payload of a rider_location event. Location is a
// pointer so a missing coordinate object is distinguishable from (0, 0).
type LocationUpdate struct {
	RiderID  string `json:"riderId"`
	Name     string `json:"riderName"`
	Location *Coord `json:"location"`
}

// DeliveryRequest is the payload of an order_delivery_request event. The
// order payload is owned by the external order system and never inspected.
type DeliveryRequest struct {
	OrderID  string          `json:"orderId"`
	Payload  json.RawMessage `json:"order"`
	Customer *Customer       `json:"customer"`
}

// DeliveryOffer is pushed to exactly one candidate's connection.
type DeliveryOffer struct {
	OrderID  string          `json:"orderId"`
	Payload  json.RawMessage `json:"order"`
	Customer Customer        `json:"client"`
}

// DeliveryAnswer is the payload of delivery_accept and delivery_reject.
type DeliveryAnswer struct {
	OrderID string `json:"orderId"`
	RiderID string `json:"riderId"`
}

type NoRidersFound struct {
	OrderID string `json:"orderId"`
}

type DeliveryAssigned struct {
	OrderID string `json:"orderId"`
	RiderID string `json:"riderId"`
}

// NewEvent wraps a payload in the wire envelope. The payload types above
// cannot fail to marshal, so the error is discarded.
func NewEvent(eventType string, payload any) Event {
	b, _ := json.Marshal(payload)
	return Event{Type: eventType, Data: b}
}
