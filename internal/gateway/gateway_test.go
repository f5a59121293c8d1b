package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/rider-dispatch/internal/directory"
	"github.com/example/rider-dispatch/internal/dispatchq"
	"github.com/example/rider-dispatch/internal/geo"
)

func newTestGateway() (*Gateway, *geo.Index, *dispatchq.Store) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := geo.NewIndex()
	store := dispatchq.NewStore()
	g := New(reg, directory.NewTable(), store, NewSessionRegistry(logger), logger, Config{
		RadiusKm:      10,
		MaxCandidates: 5,
		OfferTimeout:  time.Second,
	})
	return g, reg, store
}

func TestMalformedFrameDropped(t *testing.T) {
	g, _, _ := newTestGateway()
	sess := &Session{id: "s1"}
	if out := g.HandleEvent(context.Background(), sess, []byte("{not json")); out != OutcomeInvalid {
		t.Fatalf("expected invalid outcome, got %v", out)
	}
}

func TestUnknownEventTypeDropped(t *testing.T) {
	g, _, _ := newTestGateway()
	sess := &Session{id: "s1"}
	if out := g.HandleEvent(context.Background(), sess, []byte(`{"type":"ping","data":{}}`)); out != OutcomeInvalid {
		t.Fatalf("expected invalid outcome, got %v", out)
	}
}

func TestLocationUpdateMissingFieldsMutatesNothing(t *testing.T) {
	g, reg, _ := newTestGateway()
	sess := &Session{id: "s1"}
	frames := []string{
		`{"type":"rider_location","data":{"riderName":"Asha","location":{"lat":1,"lng":2}}}`,
		`{"type":"rider_location","data":{"riderId":"r1","location":{"lat":1,"lng":2}}}`,
		`{"type":"rider_location","data":{"riderId":"r1","riderName":"Asha"}}`,
		`{"type":"rider_location","data":{"riderId":"r1","riderName":"Asha","location":{"lat":95,"lng":2}}}`,
	}
	for _, raw := range frames {
		if out := g.HandleEvent(context.Background(), sess, []byte(raw)); out != OutcomeInvalid {
			t.Fatalf("frame %s: expected invalid outcome, got %v", raw, out)
		}
	}
	if ids := reg.ListAll(context.Background()); len(ids) != 0 {
		t.Fatalf("rejected updates must not register riders, got %v", ids)
	}
	if sess.RiderID() != "" {
		t.Fatal("rejected update must not bind the session")
	}
}

func TestDeliveryRequestMissingFieldsCreatesNothing(t *testing.T) {
	g, _, store := newTestGateway()
	sess := &Session{id: "s1"}
	frames := []string{
		`{"type":"order_delivery_request","data":{"order":{},"customer":{"id":"u1","location":{"lat":0,"lng":0}}}}`,
		`{"type":"order_delivery_request","data":{"orderId":"o1","customer":{"id":"u1","location":{"lat":0,"lng":0}}}}`,
		`{"type":"order_delivery_request","data":{"orderId":"o1","order":{}}}`,
	}
	for _, raw := range frames {
		if out := g.HandleEvent(context.Background(), sess, []byte(raw)); out != OutcomeInvalid {
			t.Fatalf("frame %s: expected invalid outcome, got %v", raw, out)
		}
	}
	if _, ok := store.Get("o1"); ok {
		t.Fatal("no dispatch record may be created from a malformed request")
	}
}
