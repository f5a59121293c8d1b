// Package gateway bridges the per-client websocket channel to the geo
// registry, the rider directory and the dispatch queue. Each connection has
// one read loop; events on it are handled to completion in arrival order,
// while independent connections run concurrently.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/rider-dispatch/internal/directory"
	"github.com/example/rider-dispatch/internal/dispatchq"
	"github.com/example/rider-dispatch/internal/geo"
	"github.com/example/rider-dispatch/internal/models"
	"github.com/example/rider-dispatch/internal/observability"
)

// Outcome classifies how an inbound event was handled. The channel itself is
// fire-and-forget: failures surface here for logging and metrics, never as
// protocol errors back to the client.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalid
	OutcomeBackendFailure
)

// LocationPublisher mirrors accepted location updates to a stream, if wired.
type LocationPublisher interface {
	PublishLocation(r models.Rider) error
}

type Config struct {
	RadiusKm      float64
	MaxCandidates int
	OfferTimeout  time.Duration
}

type Gateway struct {
	registry   geo.Registry
	directory  directory.Directory
	dispatches *dispatchq.Store
	sessions   *SessionRegistry
	publisher  LocationPublisher
	logger     *slog.Logger
	cfg        Config

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

func New(reg geo.Registry, dir directory.Directory, store *dispatchq.Store, sessions *SessionRegistry, logger *slog.Logger, cfg Config) *Gateway {
	return &Gateway{
		registry:   reg,
		directory:  dir,
		dispatches: store,
		sessions:   sessions,
		logger:     logger,
		cfg:        cfg,
		timers:     make(map[string]*time.Timer),
	}
}

// SetPublisher wires an optional location mirror.
func (g *Gateway) SetPublisher(p LocationPublisher) { g.publisher = p }

func (g *Gateway) Sessions() *SessionRegistry { return g.sessions }

// ServeConn owns a connection from upgrade to teardown and blocks until the
// peer goes away.
func (g *Gateway) ServeConn(ctx context.Context, conn *websocket.Conn) {
	sess := g.sessions.Add(conn)
	observability.ConnectedRiders.Inc()
	g.logger.Info("client connected", "session_id", sess.ID())
	defer g.teardown(sess)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		g.HandleEvent(ctx, sess, raw)
	}
}

// teardown runs with a fresh context: the request context is already dead
// once the read loop exits.
func (g *Gateway) teardown(sess *Session) {
	ctx := context.Background()
	g.sessions.Remove(sess.ID())
	observability.ConnectedRiders.Dec()
	_ = sess.conn.Close()

	riderID := sess.RiderID()
	if riderID == "" {
		g.logger.Info("client disconnected", "session_id", sess.ID())
		return
	}
	// A reconnected rider already owns a newer session handle; only the
	// current handle's teardown may take the rider offline.
	if info, ok := g.directory.Get(ctx, riderID); ok && info.SessionID != sess.ID() {
		g.logger.Info("stale session closed", "session_id", sess.ID(), "rider_id", riderID)
		return
	}
	if err := g.registry.Remove(ctx, riderID); err != nil {
		g.logger.Error("registry remove on disconnect failed", "rider_id", riderID, "error", err)
	}
	if err := g.directory.Delete(ctx, riderID); err != nil {
		g.logger.Error("directory delete on disconnect failed", "rider_id", riderID, "error", err)
	}
	g.logger.Info("rider disconnected", "session_id", sess.ID(), "rider_id", riderID)
	g.broadcastRiderList(ctx)
}

// HandleEvent parses one inbound frame and routes it by event type. The
// returned Outcome is what the tests assert on; the gateway itself only
// turns it into logs and counters.
func (g *Gateway) HandleEvent(ctx context.Context, sess *Session, raw []byte) Outcome {
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		observability.InvalidEventsTotal.Inc()
		g.logger.Warn("malformed event dropped", "session_id", sess.ID(), "error", err)
		return OutcomeInvalid
	}

	var out Outcome
	var err error
	switch ev.Type {
	case models.EventRiderLocation:
		out, err = g.handleLocation(ctx, sess, ev.Data)
	case models.EventDeliveryRequest:
		out, err = g.handleDeliveryRequest(ctx, sess, ev.Data)
	case models.EventDeliveryAccept:
		out, err = g.handleAccept(ctx, sess, ev.Data)
	case models.EventDeliveryReject:
		out, err = g.handleReject(ctx, sess, ev.Data)
	default:
		out, err = OutcomeInvalid, fmt.Errorf("unknown event type %q", ev.Type)
	}

	switch out {
	case OutcomeInvalid:
		observability.InvalidEventsTotal.Inc()
		g.logger.Warn("event dropped", "type", ev.Type, "session_id", sess.ID(), "error", err)
	case OutcomeBackendFailure:
		observability.BackendErrorsTotal.Inc()
		g.logger.Error("backend failure handling event", "type", ev.Type, "session_id", sess.ID(), "error", err)
	}
	return out
}

func (g *Gateway) handleLocation(ctx context.Context, sess *Session, data json.RawMessage) (Outcome, error) {
	var upd models.LocationUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		return OutcomeInvalid, err
	}
	if upd.RiderID == "" || upd.Name == "" || upd.Location == nil {
		return OutcomeInvalid, errors.New("location update missing required fields")
	}

	if err := g.registry.Upsert(ctx, upd.RiderID, upd.Location.Lng, upd.Location.Lat); err != nil {
		if errors.Is(err, geo.ErrInvalidCoord) {
			return OutcomeInvalid, err
		}
		return OutcomeBackendFailure, err
	}
	info := directory.RiderInfo{
		ID:        upd.RiderID,
		Name:      upd.Name,
		Lng:       upd.Location.Lng,
		Lat:       upd.Location.Lat,
		SessionID: sess.ID(),
	}
	if err := g.directory.Upsert(ctx, info); err != nil {
		return OutcomeBackendFailure, err
	}
	sess.bindRider(upd.RiderID)
	observability.LocationUpdatesTotal.Inc()

	if g.publisher != nil {
		rider := models.Rider{ID: upd.RiderID, Name: upd.Name, Lng: upd.Location.Lng, Lat: upd.Location.Lat}
		if err := g.publisher.PublishLocation(rider); err != nil {
			g.logger.Warn("location mirror publish failed", "rider_id", upd.RiderID, "error", err)
		}
	}

	g.broadcastRiderList(ctx)
	return OutcomeOK, nil
}

// broadcastRiderList pushes the full current rider set to every connected
// client. Full-list-on-every-update is a simplicity-over-efficiency choice;
// populations here are small.
func (g *Gateway) broadcastRiderList(ctx context.Context) {
	ids := g.registry.ListAll(ctx)
	infos := g.directory.GetAll(ctx, ids)
	riders := make([]models.Rider, 0, len(infos))
	for _, info := range infos {
		riders = append(riders, models.Rider{ID: info.ID, Name: info.Name, Lng: info.Lng, Lat: info.Lat})
	}
	g.sessions.Broadcast(models.NewEvent(models.EventRiderList, riders))
}

func (g *Gateway) handleDeliveryRequest(ctx context.Context, sess *Session, data json.RawMessage) (Outcome, error) {
	var req models.DeliveryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return OutcomeInvalid, err
	}
	if req.OrderID == "" || len(req.Payload) == 0 || req.Customer == nil {
		return OutcomeInvalid, errors.New("delivery request missing required fields")
	}

	loc := req.Customer.Location
	candidates := g.registry.Nearby(ctx, loc.Lng, loc.Lat, g.cfg.RadiusKm, g.cfg.MaxCandidates)
	if len(candidates) == 0 {
		observability.NoRidersFoundTotal.Inc()
		g.logger.Info("no riders found", "order_id", req.OrderID)
		if err := sess.Send(models.NewEvent(models.EventNoRidersFound, models.NoRidersFound{OrderID: req.OrderID})); err != nil {
			g.logger.Warn("no-riders reply failed", "order_id", req.OrderID, "error", err)
		}
		return OutcomeOK, nil
	}

	if _, err := g.dispatches.Create(req.OrderID, *req.Customer, req.Payload, candidates, sess.ID()); err != nil {
		return OutcomeInvalid, err
	}
	observability.DispatchesTotal.Inc()
	g.logger.Info("dispatch created", "order_id", req.OrderID, "candidates", len(candidates))

	g.offerCurrent(ctx, req.OrderID)
	return OutcomeOK, nil
}

// offerCurrent pushes the offer to the current candidate, skipping riders
// that have gone offline since the queue was built rather than waiting out
// their timer.
func (g *Gateway) offerCurrent(ctx context.Context, orderID string) {
	for {
		riderID, ok := g.dispatches.CurrentCandidate(orderID)
		if !ok {
			g.finish(ctx, orderID)
			return
		}
		info, found := g.directory.Get(ctx, riderID)
		if !found || info.SessionID == "" {
			g.logger.Info("skipping unreachable candidate", "order_id", orderID, "rider_id", riderID)
			_, _ = g.dispatches.Advance(orderID)
			continue
		}
		rec, found := g.dispatches.Get(orderID)
		if !found {
			return
		}
		offer := models.NewEvent(models.EventDeliveryOffer, models.DeliveryOffer{
			OrderID:  rec.OrderID,
			Payload:  rec.Payload,
			Customer: rec.Customer,
		})
		if err := g.sessions.Send(info.SessionID, offer); err != nil {
			g.logger.Info("offer push failed, advancing", "order_id", orderID, "rider_id", riderID, "error", err)
			_, _ = g.dispatches.Advance(orderID)
			continue
		}
		observability.OffersTotal.Inc()
		g.logger.Info("offer pushed", "order_id", orderID, "rider_id", riderID)
		g.armOfferTimer(orderID, riderID)
		return
	}
}

// finish reports a terminal record back to the request originator and drops
// it. Acceptance is reported by the accept handler; only exhaustion is
// signalled here.
func (g *Gateway) finish(ctx context.Context, orderID string) {
	g.stopOfferTimer(orderID)
	rec, ok := g.dispatches.Get(orderID)
	if !ok || rec.Status != dispatchq.StatusExhausted {
		return
	}
	observability.ExhaustedTotal.Inc()
	g.logger.Info("dispatch exhausted", "order_id", orderID)
	if err := g.sessions.Send(rec.ReplyTo, models.NewEvent(models.EventNoRidersFound, models.NoRidersFound{OrderID: orderID})); err != nil {
		g.logger.Warn("exhaustion reply failed", "order_id", orderID, "error", err)
	}
	g.dispatches.Remove(orderID)
}

func (g *Gateway) handleAccept(ctx context.Context, sess *Session, data json.RawMessage) (Outcome, error) {
	var ans models.DeliveryAnswer
	if err := json.Unmarshal(data, &ans); err != nil {
		return OutcomeInvalid, err
	}
	if ans.OrderID == "" {
		return OutcomeInvalid, errors.New("accept missing order id")
	}

	rec, err := g.dispatches.Accept(ans.OrderID)
	if errors.Is(err, dispatchq.ErrNotFound) {
		// duplicate accept after the record was already resolved and dropped
		return OutcomeOK, nil
	}
	if err != nil {
		return OutcomeBackendFailure, err
	}
	if rec.Status != dispatchq.StatusAccepted {
		// exhausted before the accept arrived: the late accept loses
		g.logger.Info("late accept ignored", "order_id", ans.OrderID, "status", string(rec.Status))
		return OutcomeOK, nil
	}

	g.stopOfferTimer(ans.OrderID)
	observability.AcceptsTotal.Inc()
	riderID := ans.RiderID
	if riderID == "" {
		riderID = sess.RiderID()
	}
	g.logger.Info("delivery assigned", "order_id", ans.OrderID, "rider_id", riderID)

	assigned := models.NewEvent(models.EventDeliveryAssigned, models.DeliveryAssigned{OrderID: ans.OrderID, RiderID: riderID})
	if err := sess.Send(assigned); err != nil {
		g.logger.Warn("assignment ack to rider failed", "order_id", ans.OrderID, "error", err)
	}
	if rec.ReplyTo != "" && rec.ReplyTo != sess.ID() {
		if err := g.sessions.Send(rec.ReplyTo, assigned); err != nil {
			g.logger.Warn("assignment notice to requester failed", "order_id", ans.OrderID, "error", err)
		}
	}
	g.dispatches.Remove(ans.OrderID)
	return OutcomeOK, nil
}

func (g *Gateway) handleReject(ctx context.Context, sess *Session, data json.RawMessage) (Outcome, error) {
	var ans models.DeliveryAnswer
	if err := json.Unmarshal(data, &ans); err != nil {
		return OutcomeInvalid, err
	}
	if ans.OrderID == "" {
		return OutcomeInvalid, errors.New("reject missing order id")
	}
	riderID := ans.RiderID
	if riderID == "" {
		riderID = sess.RiderID()
	}

	// only the current candidate's reject moves the cursor; stale rejects
	// from already-passed candidates are dropped
	if _, ok := g.dispatches.AdvanceFrom(ans.OrderID, riderID); !ok {
		g.logger.Info("stale reject ignored", "order_id", ans.OrderID, "rider_id", riderID)
		return OutcomeOK, nil
	}
	g.stopOfferTimer(ans.OrderID)
	observability.RejectsTotal.Inc()
	g.logger.Info("offer rejected", "order_id", ans.OrderID, "rider_id", riderID)
	g.offerCurrent(ctx, ans.OrderID)
	return OutcomeOK, nil
}

func (g *Gateway) armOfferTimer(orderID, riderID string) {
	if g.cfg.OfferTimeout <= 0 {
		return
	}
	g.timerMu.Lock()
	defer g.timerMu.Unlock()
	if t, ok := g.timers[orderID]; ok {
		t.Stop()
	}
	g.timers[orderID] = time.AfterFunc(g.cfg.OfferTimeout, func() { g.offerExpired(orderID, riderID) })
}

func (g *Gateway) stopOfferTimer(orderID string) {
	g.timerMu.Lock()
	defer g.timerMu.Unlock()
	if t, ok := g.timers[orderID]; ok {
		t.Stop()
		delete(g.timers, orderID)
	}
}

// offerExpired treats a silent candidate exactly like a reject. The timer
// can race a real accept or reject; AdvanceFrom makes the expiry a no-op
// unless its candidate is still the current one.
func (g *Gateway) offerExpired(orderID, riderID string) {
	ctx := context.Background()
	if _, ok := g.dispatches.AdvanceFrom(orderID, riderID); !ok {
		return
	}
	observability.OfferTimeoutsTotal.Inc()
	g.logger.Info("offer timed out", "order_id", orderID, "rider_id", riderID)
	g.offerCurrent(ctx, orderID)
}
