package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/silvermoon-h/matching-engine-2/pkg/core"
	"github.com/silvermoon-h/matching-engine-2/pkg/engine"
	"github.com/silvermoon-h/matching-engine-2/pkg/logging"
)

// Clock returns the time used to stamp an incoming order — a function
// value rather than a direct time.Now() call so tests can inject a
// deterministic clock (§9).
type Clock func() time.Time

// Gateway accepts client TCP connections and turns their framed messages
// into engine.MatchingEngine calls, mirroring the accept-loop-plus-session
// shape of exchange::gateway::Session from the original source, adapted
// from a Boost.Asio per-connection object into a goroutine per connection.
type Gateway struct {
	eng   *engine.MatchingEngine
	clock Clock

	// RateLimit and RateBurst bound how many messages per second one
	// connection may send before Wait starts blocking it (a gateway-level
	// throttle the original source has no equivalent of; supplemented per
	// SPEC_FULL.md's domain stack).
	RateLimit rate.Limit
	RateBurst int
}

// New builds a Gateway dispatching into eng, stamping every insert and
// modify with clock().
func New(eng *engine.MatchingEngine, clock Clock) *Gateway {
	return &Gateway{
		eng:       eng,
		clock:     clock,
		RateLimit: rate.Limit(100),
		RateBurst: 20,
	}
}

// ListenAndServe accepts connections on addr until ctx is cancelled or the
// listener errors.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer lis.Close()

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	logger := logging.FromContext(ctx)
	logger.Info().Str("addr", addr).Msg("gateway listening")

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go g.handleConn(ctx, conn)
	}
}

func (g *Gateway) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sessionID := uuid.New().String()
	logger := logging.FromContext(ctx).With().Str("session_id", sessionID).Logger()
	limiter := rate.NewLimiter(g.RateLimit, g.RateBurst)

	var clientID uint64
	for {
		env, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn().Err(err).Msg("session read error, closing")
			}
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		resp := g.dispatch(env, &clientID, sessionID, &logger)
		if resp == nil {
			continue
		}
		if err := writeFrame(conn, resp); err != nil {
			logger.Warn().Err(err).Msg("session write error, closing")
			return
		}
	}
}

// dispatch turns one envelope into an engine call and, where the original
// protocol expects one, a response envelope. clientID is the session's
// logged-on client, set by a prior LogonMessage.
func (g *Gateway) dispatch(env *Envelope, clientID *uint64, sessionID string, logger *zerolog.Logger) *Envelope {
	switch env.Kind {
	case KindLogon:
		if env.Logon == nil {
			return rejectEnvelope(0, "malformed logon")
		}
		*clientID = env.Logon.ClientID
		logger.Info().Uint64("client_id", *clientID).Msg("session logged on")
		return nil

	case KindHeartbeat:
		return nil

	case KindNewOrder:
		return g.handleNewOrder(env.NewOrder, *clientID)

	case KindModOrder:
		return g.handleModOrder(env.ModOrder, *clientID)

	case KindCanOrder:
		return g.handleCanOrder(env.CanOrder, *clientID)

	default:
		return rejectEnvelope(0, "unknown message kind")
	}
}

func (g *Gateway) handleNewOrder(msg *NewOrderMessage, clientID uint64) *Envelope {
	if msg == nil {
		return rejectEnvelope(0, "malformed new order")
	}
	key := core.OrderKey{ProductID: msg.ProductID, OrderID: msg.OrderID, ClientID: clientID, Side: msg.Side}

	var order *core.Order
	switch msg.Type {
	case core.TypeMarket:
		quantity, err := parseDecimal(msg.Quantity)
		if err != nil {
			return rejectEnvelope(msg.OrderID, err.Error())
		}
		order = core.NewMarketOrder(key, msg.Side, quantity)
	default:
		price, err := parseDecimal(msg.Price)
		if err != nil {
			return rejectEnvelope(msg.OrderID, err.Error())
		}
		quantity, err := parseDecimal(msg.Quantity)
		if err != nil {
			return rejectEnvelope(msg.OrderID, err.Error())
		}
		order = core.NewLimitOrder(key, msg.Side, price, quantity)
	}

	if err := g.eng.Insert(order, msg.ProductID, g.clock()); err != nil {
		return rejectEnvelope(msg.OrderID, err.Error())
	}
	return ackEnvelope(msg.OrderID)
}

func (g *Gateway) handleModOrder(msg *ModOrderMessage, clientID uint64) *Envelope {
	if msg == nil {
		return rejectEnvelope(0, "malformed mod order")
	}
	price, err := parseDecimal(msg.NewPrice)
	if err != nil {
		return rejectEnvelope(msg.OrderID, err.Error())
	}
	quantity, err := parseDecimal(msg.NewQuantity)
	if err != nil {
		return rejectEnvelope(msg.OrderID, err.Error())
	}

	replace := core.OrderReplace{
		Key:         core.OrderKey{ProductID: msg.ProductID, OrderID: msg.OrderID, ClientID: clientID, Side: msg.Side},
		NewPrice:    price,
		NewQuantity: quantity,
	}
	if err := g.eng.Modify(replace, msg.ProductID, g.clock()); err != nil {
		return rejectEnvelope(msg.OrderID, err.Error())
	}
	return ackEnvelope(msg.OrderID)
}

func (g *Gateway) handleCanOrder(msg *CanOrderMessage, clientID uint64) *Envelope {
	if msg == nil {
		return rejectEnvelope(0, "malformed cancel order")
	}
	key := core.OrderKey{ProductID: msg.ProductID, OrderID: msg.OrderID, ClientID: clientID, Side: msg.Side}
	if err := g.eng.Delete(key, msg.ProductID); err != nil {
		return rejectEnvelope(msg.OrderID, err.Error())
	}
	return ackEnvelope(msg.OrderID)
}

func ackEnvelope(orderID uint64) *Envelope {
	return &Envelope{Kind: KindAck, Ack: &AckMessage{OrderID: orderID}}
}

func rejectEnvelope(orderID uint64, reason string) *Envelope {
	return &Envelope{Kind: KindReject, Reject: &RejectMessage{OrderID: orderID, Reason: reason}}
}
