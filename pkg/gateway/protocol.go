// Package gateway is the TCP session layer external clients use to send
// order flow into the matching engine. Framing follows
// exchange::gateway::Session from
// original_source/trading-gateway/include/Gateway_Session.h: a fixed-size
// header announcing the body length, read first, followed by exactly that
// many body bytes. The original frames a protobuf-defined OneMessage; the
// protobuf schema package was never retrieved into this pack (see
// DESIGN.md), so the body here is gob-encoded instead — the same
// header-then-body shape, a different wire codec.
package gateway

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/nikolaydubina/fpdecimal"

	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

// MessageKind tags which field of Envelope is populated, mirroring the
// original's protocol::OneMessage oneof-by-convention (Logon, NewOrder,
// ModOrder, CanOrder, Heartbeat).
type MessageKind byte

const (
	KindLogon MessageKind = iota + 1
	KindHeartbeat
	KindNewOrder
	KindModOrder
	KindCanOrder
	KindAck
	KindReject
)

// Envelope is the gob-encoded body of one framed message. Exactly one of
// the pointer fields is non-nil, selected by Kind.
type Envelope struct {
	Kind MessageKind

	Logon     *LogonMessage
	Heartbeat *HeartbeatMessage
	NewOrder  *NewOrderMessage
	ModOrder  *ModOrderMessage
	CanOrder  *CanOrderMessage
	Ack       *AckMessage
	Reject    *RejectMessage
}

// LogonMessage identifies the client owning every subsequent order on the
// connection (process_logon_message in the original).
type LogonMessage struct {
	ClientID uint64
}

// HeartbeatMessage keeps the session alive with no matching-engine effect.
type HeartbeatMessage struct{}

// NewOrderMessage requests a new resting or immediately-matching order
// (process_new_order_message in the original). Price/Quantity travel as
// decimal strings so the wire format never depends on fpdecimal's binary
// layout.
type NewOrderMessage struct {
	ProductID uint32
	OrderID   uint64
	Side      core.Side
	Type      core.OrderType
	Price     string
	Quantity  string
}

// ModOrderMessage requests a price/quantity replace of a resting order
// (process_mod_order_message in the original).
type ModOrderMessage struct {
	ProductID   uint32
	OrderID     uint64
	Side        core.Side
	NewPrice    string
	NewQuantity string
}

// CanOrderMessage requests a cancel (process_can_order_message).
type CanOrderMessage struct {
	ProductID uint32
	OrderID   uint64
	Side      core.Side
}

// AckMessage confirms an order operation was accepted.
type AckMessage struct {
	OrderID uint64
}

// RejectMessage reports why an order operation was refused.
type RejectMessage struct {
	OrderID uint64
	Reason  string
}

// writeFrame writes a 4-byte big-endian length header followed by the
// gob-encoded envelope.
func writeFrame(w io.Writer, env *Envelope) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(buf.Len()))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readFrame reads one header-then-body frame and decodes its envelope.
func readFrame(r io.Reader) (*Envelope, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	bodyLen := binary.BigEndian.Uint32(header)

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

// parseDecimal parses a wire decimal string, rejecting the empty string
// fpdecimal.FromString would otherwise accept as zero.
func parseDecimal(s string) (fpdecimal.Decimal, error) {
	if s == "" {
		return fpdecimal.Zero, fmt.Errorf("empty decimal")
	}
	return fpdecimal.FromString(s)
}
