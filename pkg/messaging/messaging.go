// Package messaging decouples the engine from the specific transport its
// committed deals are published on, mirroring the teacher's
// pkg/messaging/messaging.go: a MessageSender interface plus a plain wire
// struct, so pkg/db/queue (Kafka) and tests (a mock) can both implement it.
package messaging

// MessageSender publishes a committed deal outward — the concrete "outbound
// deal stream" observer hook §6 asks for.
type MessageSender interface {
	SendDealMessage(deal *DealMessage) error
	Close() error
}

// DealMessage is the wire form of a core.Deal. Prices and quantities travel
// as decimal strings, the same choice the teacher's DoneMessage makes for
// Trade.Price/Quantity, so no precision is lost re-encoding a
// fpdecimal.Decimal through an intermediate numeric type.
type DealMessage struct {
	ProductID   uint32
	Sequence    uint64
	Price       string
	Quantity    string
	MakerOrderID  uint64
	MakerClientID uint64
	TakerOrderID  uint64
	TakerClientID uint64
	MakerSide   string
	AuctionDeal bool
}

// MockSender is a no-op MessageSender for tests that need an engine wired
// to a deal sink without a running Kafka broker.
type MockSender struct {
	Sent []*DealMessage
}

func NewMockSender() *MockSender { return &MockSender{} }

func (m *MockSender) SendDealMessage(deal *DealMessage) error {
	m.Sent = append(m.Sent, deal)
	return nil
}

func (m *MockSender) Close() error { return nil }

var _ MessageSender = (*MockSender)(nil)
