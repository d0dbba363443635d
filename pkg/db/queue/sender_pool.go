package queue

import (
	"fmt"
	"sync"

	"github.com/silvermoon-h/matching-engine-2/pkg/messaging"
)

var (
	senderPool   chan messaging.MessageSender
	poolInitOnce sync.Once
	maxPoolSize  = 32
)

func initSenderPool() {
	poolInitOnce.Do(func() {
		senderPool = make(chan messaging.MessageSender, maxPoolSize)
		for i := 0; i < maxPoolSize; i++ {
			sender, err := NewSender()
			if err != nil {
				continue
			}
			senderPool <- sender
		}
	})
}

// GetSender returns a pooled sender, or nil if the pool has none ready
// (e.g. the broker was unreachable at startup).
func GetSender() messaging.MessageSender {
	initSenderPool()
	select {
	case sender := <-senderPool:
		return sender
	default:
		return nil
	}
}

// ReturnSender puts sender back in the pool, closing it instead if the
// pool is already full.
func ReturnSender(sender messaging.MessageSender) {
	if sender == nil {
		return
	}
	select {
	case senderPool <- sender:
	default:
		_ = sender.Close()
	}
}

// SendDeal publishes a deal using a pooled sender, dropping (not
// returning) it to the pool on a send error so a broken connection is not
// reused.
func SendDeal(msg *messaging.DealMessage) error {
	sender := GetSender()
	if sender == nil {
		return fmt.Errorf("no Kafka sender available")
	}

	if err := sender.SendDealMessage(msg); err != nil {
		_ = sender.Close()
		return err
	}
	ReturnSender(sender)
	return nil
}
