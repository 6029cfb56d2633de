package events

import (
	"github.com/mezonai/credits/types"
)

// Publisher is what the engine and service need to announce outcomes
type Publisher interface {
	PublishTransaction(tx *types.Transaction)
	PublishAccountOpened(address string)
}

// EventRouter maps ledger records onto bus events
type EventRouter struct {
	eventBus *EventBus
}

// NewEventRouter creates a new EventRouter instance
func NewEventRouter(eventBus *EventBus) *EventRouter {
	return &EventRouter{eventBus: eventBus}
}

// PublishTransaction announces a transaction in a terminal state. Pending
// records are not announced.
func (er *EventRouter) PublishTransaction(tx *types.Transaction) {
	switch tx.Status {
	case types.TxStatusCommitted:
		er.eventBus.Publish(NewTransactionCommitted(tx))
	case types.TxStatusFailed:
		er.eventBus.Publish(NewTransactionFailed(tx))
	}
}

func (er *EventRouter) PublishAccountOpened(address string) {
	er.eventBus.Publish(NewAccountOpened(address))
}

// Subscribe subscribes to all ledger events
func (er *EventRouter) Subscribe() (SubscriberID, chan LedgerEvent) {
	return er.eventBus.Subscribe()
}

func (er *EventRouter) Unsubscribe(id SubscriberID) bool {
	return er.eventBus.Unsubscribe(id)
}

// NopPublisher discards everything
type NopPublisher struct{}

func (NopPublisher) PublishTransaction(*types.Transaction) {}
func (NopPublisher) PublishAccountOpened(string)          {}
