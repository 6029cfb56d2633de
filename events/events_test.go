package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/holiman/uint256"
	"github.com/mezonai/credits/jsonx"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committedTx() *types.Transaction {
	return &types.Transaction{
		ID:              "0190-test",
		Seq:             7,
		Type:            types.TxTypeTransfer,
		Sender:          "alice",
		Receiver:        "bob",
		Amount:          uint256.NewInt(100),
		Status:          types.TxStatusCommitted,
		IdempotencyKey:  "K1",
		SenderBalance:   uint256.NewInt(900),
		ReceiverBalance: uint256.NewInt(100),
	}
}

func TestEventBus(t *testing.T) {
	eventBus := NewEventBus()

	id, eventChan := eventBus.Subscribe()
	assert.Equal(t, 1, eventBus.GetTotalSubscriptions())
	assert.True(t, eventBus.HasSubscriber(id))

	eventBus.Publish(NewTransactionCommitted(committedTx()))

	select {
	case ev := <-eventChan:
		assert.Equal(t, EventTransactionCommitted, ev.Type())
		assert.Equal(t, "0190-test", ev.TxID())
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}

	assert.True(t, eventBus.Unsubscribe(id))
	assert.False(t, eventBus.Unsubscribe(id))
	assert.Equal(t, 0, eventBus.GetTotalSubscriptions())
}

func TestEventBus_FullSubscriberDoesNotBlock(t *testing.T) {
	eventBus := NewEventBusWithBuffer(1)
	_, ch := eventBus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			eventBus.Publish(NewAccountOpened("addr"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestEventRouter_SkipsPending(t *testing.T) {
	bus := NewEventBus()
	router := NewEventRouter(bus)
	_, ch := router.Subscribe()

	pending := committedTx()
	pending.Status = types.TxStatusPending
	router.PublishTransaction(pending)

	failed := committedTx()
	failed.Status = types.TxStatusFailed
	failed.Error = "no funds"
	router.PublishTransaction(failed)

	ev := <-ch
	require.Equal(t, EventTransactionFailed, ev.Type())
	assert.Equal(t, "no funds", ev.(*TransactionFailed).ErrorMessage())
	assert.Len(t, ch, 0)
}

func TestKafkaSink_Emit(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "0190-test" {
			return errors.New("unexpected key " + string(key))
		}
		raw, _ := msg.Value.Encode()
		var env Envelope
		if err := jsonx.Unmarshal(raw, &env); err != nil {
			return err
		}
		if env.Type != string(EventTransactionCommitted) {
			return errors.New("unexpected type " + env.Type)
		}
		var p TransactionPayload
		if err := jsonx.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.Amount != "100" || p.SenderBalance != "900" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	sink := NewKafkaSinkWithProducer(producer, "ledger.events")
	require.NoError(t, sink.Emit(context.Background(), NewTransactionCommitted(committedTx())))
	require.NoError(t, sink.Close())
}

func TestKafkaSink_EmitError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaSinkWithProducer(producer, "ledger.events")
	err := sink.Emit(context.Background(), NewAccountOpened("addr"))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sink.Close())
}

type signalSink struct {
	Sink
	delivered chan struct{}
}

func (s *signalSink) Emit(ctx context.Context, event LedgerEvent) error {
	if err := s.Sink.Emit(ctx, event); err != nil {
		return err
	}
	s.delivered <- struct{}{}
	return nil
}

func TestForward_RetriesThenDelivers(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	producer.ExpectSendMessageAndSucceed()
	sink := &signalSink{
		Sink:      NewKafkaSinkWithProducer(producer, "ledger.events"),
		delivered: make(chan struct{}, 1),
	}

	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Forward(ctx, bus, sink, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	}()

	require.Eventually(t, func() bool { return bus.GetTotalSubscriptions() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(NewTransactionCommitted(committedTx()))

	select {
	case <-sink.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	cancel()
	require.NoError(t, <-done)
	// the mock reports unmet expectations on close
	require.NoError(t, sink.Close())
}
