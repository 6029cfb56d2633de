package events

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/mezonai/credits/jsonx"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/monitoring"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/types"
)

// Envelope is the Kafka message value
type Envelope struct {
	Type string           `json:"type"`
	TS   int64            `json:"ts"` // unix milli
	Data jsonx.RawMessage `json:"data"`
}

// TransactionPayload is the wire form of a transaction inside an Envelope
type TransactionPayload struct {
	ID              string `json:"id"`
	Seq             uint64 `json:"seq"`
	Type            string `json:"type"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          string `json:"amount"`
	Memo            string `json:"memo,omitempty"`
	Timestamp       int64  `json:"timestamp"`
	Status          string `json:"status"`
	ErrorCode       string `json:"error_code,omitempty"`
	Error           string `json:"error,omitempty"`
	SenderBalance   string `json:"sender_balance,omitempty"`
	ReceiverBalance string `json:"receiver_balance,omitempty"`
}

type AccountPayload struct {
	Address string `json:"address"`
}

func NewTransactionPayload(tx *types.Transaction) TransactionPayload {
	p := TransactionPayload{
		ID:        tx.ID,
		Seq:       tx.Seq,
		Type:      string(tx.Type),
		Sender:    tx.Sender,
		Receiver:  tx.Receiver,
		Memo:      tx.Memo,
		Timestamp: tx.Timestamp,
		Status:    string(tx.Status),
		ErrorCode: tx.ErrorCode,
		Error:     tx.Error,
	}
	if tx.Amount != nil {
		p.Amount = tx.Amount.Dec()
	}
	if tx.SenderBalance != nil {
		p.SenderBalance = tx.SenderBalance.Dec()
	}
	if tx.ReceiverBalance != nil {
		p.ReceiverBalance = tx.ReceiverBalance.Dec()
	}
	return p
}

type Sink interface {
	Emit(ctx context.Context, event LedgerEvent) error
	Close() error
}

// KafkaSink forwards ledger events to one topic, keyed by transaction id
// so all events of a transaction land on the same partition.
type KafkaSink struct {
	topic string
	p     sarama.SyncProducer
}

func NewKafkaSink(brokers []string, topic string, cfg *sarama.Config) (*KafkaSink, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(p, topic), nil
}

func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{topic: topic, p: p}
}

func (s *KafkaSink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}

func (s *KafkaSink) Emit(ctx context.Context, event LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var payload interface{}
	key := event.TxID()
	switch e := event.(type) {
	case *TransactionCommitted:
		payload = NewTransactionPayload(e.Transaction())
	case *TransactionFailed:
		payload = NewTransactionPayload(e.Transaction())
	case *AccountOpened:
		payload = AccountPayload{Address: e.Address()}
		key = e.Address()
	default:
		return fmt.Errorf("kafka sink: unsupported event %T", event)
	}

	data, err := jsonx.Marshal(payload)
	if err != nil {
		return err
	}
	b, err := jsonx.Marshal(Envelope{
		Type: string(event.Type()),
		TS:   event.Timestamp().UnixMilli(),
		Data: data,
	})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err = s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka emit failed: %w", err)
	}
	return nil
}

// Forward drains a bus subscription into sink until ctx ends. Failed emits
// are retried with backoff and then dropped with a log line.
func Forward(ctx context.Context, bus *EventBus, sink Sink, policy retry.Policy) error {
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	if policy.Classify == nil {
		policy.Classify = func(err error) retry.Class {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return retry.Fatal
			}
			return retry.Retryable
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			emitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := retry.Do(emitCtx, policy, func(ctx context.Context) error {
				return sink.Emit(ctx, event)
			})
			cancel()
			if err != nil {
				monitoring.IncreaseEventsDropped("kafka")
				logx.Error("KAFKA_SINK", fmt.Sprintf("Dropping event %s for tx %s: %v", event.Type(), event.TxID(), err))
			}
		}
	}
}
