package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/infra/metrics"
)

// TradeEvent is the wire form of one matching step.
type TradeEvent struct {
	V           int    `json:"v"`
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	Symbol      string `json:"symbol"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Timestamp   uint64 `json:"ts"`
}

func NewTradeEvent(t orderbook.Trade) TradeEvent {
	return TradeEvent{
		V:           1,
		Type:        "trade",
		Seq:         t.Seq,
		Symbol:      t.Symbol,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price.String(),
		Quantity:    t.Quantity.String(),
		Timestamp:   t.Timestamp,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TradeProducer streams trades to a topic keyed by symbol. The writer is
// asynchronous so matching never waits on the broker; delivery failures are
// logged and counted.
type TradeProducer struct {
	writer messageWriter
	log    zerolog.Logger
}

func NewTradeProducer(brokers []string, topic string, log zerolog.Logger) *TradeProducer {
	log = log.With().Str("component", "trade_producer").Str("topic", topic).Logger()
	return &TradeProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 10 * time.Millisecond,
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					metrics.PublishErrorsTotal.WithLabelValues("kafka_trades").Add(float64(len(msgs)))
					log.Warn().Err(err).Int("messages", len(msgs)).Msg("trade delivery failed")
				}
			},
		},
		log: log,
	}
}

func (p *TradeProducer) PublishTrade(ctx context.Context, t orderbook.Trade) error {
	value, err := json.Marshal(NewTradeEvent(t))
	if err != nil {
		return fmt.Errorf("encode trade %d: %w", t.Seq, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.Symbol),
		Value: value,
	})
}

func (p *TradeProducer) Close() error {
	return p.writer.Close()
}
