// Package publish delivers catalog reports to a Kafka topic.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
)

var ErrDisabled = errors.New("publish: report publishing is disabled")

type Publisher interface {
	Publish(ctx context.Context, r catalog.Report) error
	Close() error
}

// Event is the message value written to the topic.
type Event struct {
	Op     string         `json:"op"`
	Base   string         `json:"base"`
	TS     time.Time      `json:"ts"`
	Report catalog.Report `json:"report"`
}

const OpCatalogBuilt = "catalog.built"

// New returns a Kafka publisher when cfg is enabled and a Nop otherwise.
func New(cfg config.KafkaCfg, log *slog.Logger) (Publisher, error) {
	if log == nil {
		log = logger.Discard()
	}
	if !cfg.Enabled {
		log.Info("report publishing disabled")
		return Nop{}, nil
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("publish: brokers and topic are required")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.ClientID = "point-catalog"
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Compression = sarama.CompressionSnappy

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafka(p, cfg.Topic, log), nil
}

type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
	now      func() time.Time // for tests
}

func NewKafka(p sarama.SyncProducer, topic string, log *slog.Logger) *Kafka {
	if log == nil {
		log = logger.Discard()
	}
	return &Kafka{producer: p, topic: topic, log: log, now: time.Now}
}

// Publish sends r keyed by the catalog base so reports for one collection
// land on the same partition.
func (k *Kafka) Publish(ctx context.Context, r catalog.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(Event{Op: OpCatalogBuilt, Base: r.Base, TS: k.now().UTC(), Report: r})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(r.Base),
		Value: sarama.ByteEncoder(val),
	}
	part, off, err := k.producer.SendMessage(msg)
	observability.ObservePublish(err == nil)
	if err != nil {
		k.log.ErrorContext(ctx, "report publish failed", "topic", k.topic, "err", err)
		return fmt.Errorf("publish report: %w", err)
	}
	k.log.InfoContext(ctx, "report published", "topic", k.topic, "partition", part, "offset", off, "bytes", len(val))
	return nil
}

func (k *Kafka) Close() error { return k.producer.Close() }

// Nop drops reports.
type Nop struct{}

func (Nop) Publish(context.Context, catalog.Report) error { return ErrDisabled }
func (Nop) Close() error                                  { return nil }
