package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/domain"
)

// TransitionProducer publishes ledger transitions to the audit topic. The
// API server treats it as best effort: a purchase is authoritative in
// Postgres before anything is published here.
type TransitionProducer struct {
	producer sarama.AsyncProducer
	log      *slog.Logger
	topic    string
}

func NewTransitionProducer(cfg config.Kafka, log *slog.Logger) (*TransitionProducer, error) {
	if len(cfg.Brokers) == 0 {
		err := errors.New("kafka brokers list is empty")
		log.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}
	if cfg.Topic == "" {
		err := errors.New("kafka topic is empty")
		log.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		log.Error("error parsing kafka version", slog.Any("error", err))
		return nil, err
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		log.Error("failed to create kafka producer", slog.Any("error", err))
		return nil, err
	}

	return newTransitionProducer(producer, log, cfg.Topic), nil
}

func newTransitionProducer(producer sarama.AsyncProducer, log *slog.Logger, topic string) *TransitionProducer {
	p := &TransitionProducer{
		producer: producer,
		log:      log,
		topic:    topic,
	}

	// Both result channels must stay drained or the producer's dispatcher
	// blocks and Input() backs up, stalling every Publish. The goroutines
	// exit when Close closes the channels.
	go func() {
		for range producer.Successes() {
		}
	}()
	go func() {
		for msgErr := range producer.Errors() {
			p.log.Error("failed to deliver transition",
				slog.String("topic", msgErr.Msg.Topic),
				slog.Any("error", msgErr.Err))
		}
	}()

	return p
}

func (p *TransitionProducer) Publish(ctx context.Context, t domain.LedgerTransition) error {
	payload, err := json.Marshal(t)
	if err != nil {
		p.log.Error("failed to marshal transition",
			slog.String("purchase_id", t.PurchaseID),
			slog.Any("error", err))
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		// keyed by purchase so one purchase's transitions stay ordered
		Key:   sarama.StringEncoder(t.PurchaseID),
		Value: sarama.ByteEncoder(payload),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		p.log.Warn("context cancelled before publishing transition",
			slog.Any("error", ctx.Err()),
			slog.String("purchase_id", t.PurchaseID),
		)
		return ctx.Err()
	}
}

func (p *TransitionProducer) Close() error {
	p.log.Info("closing Kafka producer")
	err := p.producer.Close()
	if err != nil {
		p.log.Error("failed to close Kafka producer", slog.Any("error", err))
	}
	return err
}
