package catalog

import (
	"context"
	"time"

	"github.com/fjod/billflow/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventCatalogUpdated is published by the back office whenever categories or items change.
const EventCatalogUpdated = "catalog.updated"

const readErrorBackoff = time.Second

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Refresher interface {
	Refresh(ctx context.Context) *Snapshot
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 1e6,
	})
}

// Invalidator reloads the catalog when the back office announces a change.
type Invalidator struct {
	reader  MessageReader
	store   Refresher
	log     *zap.Logger
	backoff time.Duration
}

func NewInvalidator(reader MessageReader, store Refresher, log *zap.Logger) *Invalidator {
	return &Invalidator{
		reader:  reader,
		store:   store,
		log:     logger.OrNop(log),
		backoff: readErrorBackoff,
	}
}

// Run consumes until ctx is done, then closes the reader.
func (i *Invalidator) Run(ctx context.Context) {
	defer func() {
		if err := i.reader.Close(); err != nil {
			i.log.Warn("failed to close catalog event reader", zap.Error(err))
		}
	}()
	for ctx.Err() == nil {
		i.handleNext(ctx)
	}
}

func (i *Invalidator) handleNext(ctx context.Context) {
	m, err := i.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		i.log.Warn("error reading catalog event", zap.Error(err))
		select {
		case <-time.After(i.backoff):
		case <-ctx.Done():
		}
		return
	}

	if eventType(m) != EventCatalogUpdated {
		return
	}
	snap := i.store.Refresh(ctx)
	i.log.Info("catalog refreshed after update event",
		zap.Int("categories", len(snap.Categories)),
		zap.Int("items", len(snap.Items)))
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
