package feed

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/office"
)

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer pushes feed messages into the office loop's channels.
type Consumer struct {
	interactions Reader
	heartbeats   Reader

	toOffice   chan<- dispatch.Interaction
	toPresence chan<- office.HeartbeatBatch

	log *log.Logger
}

func NewConsumer(cfg Config, o *office.Office, logger *log.Logger) *Consumer {
	cfg = cfg.withDefaults()
	newReader := func(topic string) *kafka.Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  cfg.MaxWait,
		})
	}
	return newConsumer(newReader(cfg.InteractionsTopic), newReader(cfg.HeartbeatsTopic), o.Interactions(), o.Heartbeats(), logger)
}

func newConsumer(interactions, heartbeats Reader, toOffice chan<- dispatch.Interaction, toPresence chan<- office.HeartbeatBatch, logger *log.Logger) *Consumer {
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{
		interactions: interactions,
		heartbeats:   heartbeats,
		toOffice:     toOffice,
		toPresence:   toPresence,
		log:          logger,
	}
}

// Run reads both topics until ctx is done, then closes the readers.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.loop(ctx, "interactions", c.interactions, func(m kafka.Message) {
			ev, err := decodeInteraction(m.Value)
			if err != nil {
				c.log.Printf("interaction key=%s: %v", string(m.Key), err)
				return
			}
			select {
			case c.toOffice <- ev:
			case <-ctx.Done():
			}
		})
	}()
	go func() {
		defer wg.Done()
		c.loop(ctx, "heartbeats", c.heartbeats, func(m kafka.Message) {
			beats, err := decodeHeartbeats(m.Value)
			if err != nil {
				c.log.Printf("heartbeat key=%s: %v", string(m.Key), err)
				return
			}
			if len(beats) == 0 {
				return
			}
			select {
			case c.toPresence <- office.HeartbeatBatch{Beats: beats}:
			case <-ctx.Done():
			}
		})
	}()
	wg.Wait()
}

func (c *Consumer) loop(ctx context.Context, name string, r Reader, handle func(kafka.Message)) {
	defer r.Close()
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Printf("%s reader stopped", name)
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			c.log.Printf("%s read: %v", name, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		handle(m)
	}
}
