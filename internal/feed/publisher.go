package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"clawoffice.ai/internal/sim/events"
)

// Writer is the part of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is an events.Sink that forwards records to Kafka. Records are
// queued and written in batches by one goroutine; a full queue drops records.
type Publisher struct {
	w         Writer
	movements string
	presence  string
	log       *log.Logger

	ch        chan kafka.Message
	batch     int
	linger    time.Duration
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool

	dropped atomic.Uint64
	failed  atomic.Uint64
	sent    atomic.Uint64
}

type PublisherStats struct {
	Sent    uint64
	Dropped uint64
	Failed  uint64
}

func NewPublisher(cfg Config, logger *log.Logger) *Publisher {
	cfg = cfg.withDefaults()
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(w, cfg, logger)
}

func newPublisher(w Writer, cfg Config, logger *log.Logger) *Publisher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	p := &Publisher{
		w:         w,
		movements: cfg.MovementsTopic,
		presence:  cfg.PresenceTopic,
		log:       logger,
		ch:        make(chan kafka.Message, 4096),
		batch:     100,
		linger:    200 * time.Millisecond,
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop()
	}()
	return p
}

// Movement implements events.Sink. The key is the requesting agent so one
// agent's movements stay ordered within a partition.
func (p *Publisher) Movement(m events.Movement) { p.enqueue(p.movements, m.From, m) }

// Presence implements events.Sink.
func (p *Publisher) Presence(e events.Presence) { p.enqueue(p.presence, e.Agent, e) }

func (p *Publisher) enqueue(topic, key string, v any) {
	if p.closed.Load() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case p.ch <- kafka.Message{Topic: topic, Key: []byte(key), Value: b}:
	default:
		if p.dropped.Add(1) == 1 {
			p.log.Printf("publisher queue full; dropping events")
		}
	}
}

func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{Sent: p.sent.Load(), Dropped: p.dropped.Load(), Failed: p.failed.Load()}
}

// Close flushes queued records and closes the writer.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.ch)
		p.wg.Wait()
		err = p.w.Close()
	})
	return err
}

func (p *Publisher) loop() {
	buf := make([]kafka.Message, 0, p.batch)
	timer := time.NewTimer(p.linger)
	defer timer.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.w.WriteMessages(ctx, buf...)
		cancel()
		if err != nil {
			if p.failed.Add(uint64(len(buf))) == uint64(len(buf)) {
				p.log.Printf("publish %d events: %v", len(buf), err)
			}
		} else {
			p.sent.Add(uint64(len(buf)))
		}
		buf = buf[:0]
	}

	for {
		select {
		case m, ok := <-p.ch:
			if !ok {
				flush()
				return
			}
			buf = append(buf, m)
			if len(buf) >= p.batch {
				flush()
			}
		case <-timer.C:
			flush()
			timer.Reset(p.linger)
		}
	}
}
