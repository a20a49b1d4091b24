package mq

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"sync"
	"time"

	"court-rotation/internal/stream"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

var (
	publishedTotal = expvar.NewInt("amqp_published_total")
	droppedTotal   = expvar.NewInt("amqp_dropped_total")
	failedTotal    = expvar.NewInt("amqp_publish_errors_total")
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards session events to a topic exchange. Publish never
// blocks; events are dropped when the queue is full.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string

	queue     chan stream.StreamEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p := newPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		queue:    make(chan stream.StreamEvent, queueSize),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

func RoutingKey(ev stream.StreamEvent) string {
	return "court." + ev.Event
}

func (p *Publisher) Publish(ev stream.StreamEvent) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- ev:
	default:
		droppedTotal.Add(1)
		log.Warn().Str("event", ev.Event).Str("session_id", ev.SessionID).Msg("amqp queue full, event dropped")
	}
}

func (p *Publisher) loop() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.queue:
			if err := p.publish(ev); err != nil {
				failedTotal.Add(1)
				log.Error().Err(err).Str("event", ev.Event).Msg("amqp publish failed")
				continue
			}
			publishedTotal.Add(1)
		}
	}
}

func (p *Publisher) publish(ev stream.StreamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(ev), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   ev.EventID,
		Timestamp:   time.UnixMilli(ev.ServerTS),
		Body:        b,
	})
}

func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		if p.ch != nil {
			_ = p.ch.Close()
		}
		if p.conn != nil {
			err = p.conn.Close()
		}
	})
	return err
}
