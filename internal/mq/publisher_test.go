package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"court-rotation/internal/stream"

	amqp "github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu     sync.Mutex
	msgs   []published
	fail   error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		err := f.fail
		f.fail = nil
		return err
	}
	f.msgs = append(f.msgs, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func waitForMessages(t *testing.T, f *fakeChannel, n int) []published {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := f.snapshot(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d messages, got %d", n, len(f.snapshot()))
	return nil
}

func TestPublishRoutesByEventName(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "court.events")
	defer p.Close()

	p.Publish(stream.StreamEvent{EventID: "7", Event: "added_players_to_court", SessionID: "sess-1", ServerTS: 1000, Data: map[string]any{"court": 3}})

	msgs := waitForMessages(t, ch, 1)
	got := msgs[0]
	if got.exchange != "court.events" || got.key != "court.added_players_to_court" {
		t.Fatalf("published to %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.MessageId != "7" {
		t.Fatalf("unexpected publishing headers: %+v", got.msg)
	}
	var body map[string]any
	if err := json.Unmarshal(got.msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["session_id"] != "sess-1" || body["event"] != "added_players_to_court" {
		t.Fatalf("body = %v", body)
	}
}

func TestPublishContinuesAfterFailure(t *testing.T) {
	ch := &fakeChannel{fail: errors.New("channel closed")}
	p := newPublisher(ch, "court.events")
	defer p.Close()

	p.Publish(stream.StreamEvent{EventID: "1", Event: "views_changed"})
	p.Publish(stream.StreamEvent{EventID: "2", Event: "views_changed"})

	msgs := waitForMessages(t, ch, 1)
	if msgs[0].msg.MessageId != "2" {
		t.Fatalf("first delivered message = %s, want 2", msgs[0].msg.MessageId)
	}
}

func TestCloseStopsPublishing(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "court.events")
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	p.Publish(stream.StreamEvent{EventID: "1", Event: "views_changed"})
	time.Sleep(20 * time.Millisecond)
	if len(ch.snapshot()) != 0 {
		t.Fatal("published after close")
	}
	if !ch.closed {
		t.Fatal("channel not closed")
	}
}
