package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *fakeReader) Close() error { return nil }

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    int
	seen     [][]byte
}

func (h *flakyHandler) Topic() string { return "pricer.events" }

func (h *flakyHandler) Handle(_ context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return errors.New("store unavailable")
	}
	h.seen = append(h.seen, data)
	return nil
}

func newTestConsumer(t *testing.T, dlq bool) (*Consumer, *fakeReader, *fakeWriter) {
	t.Helper()
	opts := []ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}
	if dlq {
		opts = append(opts, WithConsumerDLQ("pricer.events.dlq"))
	}
	c, err := NewConsumer(nil, opts...)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	r := &fakeReader{ch: make(chan kafka.Message, 8)}
	c.newReader = func(string) messageReader { return r }
	w := &fakeWriter{}
	if dlq {
		c.dlq = w
	}
	c.readers["pricer.events"] = r
	return c, r, w
}

func TestProcessRetriesThenCommits(t *testing.T) {
	c, r, w := newTestConsumer(t, true)
	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)

	c.process(context.Background(), kafka.Message{Topic: "pricer.events", Offset: 7, Value: []byte(`{}`)})

	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}
	if got := r.Committed(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("committed = %v", got)
	}
	if len(w.msgs) != 0 {
		t.Fatalf("unexpected dlq write")
	}
}

func TestProcessExhaustedGoesToDLQ(t *testing.T) {
	c, r, w := newTestConsumer(t, true)
	h := &flakyHandler{failures: 100}
	c.RegisterHandler(h)

	c.process(context.Background(), kafka.Message{Topic: "pricer.events", Offset: 3, Value: []byte(`bad`)})

	if h.calls != 3 {
		t.Fatalf("calls = %d, want RetryMax+1", h.calls)
	}
	if len(w.msgs) != 1 || w.msgs[0].Topic != "pricer.events.dlq" || string(w.msgs[0].Value) != "bad" {
		t.Fatalf("dlq = %+v", w.msgs)
	}
	if got := r.Committed(); len(got) != 1 {
		t.Fatalf("parked message must be committed, got %v", got)
	}
}

func TestProcessWithoutDLQLeavesOffset(t *testing.T) {
	c, r, _ := newTestConsumer(t, false)
	c.RegisterHandler(&flakyHandler{failures: 100})

	c.process(context.Background(), kafka.Message{Topic: "pricer.events", Offset: 1})

	if got := r.Committed(); len(got) != 0 {
		t.Fatalf("failed message committed without dlq: %v", got)
	}
}

func TestHookErrorAndPanicCountAsFailures(t *testing.T) {
	c, _, w := newTestConsumer(t, true)
	h := &flakyHandler{}
	c.RegisterHandler(h)
	c.WithConsumerHook(HookChain{
		HookFuncs{Before: func(ctx context.Context, _ kafka.Message, _ []byte) (context.Context, []byte, error) {
			panic("bad hook")
		}},
	})

	c.process(context.Background(), kafka.Message{Topic: "pricer.events"})

	if h.calls != 0 {
		t.Fatalf("handler should not run when hook fails")
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected dlq write")
	}
}

func TestStartStop(t *testing.T) {
	c, r, _ := newTestConsumer(t, false)
	h := &flakyHandler{}
	c.RegisterHandler(h)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.ch <- kafka.Message{Topic: "pricer.events", Offset: 1, Value: []byte(`a`)}
	r.ch <- kafka.Message{Topic: "pricer.events", Offset: 2, Value: []byte(`b`)}

	deadline := time.Now().Add(2 * time.Second)
	for len(r.Committed()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := r.Committed(); len(got) != 2 {
		t.Fatalf("committed = %v", got)
	}
}

func TestTraceHook(t *testing.T) {
	ctx, _, err := TraceHook.BeforeHandle(context.Background(),
		kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}, nil)
	if err != nil || TraceID(ctx) != "abc" {
		t.Fatalf("trace id = %q, err %v", TraceID(ctx), err)
	}
}

func TestProducerEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	if err := p.Publish(context.Background(), "pricer.events", []byte("pageview"), map[string]int{"n": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.PublishMessage(context.Background(), "logs", json.RawMessage(`{"raw":true}`)); err != nil {
		t.Fatalf("publish raw: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "pageview" || string(w.msgs[0].Value) != `{"n":1}` {
		t.Fatalf("first message = %+v", w.msgs[0])
	}
	if string(w.msgs[1].Value) != `{"raw":true}` || w.msgs[1].Topic != "logs" {
		t.Fatalf("second message = %+v", w.msgs[1])
	}

	w.err = errors.New("broker down")
	if err := p.Publish(context.Background(), "pricer.events", nil, "x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		if d <= 0 || d > 100*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
