package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. BeforeHandle may replace the
// context and payload; an error from it skips the handler and counts as a
// failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message, data []byte) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message, data []byte) (context.Context, []byte, error) {
	return ctx, data, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil fields are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message, []byte) (context.Context, []byte, error)
	After  func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message, data []byte) (context.Context, []byte, error) {
	if h.Before == nil {
		return ctx, data, nil
	}
	return h.Before(ctx, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

// HookChain runs hooks in order for BeforeHandle and in reverse for
// AfterHandle. A panicking hook is turned into an error or ignored.
type HookChain []ConsumerHook

func (c HookChain) BeforeHandle(ctx context.Context, km kafka.Message, data []byte) (rctx context.Context, rdata []byte, err error) {
	rctx, rdata = ctx, data
	for _, h := range c {
		if h == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("hook panic: %v", r)
				}
			}()
			rctx, rdata, err = h.BeforeHandle(rctx, km, rdata)
		}()
		if err != nil {
			return ctx, data, err
		}
	}
	return rctx, rdata, nil
}

func (c HookChain) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			c[i].AfterHandle(ctx, km, err)
		}()
	}
}

type traceKey struct{}

// TraceHook copies the trace_id header, when present, into the context.
var TraceHook = HookFuncs{
	Before: func(ctx context.Context, km kafka.Message, data []byte) (context.Context, []byte, error) {
		for _, h := range km.Headers {
			if h.Key == "trace_id" && len(h.Value) > 0 {
				return context.WithValue(ctx, traceKey{}, string(h.Value)), data, nil
			}
		}
		return ctx, data, nil
	},
}

// TraceID returns the id stored by TraceHook, or "".
func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
