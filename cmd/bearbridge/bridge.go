package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ============================================================================
// Bridge
// ============================================================================
// The transport-agnostic boundary between the host and the scene.
//
//   - Receive(raw) is the single host entry point. It decodes the payload and
//     queues it on the daemon's event channel. It never panics or returns an
//     error to the host; failures are logged here.
//   - OnEmit(handler) registers an outbound handler. Handlers are invoked from
//     the daemon goroutine only, in registration order, so outbound events keep
//     the order of the commands that caused them.
//   - With no handler registered, or in local-debug mode, emitted payloads are
//     written to the log instead of being forwarded.
// ============================================================================

// EmitHandler receives an encoded outbound payload and the event it encodes.
type EmitHandler func(payload []byte, ev BridgeEvent)

type emitRegistration struct {
	id uint64
	fn EmitHandler
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// LocalDebug logs every emitted payload instead of forwarding it.
	LocalDebug bool
}

// Bridge accepts host payloads and emits scene events.
type Bridge struct {
	events chan<- Event
	done   <-chan struct{}
	logger *slog.Logger

	localDebug bool

	mu       sync.RWMutex
	handlers []emitRegistration
	nextID   uint64
}

// NewBridge creates a bridge feeding events. Once ctx is done, Receive stops
// blocking and reports ErrBridgeClosed.
func NewBridge(ctx context.Context, events chan<- Event, logger *slog.Logger, opts BridgeOptions) *Bridge {
	return &Bridge{
		events:     events,
		done:       ctx.Done(),
		logger:     logger,
		localDebug: opts.LocalDebug,
	}
}

// Receive is the host entry point. Fire-and-forget.
func (b *Bridge) Receive(raw string) {
	if err := b.Submit(context.Background(), raw); err != nil {
		b.logger.Warn("bridge receive failed", "error", err, "raw", raw)
	}
}

// Submit decodes raw and queues it for the daemon. Transports that can report
// back (HTTP, IPC) use this to surface queueing failures to their caller.
func (b *Bridge) Submit(ctx context.Context, raw string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bridge receive panic: %v", r)
		}
	}()

	cmd := DecodeCommand(raw)
	b.logger.Debug("bridge received", "raw", raw, "command", cmd.String())

	ev := CommandReceived{Command: cmd, Raw: raw}

	select {
	case b.events <- ev:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnEmit registers an outbound handler and returns a function that removes it.
func (b *Bridge) OnEmit(fn EmitHandler) (unregister func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, emitRegistration{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, h := range b.handlers {
				if h.id == id {
					b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit encodes ev and hands it to every registered handler.
// Intended to be called only by the daemon goroutine.
func (b *Bridge) Emit(ev BridgeEvent) {
	payload, err := EncodeEvent(ev)
	if err != nil {
		b.logger.Error("bridge encode failed", "error", err, "kind", ev.Kind)
		return
	}

	b.mu.RLock()
	handlers := make([]emitRegistration, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	if b.localDebug {
		b.logger.Info("bridge emit (local debug)", "payload", string(payload))
		return
	}
	if len(handlers) == 0 {
		b.logger.Info("bridge emit (no transport)", "payload", string(payload), "reason", ErrTransportUnavailable)
		return
	}

	b.logger.Debug("bridge emit", "kind", ev.Kind, "handlers", len(handlers))
	for _, h := range handlers {
		b.callHandler(h, payload, ev)
	}
}

func (b *Bridge) callHandler(h emitRegistration, payload []byte, ev BridgeEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bridge emit handler panic", "handler", h.id, "panic", r)
		}
	}()
	h.fn(payload, ev)
}
