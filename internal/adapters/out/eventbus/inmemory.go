// Package eventbus implements the event bus adapter.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// DefaultHandlerTimeout bounds a single handler invocation. A refresh runs
// readiness waits and verification, so it is generous.
const DefaultHandlerTimeout = 2 * time.Minute

const publishTimeout = 5 * time.Second

// ErrStopped is returned when publishing to a stopped bus.
var ErrStopped = errors.New("event bus is stopped")

// InMemory implements the EventBus interface using in-memory channels.
type InMemory struct {
	handlers       []out.EventHandler
	eventChan      chan domain.Event
	done           chan struct{}
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	bufferSize     int
	handlerTimeout time.Duration
	log            zerolog.Logger
}

// Option configures the bus.
type Option func(*InMemory)

// WithHandlerTimeout overrides DefaultHandlerTimeout.
func WithHandlerTimeout(d time.Duration) Option {
	return func(bus *InMemory) {
		if d > 0 {
			bus.handlerTimeout = d
		}
	}
}

// NewInMemory creates a new in-memory event bus.
func NewInMemory(bufferSize int, log zerolog.Logger, opts ...Option) *InMemory {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &InMemory{
		handlers:       make([]out.EventHandler, 0),
		eventChan:      make(chan domain.Event, bufferSize),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		bufferSize:     bufferSize,
		handlerTimeout: DefaultHandlerTimeout,
		log: log.With().
			Str(logging.FieldLayer, "adapter").
			Str(logging.FieldAdapter, "eventbus").
			Logger(),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Publish publishes an event to the bus.
func (bus *InMemory) Publish(eventType domain.EventType, payload any) error {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      payload,
	}

	select {
	case <-bus.ctx.Done():
		return ErrStopped
	default:
	}

	select {
	case bus.eventChan <- event:
		bus.log.Debug().
			Str("event_id", event.ID).
			Str(logging.FieldEvent, string(event.Type)).
			Msg("event published")
		return nil
	case <-bus.ctx.Done():
		return ErrStopped
	case <-time.After(publishTimeout):
		bus.log.Error().
			Str("event_id", event.ID).
			Str(logging.FieldEvent, string(event.Type)).
			Msg("event channel is full, dropping event after 5s timeout")
		return fmt.Errorf("event channel is full, dropping event %s", event.ID)
	}
}

// Subscribe adds an event handler to the bus.
func (bus *InMemory) Subscribe(handler out.EventHandler) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers = append(bus.handlers, handler)
	bus.log.Debug().
		Str(logging.FieldHandler, fmt.Sprintf("%T", handler)).
		Int("total_handlers", len(bus.handlers)).
		Msg("event handler subscribed")

	return nil
}

// Unsubscribe removes an event handler from the bus.
func (bus *InMemory) Unsubscribe(handler out.EventHandler) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	for i, h := range bus.handlers {
		if h == handler {
			bus.handlers = append(bus.handlers[:i], bus.handlers[i+1:]...)
			bus.log.Debug().
				Str(logging.FieldHandler, fmt.Sprintf("%T", handler)).
				Int("total_handlers", len(bus.handlers)).
				Msg("event handler unsubscribed")
			return nil
		}
	}

	return fmt.Errorf("handler not found")
}

// Start starts the event bus processing loop.
func (bus *InMemory) Start() error {
	bus.log.Debug().Int("buffer_size", bus.bufferSize).Msg("starting event bus")

	go bus.processEvents()
	return nil
}

// Stop stops the event bus. In-flight handlers see their context cancelled.
func (bus *InMemory) Stop() error {
	bus.log.Debug().Msg("stopping event bus")

	bus.cancel()

	select {
	case <-bus.done:
		bus.log.Debug().Msg("event bus stopped")
		return nil
	case <-time.After(publishTimeout):
		bus.log.Warn().Msg("event bus stop timeout")
		return fmt.Errorf("timeout waiting for event bus to stop")
	}
}

func (bus *InMemory) processEvents() {
	defer close(bus.done)

	for {
		select {
		case event := <-bus.eventChan:
			bus.handleEvent(event)
		case <-bus.ctx.Done():
			bus.log.Debug().Msg("event bus processing stopped")
			return
		}
	}
}

// handleEvent runs matching handlers one at a time, in subscription order.
func (bus *InMemory) handleEvent(event domain.Event) {
	bus.mu.RLock()
	handlers := make([]out.EventHandler, len(bus.handlers))
	copy(handlers, bus.handlers)
	bus.mu.RUnlock()

	for _, h := range handlers {
		if !h.CanHandle(event.Type) {
			continue
		}

		start := time.Now()
		log := bus.log.With().
			Str("event_id", event.ID).
			Str(logging.FieldEvent, string(event.Type)).
			Str(logging.FieldHandler, fmt.Sprintf("%T", h)).
			Logger()

		ctx, cancel := context.WithTimeout(logging.WithCtx(bus.ctx, log), bus.handlerTimeout)

		done := make(chan error, 1)
		go func() {
			done <- h.Handle(ctx, event)
		}()

		select {
		case err := <-done:
			if err != nil {
				log.Error().Err(err).Msg("error handling event")
			} else {
				log.Debug().Dur(logging.FieldDuration, time.Since(start)).Msg("event handled successfully")
			}
		case <-ctx.Done():
			log.Warn().Dur(logging.FieldDuration, time.Since(start)).Msg("handler timed out")
		}
		cancel()
	}
}
