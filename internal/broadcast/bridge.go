package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport carries change signals between processes that share a store.
// The payload is the origin id of the writer so a process can drop the echo
// of its own signal.
type Transport interface {
	Publish(ctx context.Context, origin string) error
	// Listen blocks, calling handle for every signal, until ctx is done or
	// the underlying connection fails.
	Listen(ctx context.Context, handle func(origin string)) error
	Close() error
}

// Bridge is a Notifier spanning processes. Notify raises the local signal at
// once and publishes to the transport; signals from other origins are
// re-raised locally by Run.
type Bridge struct {
	local      *Local
	transport  Transport
	origin     string
	logger     *zap.Logger
	retryDelay time.Duration

	// pending holds at most one queued re-raise. Remote signals arriving
	// while one is already queued are folded into it.
	pending chan struct{}
}

func NewBridge(local *Local, transport Transport, logger *zap.Logger) *Bridge {
	return &Bridge{
		local:      local,
		transport:  transport,
		origin:     uuid.NewString(),
		logger:     logger.With(zap.String("component", "broadcast")),
		retryDelay: 5 * time.Second,
		pending:    make(chan struct{}, 1),
	}
}

// Origin identifies this process on the transport.
func (b *Bridge) Origin() string {
	return b.origin
}

// SetRetryDelay changes how long Run waits before listening again after a
// transport failure.
func (b *Bridge) SetRetryDelay(d time.Duration) {
	b.retryDelay = d
}

func (b *Bridge) Notify(ctx context.Context) error {
	_ = b.local.Notify(ctx)
	if err := b.transport.Publish(ctx, b.origin); err != nil {
		return fmt.Errorf("publish change signal: %w", err)
	}
	return nil
}

func (b *Bridge) Subscribe(fn func()) func() {
	return b.local.Subscribe(fn)
}

// Run listens on the transport until ctx is done, reconnecting after
// retryDelay whenever the transport drops.
func (b *Bridge) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go b.drain(ctx, done)

	for {
		err := b.transport.Listen(ctx, b.receive)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warn("change listener disconnected, retrying",
			zap.Error(err),
			zap.Duration("retry_in", b.retryDelay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay):
		}
	}
}

func (b *Bridge) receive(origin string) {
	if origin == b.origin {
		return
	}
	select {
	case b.pending <- struct{}{}:
	default:
	}
}

func (b *Bridge) drain(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-b.pending:
			_ = b.local.Notify(ctx)
		}
	}
}

// Close releases the transport.
func (b *Bridge) Close() error {
	return b.transport.Close()
}
