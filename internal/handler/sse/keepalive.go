package sse

import (
	"context"
	"log/slog"
	"time"
)

// KeepAliveWriter writes a keep-alive comment frame
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// TickerKeepAlive pings a stream at a fixed interval until stopped, the
// context ends or a write fails.
type TickerKeepAlive struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// StartKeepAlive begins pinging writer every interval. A non-positive
// interval disables pings.
func StartKeepAlive(ctx context.Context, interval time.Duration, writer KeepAliveWriter, logger *slog.Logger) *TickerKeepAlive {
	ctx, cancel := context.WithCancel(ctx)
	k := &TickerKeepAlive{interval: interval, cancel: cancel, done: make(chan struct{})}

	if interval <= 0 {
		close(k.done)
		return k
	}

	go func() {
		defer close(k.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					logger.Debug("keep-alive stopped", "error", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return k
}

// Stop ends pinging and waits for the ticker goroutine. Safe to call more
// than once.
func (k *TickerKeepAlive) Stop() {
	k.cancel()
	<-k.done
}

// Done is closed once pinging has ended
func (k *TickerKeepAlive) Done() <-chan struct{} {
	return k.done
}
