// Package shutdown turns termination signals into a single, one-way stop
// request that the prober loop and the metrics server observe.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Coordinator holds the running -> stopping flag. The flag flips exactly
// once; later requests are no-ops.
type Coordinator struct {
	logger   *zap.Logger
	stopping atomic.Bool
	once     sync.Once
	done     chan struct{}
	reason   atomic.Value // string
}

func New(logger *zap.Logger) *Coordinator {
	return &Coordinator{logger: logger, done: make(chan struct{})}
}

// Listen forwards the given signals to Request until the returned
// function is called.
func (c *Coordinator) Listen(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	quit := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case sig := <-ch:
				if !c.Request(sig.String()) {
					c.logger.Info("shutdown_already_requested", zap.Stringer("signal", sig))
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}

// Request flips the flag. It reports whether this call did the flip.
func (c *Coordinator) Request(reason string) bool {
	flipped := false
	c.once.Do(func() {
		c.reason.Store(reason)
		c.stopping.Store(true)
		close(c.done)
		flipped = true
		c.logger.Info("shutdown_requested", zap.String("reason", reason))
	})
	return flipped
}

// Stopping reports whether a stop was requested.
func (c *Coordinator) Stopping() bool { return c.stopping.Load() }

// Done is closed once a stop was requested.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Reason is what triggered the stop, empty while running.
func (c *Coordinator) Reason() string {
	r, _ := c.reason.Load().(string)
	return r
}
