package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/versehub/internal/stats"
)

// Monitor probes every open connection on a fixed cadence and terminates
// connections whose user has missed too many probes in a row.
//
// A pong only marks the connection alive again. The user's miss counter is
// reset by a fresh Register, not by a pong, so intermittent pong loss
// accumulates across alive periods.
type Monitor struct {
	registry *Registry
	interval time.Duration
	log      *log.Logger
	stats    stats.StatsProvider
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewMonitor(registry *Registry, interval time.Duration, logger *log.Logger, su stats.StatsProvider) *Monitor {
	return &Monitor{
		registry: registry,
		interval: interval,
		log:      logger,
		stats:    su,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Monitor) Run() {
	ticker := time.NewTicker(m.interval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()

	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) tick() {
	for _, c := range m.registry.openClients() {
		if !c.alive.Load() {
			if m.registry.recordMiss(c.user.Id) {
				m.log.Printf("terminating unresponsive connection for user %d", c.user.Id)
				c.terminate()
				m.registry.release(c)
				m.stats.Incr(stats.TerminatedConnections)
			}
			continue
		}

		c.alive.Store(false)
		c.ping()
	}
}

// Shutdown stops the ticker loop. It is safe to call more than once.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("monitor shutdown: %w", ctx.Err())
	}
}
