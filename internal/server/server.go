package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/versehub/internal/database"
	"github.com/npezzotti/versehub/internal/stats"
)

type ChatServer struct {
	log        *log.Logger
	registry   *Registry
	monitor    *Monitor
	router     *Router
	dispatcher *Dispatcher

	// readers tracks read pumps; each one releases its connection on exit.
	readers sync.WaitGroup
}

func NewChatServer(logger *log.Logger, db database.PlatformRepository, su stats.StatsProvider, heartbeat time.Duration, maxMissed int) (*ChatServer, error) {
	for _, name := range []string{
		stats.LiveConnections,
		stats.OnlineUsers,
		stats.TerminatedConnections,
		stats.EnvelopesRouted,
		stats.EnvelopesDropped,
		stats.NotificationsPersisted,
		stats.NotificationsPushed,
	} {
		su.RegisterMetric(name)
	}

	registry := NewRegistry(logger, su, maxMissed)

	return &ChatServer{
		log:        logger,
		registry:   registry,
		monitor:    NewMonitor(registry, heartbeat, logger, su),
		router:     NewRouter(registry, db, logger, su),
		dispatcher: NewDispatcher(db, registry, logger, su),
	}, nil
}

func (cs *ChatServer) Registry() *Registry {
	return cs.registry
}

func (cs *ChatServer) Router() *Router {
	return cs.router
}

func (cs *ChatServer) Dispatcher() *Dispatcher {
	return cs.dispatcher
}

// Run blocks running the liveness monitor until Shutdown.
func (cs *ChatServer) Run() {
	cs.monitor.Run()
}

// ServeClient registers an authenticated connection and starts its pumps.
func (cs *ChatServer) ServeClient(user User, conn Conn) *Client {
	c := NewClient(user, conn, cs.registry, cs.router, cs.log)

	cs.log.Printf("adding connection from user %d", user.Id)
	cs.registry.Register(user.Id, c)

	cs.readers.Add(1)
	go c.Write()
	go func() {
		defer cs.readers.Done()
		c.Read()
	}()

	return c
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	if err := cs.monitor.Shutdown(ctx); err != nil {
		return err
	}

	cs.registry.closeAll(websocket.CloseNormalClosure, "server shutting down")

	drained := make(chan struct{})
	go func() {
		cs.readers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain connections: %w", ctx.Err())
	}
}
