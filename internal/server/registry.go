package server

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/npezzotti/versehub/internal/stats"
)

const (
	baseReconnectDelay = time.Second
	maxReconnectDelay  = 10 * time.Second
)

// Sender pushes an envelope to a user's live connection.
type Sender interface {
	Send(userId int, msg *ServerMessage) bool
}

// Registry owns the live connections. users maps an identity to its newest
// connection; clients holds every connection that is still physically open,
// including ones whose mapping was taken over by a newer connection.
type Registry struct {
	log         *log.Logger
	stats       stats.StatsProvider
	maxAttempts int

	mu       sync.Mutex
	clients  map[*Client]struct{}
	users    map[int]*Client
	attempts map[int]int
	closed   bool

	// afterFunc schedules reconnect bookkeeping; replaced in tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewRegistry(logger *log.Logger, su stats.StatsProvider, maxAttempts int) *Registry {
	return &Registry{
		log:         logger,
		stats:       su,
		maxAttempts: maxAttempts,
		clients:     make(map[*Client]struct{}),
		users:       make(map[int]*Client),
		attempts:    make(map[int]int),
		afterFunc:   time.AfterFunc,
	}
}

// Register maps userId to c, replacing any previous mapping without closing
// the previous connection, and clears the user's reconnect-attempt counter.
func (r *Registry) Register(userId int, c *Client) {
	r.mu.Lock()
	prev, replaced := r.users[userId]
	_, known := r.clients[c]
	r.users[userId] = c
	r.clients[c] = struct{}{}
	delete(r.attempts, userId)
	r.mu.Unlock()

	if !known {
		r.stats.Incr(stats.LiveConnections)
	}
	if !replaced {
		r.stats.Incr(stats.OnlineUsers)
	} else if prev != c {
		r.log.Printf("connection for user %d replaced by a newer connection", userId)
	}

	r.broadcastPresence()
}

// Unregister removes the mapping for userId if present. The connection itself
// is left open.
func (r *Registry) Unregister(userId int) {
	r.mu.Lock()
	_, ok := r.users[userId]
	delete(r.users, userId)
	r.mu.Unlock()

	if ok {
		r.stats.Decr(stats.OnlineUsers)
		r.broadcastPresence()
	}
}

// Send queues msg on the user's connection if one is mapped and open. The
// message is dropped otherwise; offline users read persisted state instead.
func (r *Registry) Send(userId int, msg *ServerMessage) bool {
	r.mu.Lock()
	c, ok := r.users[userId]
	r.mu.Unlock()

	if !ok || !c.isOpen() {
		return false
	}

	return c.queueMessage(msg)
}

// IsOnline reports whether a mapping exists. The peer may already be gone
// until the next liveness probe notices.
func (r *Registry) IsOnline(userId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.users[userId]
	return ok
}

func (r *Registry) OnlineUsers() []int {
	r.mu.Lock()
	users := make([]int, 0, len(r.users))
	for id := range r.users {
		users = append(users, id)
	}
	r.mu.Unlock()

	slices.Sort(users)
	return users
}

// ReconnectAttempts returns the user's consecutive failure count.
func (r *Registry) ReconnectAttempts(userId int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.attempts[userId]
}

// openClients returns a snapshot of every open connection.
func (r *Registry) openClients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// recordMiss counts a failed probe for userId. It reports true, and purges
// the counter, once the counter had already reached the ceiling.
func (r *Registry) recordMiss(userId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempts := r.attempts[userId]
	if attempts >= r.maxAttempts {
		delete(r.attempts, userId)
		return true
	}

	r.attempts[userId] = attempts + 1
	return false
}

// release forgets a connection that has closed. The user mapping is only
// removed when it still points at c. Calling release twice is harmless.
func (r *Registry) release(c *Client) {
	r.mu.Lock()
	if _, ok := r.clients[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, c)

	uid := c.user.Id
	wentOffline := r.users[uid] == c
	if wentOffline {
		delete(r.users, uid)
	}
	attempts := r.attempts[uid]
	closed := r.closed
	r.mu.Unlock()

	r.stats.Decr(stats.LiveConnections)
	if !wentOffline {
		return
	}

	r.stats.Decr(stats.OnlineUsers)
	if !closed {
		r.scheduleReconnect(uid, attempts)
		r.broadcastPresence()
	}
}

// scheduleReconnect bumps the user's attempt counter after an exponential
// delay, unless the user has reconnected by then.
func (r *Registry) scheduleReconnect(userId, attempts int) {
	if attempts >= r.maxAttempts {
		return
	}

	r.afterFunc(reconnectDelay(attempts), func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if _, online := r.users[userId]; online || r.closed {
			return
		}
		r.attempts[userId]++
	})
}

func reconnectDelay(attempts int) time.Duration {
	if attempts >= 4 {
		return maxReconnectDelay
	}
	return min(baseReconnectDelay<<attempts, maxReconnectDelay)
}

func (r *Registry) broadcastPresence() {
	users := r.OnlineUsers()
	if len(users) == 0 {
		return
	}

	msg := NewOnlineUsers(users)
	for _, id := range users {
		r.Send(id, msg)
	}
}

// closeAll closes every open connection with code and stops further
// reconnect bookkeeping.
func (r *Registry) closeAll(code int, reason string) {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	for _, c := range r.openClients() {
		c.closeWith(code, reason)
	}
}
