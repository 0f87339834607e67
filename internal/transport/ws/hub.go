package ws

import (
	"sync"

	"fivebear-admin-go/internal/domain/events"
	"fivebear-admin-go/internal/utils"
)

// Hub tracks live push channels per account. An account may hold several
// channels (tabs), but exactly one of them is the login-notification channel,
// which a new registration evicts rather than joins.
type Hub struct {
	logger *utils.Logger

	mu          sync.RWMutex
	channels    map[string]map[*Connection]struct{}
	notifyChans map[string]*Connection
}

// NewHub builds a fresh connection hub.
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		logger:      logger,
		channels:    make(map[string]map[*Connection]struct{}),
		notifyChans: make(map[string]*Connection),
	}
}

// Register installs conn as the account's login-notification channel and adds
// it to the broadcast set. It returns the channel it displaced, if any is
// still open; closing the loser is the caller's decision.
func (h *Hub) Register(conn *Connection) *Connection {
	if conn == nil {
		return nil
	}

	h.mu.Lock()
	set, ok := h.channels[conn.username]
	if !ok {
		set = make(map[*Connection]struct{})
		h.channels[conn.username] = set
	}
	set[conn] = struct{}{}

	prev := h.notifyChans[conn.username]
	h.notifyChans[conn.username] = conn
	h.mu.Unlock()

	if prev == conn || (prev != nil && prev.IsClosed()) {
		return nil
	}
	return prev
}

// Unregister removes conn from the account's channel set. The notification
// pointer is cleared only when it still points at conn, so a stale
// unregister never tears down a newer channel.
func (h *Hub) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.channels[conn.username]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.channels, conn.username)
		}
	}
	if h.notifyChans[conn.username] == conn {
		delete(h.notifyChans, conn.username)
	}
	h.mu.Unlock()
}

// Notify delivers an event to every live channel of one account.
// Delivery is best-effort; failures are logged and never surfaced.
func (h *Hub) Notify(account string, env events.Envelope) {
	for _, conn := range h.snapshot(account) {
		if err := conn.SendEnvelope(env); err != nil {
			h.logger.WarnTag("HUB", "dropped %s push to %s (%s): %v",
				env.Type, account, conn.ID(), err)
		}
	}
}

// Broadcast delivers an event to every registered connection.
func (h *Hub) Broadcast(env events.Envelope) {
	for _, conn := range h.snapshotAll(func(*Connection) bool { return true }) {
		if err := conn.SendEnvelope(env); err != nil {
			h.logger.WarnTag("HUB", "dropped %s broadcast to %s: %v", env.Type, conn.Username(), err)
		}
	}
}

// BroadcastToRole delivers an event to connections whose account role matches.
func (h *Hub) BroadcastToRole(role string, env events.Envelope) {
	for _, conn := range h.snapshotAll(func(c *Connection) bool { return c.role == role }) {
		if err := conn.SendEnvelope(env); err != nil {
			h.logger.WarnTag("HUB", "dropped %s broadcast to %s: %v", env.Type, conn.Username(), err)
		}
	}
}

// HandleForceLogout pushes the forced-logout event to the displaced account
// and evicts its notification channel. Wired to the event bus at startup.
func (h *Hub) HandleForceLogout(data events.ForceLogoutEventData) {
	env := events.NewEnvelope(events.TypeForceLogout, data.Reason, map[string]string{
		"username": data.Username,
	})
	h.Notify(data.Username, env)

	h.mu.Lock()
	evicted := h.notifyChans[data.Username]
	delete(h.notifyChans, data.Username)
	h.mu.Unlock()

	if evicted != nil {
		h.logger.InfoTag("HUB", "evicting notification channel %s for %s", evicted.ID(), data.Username)
		_ = evicted.Close()
	}
}

// OnlineCount reports the number of accounts with at least one live channel.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Counts exposes connection and account totals.
func (h *Hub) Counts() (connections int, accounts int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.channels {
		connections += len(set)
	}
	return connections, len(h.channels)
}

// CloseAll terminates every connection, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0)
	for _, set := range h.channels {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	h.channels = make(map[string]map[*Connection]struct{})
	h.notifyChans = make(map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *Hub) snapshot(account string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.channels[account]
	conns := make([]*Connection, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) snapshotAll(match func(*Connection) bool) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Connection, 0)
	for _, set := range h.channels {
		for conn := range set {
			if match(conn) {
				conns = append(conns, conn)
			}
		}
	}
	return conns
}
