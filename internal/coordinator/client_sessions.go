package coordinator

import (
	"sort"
	"sync"

	"github.com/AltairaLabs/agent-router/internal/events"
)

// broadcastListenerID is the hub listener that fans agent updates out to every client
const broadcastListenerID = "mcp-broadcast"

// NotificationServer is the part of the MCP server used to reach connected clients
type NotificationServer interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
	SendNotificationToAllClients(method string, params map[string]any)
}

// clientSender delivers hub notifications to one MCP client
type clientSender struct {
	srv      NotificationServer
	clientID string
}

// SendNotification implements events.Sender
func (c *clientSender) SendNotification(method string, params map[string]any) error {
	return c.srv.SendNotificationToSpecificClient(c.clientID, method, params)
}

// broadcastSender delivers hub notifications to every connected MCP client
type broadcastSender struct {
	srv NotificationServer
}

// SendNotification implements events.Sender
func (b *broadcastSender) SendNotification(method string, params map[string]any) error {
	b.srv.SendNotificationToAllClients(method, params)
	return nil
}

// ClientSessionManager binds MCP client sessions to the conversation sessions they
// touch so progress events for a conversation reach the clients driving it
type ClientSessionManager struct {
	hub *events.Hub
	srv NotificationServer

	mu       sync.RWMutex
	bindings map[string]map[string]struct{} // client id -> conversation session ids
}

// NewClientSessionManager creates a manager and subscribes the broadcast audience
// for agent updates
func NewClientSessionManager(hub *events.Hub, srv NotificationServer) *ClientSessionManager {
	hub.SubscribeAll(broadcastListenerID, &broadcastSender{srv: srv})
	return &ClientSessionManager{
		hub:      hub,
		srv:      srv,
		bindings: make(map[string]map[string]struct{}),
	}
}

// Bind subscribes clientID to the events of sessionID. Binding twice is a no-op.
func (cm *ClientSessionManager) Bind(clientID, sessionID string) {
	if clientID == "" || sessionID == "" {
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	sessions, ok := cm.bindings[clientID]
	if !ok {
		sessions = make(map[string]struct{})
		cm.bindings[clientID] = sessions
	}
	if _, bound := sessions[sessionID]; bound {
		return
	}
	sessions[sessionID] = struct{}{}
	cm.hub.Subscribe(sessionID, clientID, &clientSender{srv: cm.srv, clientID: clientID})
}

// Release drops every binding of a disconnected client
func (cm *ClientSessionManager) Release(clientID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.bindings[clientID]; !ok {
		return
	}
	delete(cm.bindings, clientID)
	cm.hub.UnsubscribeListener(clientID)
}

// Forget drops every binding to sessionID, typically once the conversation
// session has expired
func (cm *ClientSessionManager) Forget(sessionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for clientID, sessions := range cm.bindings {
		if _, ok := sessions[sessionID]; !ok {
			continue
		}
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(cm.bindings, clientID)
		}
		cm.hub.Unsubscribe(sessionID, clientID)
	}
}

// boundSessions returns the conversation sessions bound to clientID, sorted
func (cm *ClientSessionManager) boundSessions(clientID string) []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]string, 0, len(cm.bindings[clientID]))
	for id := range cm.bindings[clientID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// clientCount returns the number of clients with at least one binding
func (cm *ClientSessionManager) clientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.bindings)
}
