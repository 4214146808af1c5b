// =============================================================================
// bridge.go - Websocket Snapshot Bridge
// =============================================================================
//
// With --listen, slctl serves a websocket endpoint at /ws. Every connected
// client receives the latest snapshot on connect and a fresh one after each
// update, as JSON:
//
//	{"type":"snapshot","device":"ProcX_10.0.0.5","snapshot":{...},"values":{...}}
//
// "values" is the flat key to value view (POWER, VOL, SRC, ...) including
// keys the snapshot has no dedicated field for.
//
// The bridge is push-only; anything a client sends is read and discarded so
// that close frames and pongs are processed. A client that cannot keep up
// has updates dropped rather than stalling the device.
//
// =============================================================================

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reedr/steinway-lyngdorf/slprotocol"
)

const (
	// bridgePath is the websocket endpoint.
	bridgePath = "/ws"

	// bridgeQueueSize is the number of pending updates per client.
	bridgeQueueSize = 8

	// bridgeWriteTimeout bounds each websocket write.
	bridgeWriteTimeout = 10 * time.Second

	// bridgePingInterval is how often idle clients are pinged.
	bridgePingInterval = 30 * time.Second
)

// snapshotMessage is the JSON document pushed to websocket clients.
type snapshotMessage struct {
	Type     string              `json:"type"`
	Device   string              `json:"device,omitempty"`
	Snapshot slprotocol.Snapshot `json:"snapshot"`
	Values   map[string]string   `json:"values"`
}

// bridgeClient is one connected websocket.
type bridgeClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// snapshotBridge fans snapshots out to websocket clients.
type snapshotBridge struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*bridgeClient
	latest  []byte
}

func newSnapshotBridge(log *zap.Logger) *snapshotBridge {
	return &snapshotBridge{
		log: log,
		upgrader: websocket.Upgrader{
			// Local network tool; browsers on any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*bridgeClient),
	}
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (b *snapshotBridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(bridgePath, b.serveWS)
	return mux
}

// Publish queues a snapshot for every client. It never blocks.
func (b *snapshotBridge) Publish(deviceID string, s slprotocol.Snapshot) {
	data, err := json.Marshal(snapshotMessage{
		Type:     "snapshot",
		Device:   deviceID,
		Snapshot: s,
		Values:   s.Map(),
	})
	if err != nil {
		b.log.Error("encoding snapshot", zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = data
	for _, c := range b.clients {
		select {
		case c.send <- data:
		default:
			b.log.Debug("bridge client behind, dropping update", zap.Stringer("client", c.id))
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *snapshotBridge) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *snapshotBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		c.conn.Close()
		close(c.send)
		delete(b.clients, id)
	}
}

func (b *snapshotBridge) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &bridgeClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, bridgeQueueSize),
	}

	b.mu.Lock()
	b.clients[c.id] = c
	if b.latest != nil {
		c.send <- b.latest
	}
	b.mu.Unlock()

	b.log.Info("bridge client connected", zap.Stringer("client", c.id), zap.String("remote", r.RemoteAddr))

	go b.writer(c)
	b.reader(c)
}

// reader discards inbound messages until the connection fails, then
// unregisters the client.
func (b *snapshotBridge) reader(c *bridgeClient) {
	defer b.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Debug("bridge client read failed", zap.Stringer("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (b *snapshotBridge) writer(c *bridgeClient) {
	ticker := time.NewTicker(bridgePingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(bridgeWriteTimeout)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (b *snapshotBridge) remove(c *bridgeClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c.id]; !ok {
		return
	}
	delete(b.clients, c.id)
	close(c.send)
	c.conn.Close()
	b.log.Info("bridge client disconnected", zap.Stringer("client", c.id))
}
