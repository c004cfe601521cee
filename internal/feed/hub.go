// Package feed broadcasts applied-operation events to WebSocket
// subscribers. The hub is a domain.Sink: publishing never blocks the
// engine, slow clients lose events instead.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/observability"
)

// Event types sent over the feed.
const (
	EventTransfer      = "transfer"
	EventHolderBalance = "holder_balance"
	EventDistribution  = "distribution"
	EventLiquidity     = "liquidity"
)

// Event is the JSON envelope written to each client.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TransferEvent mirrors domain.TransferRecord for the wire.
type TransferEvent struct {
	Mint        string `json:"mint"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Authority   string `json:"authority"`
	Amount      uint64 `json:"amount"`
	Fee         uint64 `json:"fee"`
	Side        string `json:"side"`
	Timestamp   int64  `json:"timestamp"`
}

// HolderBalanceEvent mirrors domain.HolderBalanceRecord for the wire.
type HolderBalanceEvent struct {
	Holder    string `json:"holder"`
	Balance   uint64 `json:"balance"`
	UpdatedAt int64  `json:"updated_at"`
}

// DistributionEvent carries all legs of one distribution.
type DistributionEvent struct {
	Pool          string            `json:"pool"`
	PoolTotal     uint64            `json:"pool_total"`
	DistributedAt int64             `json:"distributed_at"`
	Legs          []DistributionLeg `json:"legs"`
}

// DistributionLeg is one payout within a distribution.
type DistributionLeg struct {
	Holder string `json:"holder,omitempty"`
	Amount uint64 `json:"amount"`
}

// LiquidityEvent mirrors domain.LiquidityRecord for the wire.
type LiquidityEvent struct {
	Pool          string `json:"pool"`
	ReserveWallet string `json:"reserve_wallet"`
	RequestedAt   int64  `json:"requested_at"`
}

// HubConfig configures hub behavior.
type HubConfig struct {
	// SendBuffer is the per-client outbound queue size.
	SendBuffer int
	// WriteTimeout bounds each message write.
	WriteTimeout time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout is how long to wait for a pong before dropping.
	PongTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
	}
}

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub creates a Hub. A nil config uses defaults.
func NewHub(config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	observability.DefaultMetrics.FeedClients.Set(float64(count))

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Close disconnects all clients and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	observability.DefaultMetrics.FeedClients.Set(0)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TransferApplied broadcasts one transfer event.
func (h *Hub) TransferApplied(r domain.TransferRecord) {
	h.broadcast(Event{Type: EventTransfer, Data: TransferEvent{
		Mint:        r.Mint,
		Source:      r.Source,
		Destination: r.Destination,
		Authority:   r.Authority,
		Amount:      r.Amount,
		Fee:         r.Fee,
		Side:        r.Side,
		Timestamp:   r.Timestamp,
	}})
}

// HolderBalanceUpdated broadcasts one ledger update.
func (h *Hub) HolderBalanceUpdated(r domain.HolderBalanceRecord) {
	h.broadcast(Event{Type: EventHolderBalance, Data: HolderBalanceEvent{
		Holder:    r.Holder,
		Balance:   r.Balance,
		UpdatedAt: r.UpdatedAt,
	}})
}

// RewardsDistributed broadcasts a completed distribution as a single
// event with all its legs.
func (h *Hub) RewardsDistributed(legs []domain.DistributionRecord) {
	if len(legs) == 0 {
		return
	}
	ev := DistributionEvent{
		Pool:          legs[0].Pool,
		PoolTotal:     legs[0].PoolTotal,
		DistributedAt: legs[0].DistributedAt,
		Legs:          make([]DistributionLeg, len(legs)),
	}
	for i, leg := range legs {
		ev.Legs[i] = DistributionLeg{Holder: leg.Holder, Amount: leg.Amount}
	}
	h.broadcast(Event{Type: EventDistribution, Data: ev})
}

// LiquidityAdded broadcasts one liquidity request.
func (h *Hub) LiquidityAdded(r domain.LiquidityRecord) {
	h.broadcast(Event{Type: EventLiquidity, Data: LiquidityEvent{
		Pool:          r.Pool,
		ReserveWallet: r.ReserveWallet,
		RequestedAt:   r.RequestedAt,
	}})
}

// broadcast serializes once and enqueues to every client. A full queue
// drops the event for that client rather than blocking the engine.
func (h *Hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("feed: marshal %s event: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			observability.DefaultMetrics.FeedEventsDropped.Inc()
		}
	}
}

// writeLoop drains the client queue and keeps the connection alive.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// remove drops the client from the hub and closes its connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		observability.DefaultMetrics.FeedClients.Set(float64(count))
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	})
}

var _ domain.Sink = (*Hub)(nil)
