package services

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// wsClient is one connected status subscriber
type wsClient struct {
	conn    *websocket.Conn
	account string // lowercased filter, empty = all transfers
	send    chan []byte
}

// WebsocketPushService pushes transfer status updates to connected clients.
// A client subscribes with an optional account filter and receives one JSON
// message per state transition of matching transfers.
type WebsocketPushService struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewWebsocketPushService creates the push hub
func NewWebsocketPushService() *WebsocketPushService {
	return &WebsocketPushService{clients: make(map[*wsClient]struct{})}
}

// statusMessage is the wire format pushed to subscribers
type statusMessage struct {
	IntentID      string                      `json:"intent_id"`
	Status        models.TransferIntentStatus `json:"status"`
	Account       string                      `json:"account"`
	Amount        string                      `json:"amount"`
	ReleaseAmount string                      `json:"release_amount"`
	DepositTx     string                      `json:"deposit_tx,omitempty"`
	WithdrawTx    string                      `json:"withdraw_tx,omitempty"`
	Error         string                      `json:"error,omitempty"`
	Timestamp     time.Time                   `json:"timestamp"`
}

// HandleConnection serves one websocket subscriber until it disconnects
func (s *WebsocketPushService) HandleConnection(conn *websocket.Conn, account string) {
	client := &wsClient{
		conn:    conn,
		account: strings.ToLower(account),
		send:    make(chan []byte, 16),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	metrics.WebsocketClients.Set(float64(count))

	log.Printf("🔌 [WS] Client connected (account=%q, total=%d)", account, count)

	go s.writeLoop(client)
	s.readLoop(client)
}

// PushTransferUpdate fans a transfer state change out to matching subscribers
func (s *WebsocketPushService) PushTransferUpdate(intent *models.TransferIntent) {
	msg := &statusMessage{
		IntentID:      intent.ID,
		Status:        intent.Status,
		Account:       intent.Account,
		Amount:        intent.Amount,
		ReleaseAmount: intent.ReleaseAmount,
		DepositTx:     intent.DepositTxHash,
		WithdrawTx:    intent.WithdrawTxHash,
		Error:         intent.LastError,
		Timestamp:     time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	account := strings.ToLower(intent.Account)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.account != "" && client.account != account {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop the message rather than block the pipeline.
		}
	}
}

func (s *WebsocketPushService) writeLoop(client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebsocketPushService) readLoop(client *wsClient) {
	defer s.removeClient(client)

	client.conn.SetReadLimit(1024)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WebsocketPushService) removeClient(client *wsClient) {
	s.mu.Lock()
	if _, exists := s.clients[client]; exists {
		delete(s.clients, client)
		close(client.send)
	}
	count := len(s.clients)
	s.mu.Unlock()

	metrics.WebsocketClients.Set(float64(count))
	client.conn.Close()
	log.Printf("🔌 [WS] Client disconnected (total=%d)", count)
}
