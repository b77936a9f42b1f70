package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa as escritas; gorilla/websocket aceita um escritor por vez
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) writeRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por conta
// subs: mapeia accountID para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}

	OnConnect    func()
	OnDisconnect func()
	OnDelivered  func()
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Um cliente pode acompanhar várias contas.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer conn.Close()
	if h.OnConnect != nil {
		h.OnConnect()
	}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.AccountID == "" {
				_ = c.write(ServerMsg{Type: "error", Error: "accountId required"})
				continue
			}
			h.subscribe(msg.AccountID, c)
			_ = c.write(ServerMsg{Type: "subscribed", AccountID: msg.AccountID})
		case "unsubscribe":
			h.unsubscribe(msg.AccountID, c)
			_ = c.write(ServerMsg{Type: "unsubscribed", AccountID: msg.AccountID})
		case "ping":
			_ = c.write(ServerMsg{Type: "pong"})
		default:
			_ = c.write(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}

	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (h *Hub) subscribe(accountID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[accountID]; !ok {
		h.subs[accountID] = make(map[*client]struct{})
	}
	h.subs[accountID][c] = struct{}{}
}

func (h *Hub) unsubscribe(accountID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[accountID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, accountID)
		}
	}
}

// Subscribers devolve quantos clientes acompanham a conta
func (h *Hub) Subscribers(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[accountID])
}

// Broadcast entrega o evento a cada cliente inscrito em alguma conta participante.
// Um cliente inscrito nas duas contas recebe uma vez só. Oferta em aberto
// (WAGER_CREATED sem contraparte) vai para todos os inscritos, para descoberta.
// Devolve o número de entregas.
func (h *Hub) Broadcast(update WagerUpdate) int {
	targets := make(map[*client]string)
	h.mu.RLock()
	for _, id := range update.AccountIDs {
		for c := range h.subs[id] {
			if _, seen := targets[c]; !seen {
				targets[c] = id
			}
		}
	}
	if isOpenOffer(update.Payload) {
		for _, set := range h.subs {
			for c := range set {
				if _, seen := targets[c]; !seen {
					targets[c] = ""
				}
			}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	ev := update.Payload
	delivered := 0
	for c, accountID := range targets {
		b, _ := json.Marshal(ServerMsg{Type: "event", AccountID: accountID, Event: &ev})
		if err := c.writeRaw(b); err != nil {
			h.log.Debug("ws write failed", zap.String("account_id", accountID), zap.Error(err))
			continue
		}
		delivered++
		if h.OnDelivered != nil {
			h.OnDelivered()
		}
	}
	return delivered
}

func isOpenOffer(e events.WagerEvent) bool {
	return e.Type == events.TypeWagerCreated && e.CounterpartID == ""
}
