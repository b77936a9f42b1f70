package ws

import "github.com/radieske/wager-platform/pkg/contracts/events"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// AccountID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type      string `json:"type"`
	AccountID string `json:"accountId"`
}

// WagerUpdate é o que chega pelo Redis Pub/Sub e é repassado aos clientes
type WagerUpdate struct {
	WagerID    string            `json:"wagerId"`
	AccountIDs []string          `json:"accountIds"`
	Payload    events.WagerEvent `json:"payload"`
}

// ServerMsg é o envelope enviado ao cliente
type ServerMsg struct {
	Type      string             `json:"type"` // event | pong | subscribed | unsubscribed | error
	AccountID string             `json:"accountId,omitempty"`
	Event     *events.WagerEvent `json:"event,omitempty"`
	Error     string             `json:"error,omitempty"`
}
