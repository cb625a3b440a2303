package connection

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Signer produces authentication headers for a request. auth.Credentials
// satisfies it.
type Signer interface {
	SignRequest(method, path string) (map[string]string, error)
}

// Command is a WebSocket command to send to the server.
type Command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTicker  string   `json:"market_ticker,omitempty"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// Response is a command response from the server.
type Response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"` // "subscribed", "unsubscribed", "error", "ok"
	Msg  json.RawMessage `json:"msg"`
}

// SubscribedMsg is the message content for a "subscribed" response.
type SubscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// ErrorMsg is the message content for an "error" response.
type ErrorMsg struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// DataMessage is a data message from the server (ticker, trade, orderbook).
type DataMessage struct {
	Type string          `json:"type"`
	SID  int64           `json:"sid"`
	Seq  int64           `json:"seq,omitempty"` // Sequence number (orderbook only)
	Msg  json.RawMessage `json:"msg"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // ws:// or wss:// endpoint
	Header       http.Header   // Extra handshake headers
	Signer       Signer        // Signs GET of the URL path (nil = no auth)
	PingTimeout  time.Duration // Max time without any traffic before the connection is stale (0 disables)
	PingInterval time.Duration // Client keepalive ping interval (0 disables)
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}
